package compliance

import (
	"regexp"
	"strings"
)

// OptOutConfirmation is sent exactly once when an opt-out keyword is processed.
const OptOutConfirmation = "You have been removed from our contact list. Thank you."

// OptOutDetector identifies STOP/HELP keywords in inbound messages.
type OptOutDetector struct {
	stopRegex *regexp.Regexp
	helpRegex *regexp.Regexp
}

// NewOptOutDetector returns a keyword detector with sane defaults.
func NewOptOutDetector() *OptOutDetector {
	return &OptOutDetector{
		stopRegex: regexp.MustCompile(`(?i)^(?:please\s+)?(stop|stopall|unsubscribe|cancel|end|quit|remove(?:\s+me)?|opt[\s-]*out)\b`),
		helpRegex: regexp.MustCompile(`(?i)^(?:please\s+)?(help|info)\b`),
	}
}

// IsOptOut returns true when body contains an opt-out keyword.
func (d *OptOutDetector) IsOptOut(body string) bool {
	if d == nil || d.stopRegex == nil {
		return false
	}
	return d.stopRegex.MatchString(strings.TrimSpace(body))
}

// IsHelp returns true when body contains a HELP keyword.
func (d *OptOutDetector) IsHelp(body string) bool {
	if d == nil || d.helpRegex == nil {
		return false
	}
	return d.helpRegex.MatchString(strings.TrimSpace(body))
}
