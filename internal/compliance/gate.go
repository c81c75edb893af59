package compliance

import (
	"context"
	"time"

	"github.com/agentestate/outreach/pkg/logging"
)

// Result is the outcome of a compliance check. A blocked send is a normal
// decision outcome, not an error.
type Result struct {
	Compliant bool   `json:"compliant"`
	Reason    string `json:"reason,omitempty"`
}

const (
	ReasonOptedOut     = "opted_out"
	ReasonQuietHours   = "quiet_hours"
	ReasonLookupFailed = "opt_out_lookup_failed"
	ReasonEmptyContact = "empty_contact"
)

// Gate evaluates the policy checks that must pass before any outbound send:
// opt-out list membership and the quiet-hours window.
type Gate struct {
	quiet   QuietHours
	optOuts OptOutLookup
	logger  *logging.Logger
}

// NewGate builds a gate. optOuts may be nil when no opt-out store is wired;
// the opt-out check then always passes.
func NewGate(quiet QuietHours, optOuts OptOutLookup, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{
		quiet:   quiet,
		optOuts: optOuts,
		logger:  logger,
	}
}

// Check runs the opt-out and quiet-hours predicates for a prospective send.
// Lookup failures block the send; silence is recoverable, an accidental text
// to an opted-out lead is not.
func (g *Gate) Check(ctx context.Context, contact string, now time.Time, purpose Purpose) Result {
	if g == nil {
		return Result{Compliant: true}
	}
	if contact == "" {
		return Result{Compliant: false, Reason: ReasonEmptyContact}
	}
	if g.optOuts != nil {
		optedOut, err := g.optOuts.IsOptedOut(ctx, contact)
		if err != nil {
			g.logger.Error("opt-out lookup failed; blocking send", "contact", NormalizeContact(contact), "error", err)
			return Result{Compliant: false, Reason: ReasonLookupFailed}
		}
		if optedOut {
			return Result{Compliant: false, Reason: ReasonOptedOut}
		}
	}
	if g.quiet.Suppress(now, purpose) {
		return Result{Compliant: false, Reason: ReasonQuietHours}
	}
	return Result{Compliant: true}
}

// IsOptedOut answers the opt-out predicate alone.
func (g *Gate) IsOptedOut(ctx context.Context, contact string) (bool, error) {
	if g == nil || g.optOuts == nil || contact == "" {
		return false, nil
	}
	return g.optOuts.IsOptedOut(ctx, contact)
}

// IsQuietHours answers the quiet-hours predicate alone.
func (g *Gate) IsQuietHours(now time.Time) bool {
	if g == nil {
		return false
	}
	return g.quiet.Active(now)
}
