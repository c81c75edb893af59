package conversation

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/agentestate/outreach/internal/compliance"
	"github.com/agentestate/outreach/pkg/logging"
)

// Messenger is the external per-channel transport. The agent decides that
// and what to send; the transport owns delivery, timeouts and retries.
type Messenger interface {
	SendMessage(ctx context.Context, msg OutboundMessage) SendResult
}

var (
	phoneDigitsRE = regexp.MustCompile(`^\+?\d{10,15}$`)
	emailAddrRE   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidPhone reports whether the number looks like a sendable phone number.
func ValidPhone(phone string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, phone)
	return phoneDigitsRE.MatchString(cleaned)
}

// ValidEmail reports whether the address looks like a sendable email.
func ValidEmail(email string) bool {
	return emailAddrRE.MatchString(strings.TrimSpace(email))
}

// ChannelAgent sends one message through its channel with a compliance
// re-check, and translates failures into the fallback/escalate directives.
type ChannelAgent struct {
	channel   Channel
	messenger Messenger
	gate      *compliance.Gate
	logger    *logging.Logger
	now       func() time.Time
}

// NewChannelAgent builds the agent for one channel.
func NewChannelAgent(channel Channel, messenger Messenger, gate *compliance.Gate, logger *logging.Logger) *ChannelAgent {
	if channel != ChannelSMS && channel != ChannelEmail {
		panic("conversation: channel agent requires sms or email")
	}
	if messenger == nil {
		panic("conversation: messenger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChannelAgent{
		channel:   channel,
		messenger: messenger,
		gate:      gate,
		logger:    logger,
		now:       time.Now,
	}
}

func (a *ChannelAgent) node() Node {
	if a.channel == ChannelSMS {
		return NodeSMS
	}
	return NodeEmail
}

// Send re-validates compliance and recipient format, performs the single
// external send, and returns the resulting directive. SMS failure yields
// fallback_to_email; email failure yields escalate. There is no automatic
// retry beyond that one fallback.
func (a *ChannelAgent) Send(ctx context.Context, st *State, msg *OutboundMessage) Decision {
	now := a.now().UTC()
	patch := Patch{Handler: string(a.node()), ComplianceTime: timePtr(now)}

	// Defense in depth: the router already checked, but state may be stale
	// by the time the send happens.
	res := a.gate.Check(ctx, msg.To, now, msg.Purpose)
	patch.QuietHoursResult = boolPtr(res.Reason == compliance.ReasonQuietHours)
	if !res.Compliant {
		if res.Reason == compliance.ReasonOptedOut {
			patch.OptedOut = boolPtr(true)
			patch.NextAction = actionPtr(ActionComplianceFailed)
			return Decision{Next: NodeEnd, Action: ActionComplianceFailed, Patch: patch}
		}
		a.logger.Info("send blocked by compliance", "channel", a.channel, "reason", res.Reason, "lead_id", st.LeadID)
		return a.blockedDecision(st, msg, patch, res.Reason)
	}

	if !a.validRecipient(msg.To) {
		a.logger.Warn("invalid recipient for channel", "channel", a.channel, "lead_id", st.LeadID)
		return a.failureDecision(st, msg, patch, now, "invalid recipient")
	}

	result := a.messenger.SendMessage(ctx, *msg)
	if !result.Success {
		a.logger.Warn("channel send failed", "channel", a.channel, "lead_id", st.LeadID, "error", result.Error)
		return a.failureDecision(st, msg, patch, now, result.Error)
	}

	patch.AppendLog = []CommAttempt{{
		Channel:           a.channel,
		Timestamp:         now,
		Body:              msg.Body,
		Success:           true,
		ProviderMessageID: result.ProviderMessageID,
	}}
	patch.LastContactMethod = channelPtr(a.channel)
	patch.LastContactTime = timePtr(now)
	patch.MessagesSentDelta = 1
	if a.channel == ChannelSMS {
		patch.SMSFailed = boolPtr(false)
	} else {
		patch.EmailFailed = boolPtr(false)
	}
	patch.NextAction = actionPtr(ActionMessageSent)
	return Decision{Next: NodeEnd, Action: ActionMessageSent, Patch: patch}
}

// blockedDecision handles a compliance block that is not an opt-out. SMS
// hands the message to email; email has no further fallback.
func (a *ChannelAgent) blockedDecision(st *State, msg *OutboundMessage, patch Patch, reason string) Decision {
	if a.channel == ChannelSMS && st.Email != "" {
		fallback := *msg
		fallback.Channel = ChannelEmail
		fallback.To = st.Email
		patch.NextAction = actionPtr(ActionFallbackToEmail)
		return Decision{Next: NodeEmail, Action: ActionFallbackToEmail, Patch: patch, Message: &fallback}
	}
	patch.NextAction = actionPtr(ActionComplianceFailed)
	patch.LastError = stringPtr("compliance: " + reason)
	return Decision{Next: NodeEnd, Action: ActionComplianceFailed, Patch: patch}
}

// failureDecision records the failed attempt and returns the channel's
// failure directive.
func (a *ChannelAgent) failureDecision(st *State, msg *OutboundMessage, patch Patch, now time.Time, sendErr string) Decision {
	patch.AppendLog = []CommAttempt{{
		Channel:   a.channel,
		Timestamp: now,
		Body:      msg.Body,
		Success:   false,
		Error:     sendErr,
	}}
	patch.LastError = stringPtr(sendErr)

	if a.channel == ChannelSMS {
		patch.SMSFailed = boolPtr(true)
		patch.NextAction = actionPtr(ActionFallbackToEmail)
		fallback := *msg
		fallback.Channel = ChannelEmail
		fallback.To = st.Email
		return Decision{Next: NodeEmail, Action: ActionFallbackToEmail, Patch: patch, Message: &fallback}
	}

	patch.EmailFailed = boolPtr(true)
	patch.NextAction = actionPtr(ActionEscalate)
	return Decision{Next: NodeEnd, Action: ActionEscalate, Patch: patch}
}

func (a *ChannelAgent) validRecipient(to string) bool {
	if a.channel == ChannelSMS {
		return ValidPhone(to)
	}
	return ValidEmail(to)
}
