package conversation

import (
	"time"

	"github.com/agentestate/outreach/internal/compliance"
)

// Node identifies a handler in the conversation graph.
type Node string

const (
	NodeSupervisor Node = "supervisor"
	NodeSpecialist Node = "specialist"
	NodeBooking    Node = "booking_agent"
	NodeRouter     Node = "communication_router"
	NodeSMS        Node = "sms_agent"
	NodeEmail      Node = "email_agent"
	NodeEnd        Node = "end"
)

// Action is the typed outcome token a handler attaches to its decision.
type Action string

const (
	ActionInitialOutreach       Action = "initial_outreach"
	ActionComplianceFailed      Action = "compliance_failed"
	ActionContinueQualification Action = "continue_qualification"
	ActionHandleObjection       Action = "handle_objection"
	ActionReadyToBook           Action = "ready_to_book"
	ActionSendMessage           Action = "send_message"
	ActionMessageSent           Action = "message_sent"
	ActionFallbackToEmail       Action = "fallback_to_email"
	ActionEscalate              Action = "escalate"
	ActionNoChannelsAvailable   Action = "no_channels_available"
	ActionNotInterested         Action = "not_interested"
	ActionOptedOut              Action = "opted_out"
	ActionScheduled             Action = "scheduled"
	ActionScheduledNoMessage    Action = "scheduled_no_message"
	ActionEnd                   Action = "end"
)

// OutboundMessage is a message a handler wants delivered to the lead.
type OutboundMessage struct {
	LeadID     string             `json:"lead_id"`
	CampaignID string             `json:"campaign_id"`
	Channel    Channel            `json:"channel,omitempty"`
	To         string             `json:"to,omitempty"`
	Subject    string             `json:"subject,omitempty"`
	Body       string             `json:"body"`
	Purpose    compliance.Purpose `json:"purpose"`
}

// SendResult is the outcome of a transport send.
type SendResult struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Decision is what every handler returns: where control goes next, the
// action taken, the state patch to apply, and optionally a message to send.
type Decision struct {
	Next    Node
	Action  Action
	Patch   Patch
	Message *OutboundMessage
}

// Patch is the set of state mutations a handler requests. Handlers receive a
// read-only view of the state and return a Patch; the runner applies patches
// between handlers so a half-finished handler never leaves partial writes.
type Patch struct {
	Stage *Stage

	// Qualification is merged fill-only-if-empty.
	Qualification map[string]string

	AppendLog []CommAttempt

	Handler    string
	NextAction *Action
	LastError  *string
	RetryDelta int

	Sentiment *string

	SMSFailed         *bool
	EmailFailed       *bool
	LastContactMethod *Channel
	LastContactTime   *time.Time

	BookingContext *BookingContext
	BookingDetails *BookingDetails

	MessagesSentDelta    int
	BookingAttemptsDelta int
	NoShowDelta          int
	Objections           []string

	OptedOut         *bool
	QuietHoursResult *bool
	ComplianceTime   *time.Time

	EscalationReason *string
}

// Apply merges the patch into the state. Append-only structures are
// appended, fill-only structures merged, scalars overwritten when present.
func (s *State) Apply(p Patch) {
	if p.Stage != nil {
		s.Stage = *p.Stage
	}
	if len(p.Qualification) > 0 {
		s.Qualification.Merge(p.Qualification)
	}
	if len(p.AppendLog) > 0 {
		s.CommLog = append(s.CommLog, p.AppendLog...)
	}
	if p.Handler != "" {
		s.CurrentHandler = p.Handler
		// Consecutive duplicates carry no information for the escalation
		// heuristics, so they are collapsed.
		if n := len(s.HandlerHistory); n == 0 || s.HandlerHistory[n-1] != p.Handler {
			s.HandlerHistory = append(s.HandlerHistory, p.Handler)
		}
	}
	if p.NextAction != nil {
		s.NextAction = *p.NextAction
	}
	if p.LastError != nil {
		s.LastError = *p.LastError
	}
	s.RetryCount += p.RetryDelta
	if p.Sentiment != nil {
		s.Sentiment = *p.Sentiment
	}
	if p.SMSFailed != nil {
		s.SMSFailed = *p.SMSFailed
	}
	if p.EmailFailed != nil {
		s.EmailFailed = *p.EmailFailed
	}
	if p.LastContactMethod != nil {
		s.LastContactMethod = *p.LastContactMethod
	}
	if p.LastContactTime != nil {
		s.LastContactTime = *p.LastContactTime
	}
	if p.BookingContext != nil {
		s.BookingContext = p.BookingContext
	}
	if p.BookingDetails != nil {
		s.BookingDetails = p.BookingDetails
	}
	s.TotalMessagesSent += p.MessagesSentDelta
	s.BookingAttempts += p.BookingAttemptsDelta
	s.NoShowCount += p.NoShowDelta
	for _, obj := range p.Objections {
		if !containsString(s.ObjectionsHandled, obj) {
			s.ObjectionsHandled = append(s.ObjectionsHandled, obj)
		}
	}
	if p.OptedOut != nil {
		s.Compliance.OptedOut = *p.OptedOut
	}
	if p.QuietHoursResult != nil {
		s.Compliance.LastQuietHours = *p.QuietHoursResult
	}
	if p.ComplianceTime != nil {
		s.Compliance.LastCheckedAt = *p.ComplianceTime
	}
	if p.EscalationReason != nil {
		s.EscalationReason = *p.EscalationReason
	}
	s.UpdatedAt = time.Now().UTC()
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func stagePtr(s Stage) *Stage        { return &s }
func actionPtr(a Action) *Action     { return &a }
func boolPtr(b bool) *bool           { return &b }
func stringPtr(s string) *string     { return &s }
func channelPtr(c Channel) *Channel  { return &c }
func timePtr(t time.Time) *time.Time { return &t }
