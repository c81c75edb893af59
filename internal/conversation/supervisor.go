package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/agentestate/outreach/internal/compliance"
	"github.com/agentestate/outreach/pkg/logging"
)

// Supervisor is the graph entry point. It runs the compliance gate, classifies
// inbound text, and routes the turn to the specialist or the booking agent.
type Supervisor struct {
	gate       *compliance.Gate
	classifier IntentClassifier
	logger     *logging.Logger
	now        func() time.Time
}

// NewSupervisor builds the supervisor.
func NewSupervisor(gate *compliance.Gate, classifier IntentClassifier, logger *logging.Logger) *Supervisor {
	if gate == nil {
		panic("conversation: compliance gate cannot be nil")
	}
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Supervisor{
		gate:       gate,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Supervisor) preferredContact(st *State) string {
	if st.Phone != "" {
		return st.Phone
	}
	return st.Email
}

// Route decides where an empty-inbound (proactive) or inbound turn goes.
// Proactive turns run the compliance gate before anything else; inbound turns
// are classified and dispatched by intent.
func (s *Supervisor) Route(ctx context.Context, st *State, inbound string) Decision {
	now := s.now().UTC()
	patch := Patch{Handler: string(NodeSupervisor)}

	if strings.TrimSpace(inbound) == "" {
		return s.routeProactive(ctx, st, now, patch)
	}
	return s.routeInbound(ctx, st, inbound, patch)
}

// routeProactive gates the first touch. Anything the gate blocks ends the
// turn; the worker owns rescheduling around quiet hours.
func (s *Supervisor) routeProactive(ctx context.Context, st *State, now time.Time, patch Patch) Decision {
	res := s.gate.Check(ctx, s.preferredContact(st), now, compliance.PurposeOutreach)
	patch.ComplianceTime = timePtr(now)
	patch.QuietHoursResult = boolPtr(res.Reason == compliance.ReasonQuietHours)
	if !res.Compliant {
		if res.Reason == compliance.ReasonOptedOut {
			patch.OptedOut = boolPtr(true)
		}
		patch.NextAction = actionPtr(ActionComplianceFailed)
		patch.LastError = stringPtr("compliance: " + res.Reason)
		s.logger.Info("proactive turn blocked", "lead_id", st.LeadID, "reason", res.Reason)
		return Decision{Next: NodeEnd, Action: ActionComplianceFailed, Patch: patch}
	}

	patch.NextAction = actionPtr(ActionInitialOutreach)
	return Decision{Next: NodeSpecialist, Action: ActionInitialOutreach, Patch: patch}
}

// routeInbound classifies the reply and dispatches by intent. A lead already
// in the booking stage keeps talking to the booking agent; a decline there is
// closed out by the booking agent as well.
func (s *Supervisor) routeInbound(ctx context.Context, st *State, inbound string, patch Patch) Decision {
	cls, err := s.classifier.Classify(ctx, inbound, st)
	if err != nil {
		// Only possible with a bare LLM classifier; treat as unknown.
		s.logger.Warn("intent classification failed", "lead_id", st.LeadID, "error", err)
		cls = Classification{Intent: IntentUnknown, Sentiment: "neutral"}
	}
	patch.Sentiment = stringPtr(cls.Sentiment)
	if st.Stage == StageInitial || st.Stage == StageFollowUp {
		patch.Stage = stagePtr(StageResponding)
	}

	switch {
	case cls.Intent == IntentNotInterested:
		patch.NextAction = actionPtr(ActionNotInterested)
		if st.Stage == StageBooking || st.Stage == StageScheduled {
			return Decision{Next: NodeBooking, Action: ActionNotInterested, Patch: patch}
		}
		return Decision{Next: NodeSpecialist, Action: ActionNotInterested, Patch: patch}
	case cls.Intent == IntentReadyToBook || st.Stage == StageBooking || st.Stage == StageScheduled:
		if cls.Intent == IntentReadyToBook && st.Stage != StageBooking && st.Stage != StageScheduled {
			patch.Stage = stagePtr(StageBooking)
		}
		patch.NextAction = actionPtr(ActionReadyToBook)
		return Decision{Next: NodeBooking, Action: ActionReadyToBook, Patch: patch}
	case cls.Intent == IntentObjection || cls.Intent == IntentQuestion:
		patch.NextAction = actionPtr(ActionHandleObjection)
		return Decision{Next: NodeSpecialist, Action: ActionHandleObjection, Patch: patch}
	default:
		patch.NextAction = actionPtr(ActionContinueQualification)
		return Decision{Next: NodeSpecialist, Action: ActionContinueQualification, Patch: patch}
	}
}

// Escalation thresholds. Crossing any of them flags the conversation for a
// human; the graph keeps running either way.
const (
	maxRetries         = 3
	maxBookingAttempts = 3
	maxObjections      = 5
	maxNoShows         = 2
)

// ShouldEscalate reports whether the conversation needs human attention and
// why. The signal is advisory: it marks the state, it never halts the graph.
func ShouldEscalate(st *State) (string, bool) {
	switch {
	case st.RetryCount > maxRetries:
		return "retry_count_exceeded", true
	case st.BookingAttempts > maxBookingAttempts:
		return "booking_attempts_exceeded", true
	case len(st.ObjectionsHandled) > maxObjections:
		return "objection_count_exceeded", true
	case st.Sentiment == "negative":
		return "negative_sentiment", true
	case st.NoShowCount > maxNoShows:
		return "no_show_count_exceeded", true
	case strings.Contains(strings.ToLower(st.LastError), "legal"):
		return "legal_mention", true
	}
	return "", false
}
