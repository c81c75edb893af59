package conversation

import (
	"context"
	"testing"

	"github.com/agentestate/outreach/internal/compliance"
)

func newTestSupervisor(gate *compliance.Gate) *Supervisor {
	if gate == nil {
		gate = openGate()
	}
	return NewSupervisor(gate, NewKeywordClassifier(), nil)
}

func TestSupervisorProactiveRoutesToSpecialist(t *testing.T) {
	sup := newTestSupervisor(nil)
	d := sup.Route(context.Background(), testState(), "")

	if d.Next != NodeSpecialist || d.Action != ActionInitialOutreach {
		t.Fatalf("next=%s action=%s", d.Next, d.Action)
	}
}

func TestSupervisorProactiveBlockedByOptOut(t *testing.T) {
	gate := compliance.NewGate(compliance.QuietHours{}, staticOptOuts{optedOut: true}, nil)
	sup := newTestSupervisor(gate)

	d := sup.Route(context.Background(), testState(), "")
	if d.Next != NodeEnd || d.Action != ActionComplianceFailed {
		t.Fatalf("next=%s action=%s", d.Next, d.Action)
	}
	if d.Patch.OptedOut == nil || !*d.Patch.OptedOut {
		t.Fatalf("opt-out not recorded")
	}
	if d.Patch.LastError == nil || *d.Patch.LastError != "compliance: opted_out" {
		t.Fatalf("last error = %v", d.Patch.LastError)
	}
}

func TestSupervisorInboundRouting(t *testing.T) {
	sup := newTestSupervisor(nil)
	ctx := context.Background()

	cases := []struct {
		text       string
		wantNext   Node
		wantAction Action
	}{
		{"not interested", NodeSpecialist, ActionNotInterested},
		{"can we schedule a call", NodeBooking, ActionReadyToBook},
		{"the price is too low", NodeSpecialist, ActionHandleObjection},
		{"what do you pay?", NodeSpecialist, ActionHandleObjection},
		{"yes I'm interested", NodeSpecialist, ActionContinueQualification},
		{"the house is vacant", NodeSpecialist, ActionContinueQualification},
	}
	for _, tc := range cases {
		d := sup.Route(ctx, testState(), tc.text)
		if d.Next != tc.wantNext || d.Action != tc.wantAction {
			t.Fatalf("%q routed next=%s action=%s, want %s/%s", tc.text, d.Next, d.Action, tc.wantNext, tc.wantAction)
		}
	}
}

func TestSupervisorInboundMarksResponding(t *testing.T) {
	sup := newTestSupervisor(nil)
	st := testState()

	d := sup.Route(context.Background(), st, "yes")
	if d.Patch.Stage == nil || *d.Patch.Stage != StageResponding {
		t.Fatalf("stage patch = %v", d.Patch.Stage)
	}
	if d.Patch.Sentiment == nil {
		t.Fatalf("sentiment not recorded")
	}
}

func TestSupervisorBookingStageStickiness(t *testing.T) {
	sup := newTestSupervisor(nil)
	st := testState()
	st.Stage = StageBooking

	// An unknown reply in the booking stage still goes to the booking agent.
	d := sup.Route(context.Background(), st, "tuesday works")
	if d.Next != NodeBooking || d.Action != ActionReadyToBook {
		t.Fatalf("next=%s action=%s", d.Next, d.Action)
	}

	// A decline mid-booking is closed out by the booking agent.
	d = sup.Route(context.Background(), st, "not interested")
	if d.Next != NodeBooking || d.Action != ActionNotInterested {
		t.Fatalf("decline: next=%s action=%s", d.Next, d.Action)
	}

	// Outside the booking flow a decline goes to the specialist.
	st.Stage = StageQualifying
	d = sup.Route(context.Background(), st, "not interested")
	if d.Next != NodeSpecialist || d.Action != ActionNotInterested {
		t.Fatalf("qualifying decline: next=%s action=%s", d.Next, d.Action)
	}

	// A scheduled lead mentioning the call again is never knocked back to
	// the booking stage.
	st.Stage = StageScheduled
	d = sup.Route(context.Background(), st, "call me before the appointment")
	if d.Next != NodeBooking || d.Patch.Stage != nil {
		t.Fatalf("scheduled: next=%s stage patch=%v", d.Next, d.Patch.Stage)
	}
}

func TestShouldEscalate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*State)
		want   string
	}{
		{"retries", func(st *State) { st.RetryCount = 4 }, "retry_count_exceeded"},
		{"booking", func(st *State) { st.BookingAttempts = 4 }, "booking_attempts_exceeded"},
		{"objections", func(st *State) {
			st.ObjectionsHandled = []string{"a", "b", "c", "d", "e", "f"}
		}, "objection_count_exceeded"},
		{"sentiment", func(st *State) { st.Sentiment = "negative" }, "negative_sentiment"},
		{"no-shows", func(st *State) { st.NoShowCount = 3 }, "no_show_count_exceeded"},
		{"legal", func(st *State) { st.LastError = "lead mentioned legal action" }, "legal_mention"},
	}
	for _, tc := range cases {
		st := testState()
		tc.mutate(st)
		reason, ok := ShouldEscalate(st)
		if !ok || reason != tc.want {
			t.Fatalf("%s: reason=%q ok=%v", tc.name, reason, ok)
		}
	}

	if reason, ok := ShouldEscalate(testState()); ok {
		t.Fatalf("fresh state escalated: %q", reason)
	}

	st := testState()
	st.RetryCount = 3
	if _, ok := ShouldEscalate(st); ok {
		t.Fatalf("threshold value should not escalate")
	}
}
