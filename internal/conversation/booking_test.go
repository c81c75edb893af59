package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agentestate/outreach/internal/leads"
)

type fakeCalendar struct {
	event CalendarEvent
	err   error
	reqs  []CalendarEventRequest
}

func (c *fakeCalendar) CreateEvent(_ context.Context, req CalendarEventRequest) (CalendarEvent, error) {
	c.reqs = append(c.reqs, req)
	return c.event, c.err
}

func TestParseTimeSelection(t *testing.T) {
	cases := []struct {
		text     string
		wantExpr string
		clock    bool
		dayPart  bool
	}{
		{"tomorrow at 2pm works", "tomorrow 2pm", true, true},
		{"how about tuesday morning", "tuesday morning", false, true},
		{"3:30pm", "3:30pm", true, false},
		{"14:30 is fine", "14:30", true, false},
		{"whatever works", "", false, false},
	}
	for _, tc := range cases {
		expr, clock, dayPart := parseTimeSelection(tc.text)
		if expr != tc.wantExpr || clock != tc.clock || dayPart != tc.dayPart {
			t.Fatalf("%q => (%q,%v,%v), want (%q,%v,%v)", tc.text, expr, clock, dayPart, tc.wantExpr, tc.clock, tc.dayPart)
		}
	}
}

func TestResolveTimeExpression(t *testing.T) {
	// A Tuesday at 09:00 UTC.
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got := resolveTimeExpression("tomorrow 2pm", now)
	want := time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("tomorrow 2pm = %v, want %v", got, want)
	}

	got = resolveTimeExpression("friday morning", now)
	want = time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("friday morning = %v, want %v", got, want)
	}

	// Same weekday rolls a full week forward.
	got = resolveTimeExpression("tuesday evening", now)
	want = time.Date(2026, 3, 17, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("tuesday evening = %v, want %v", got, want)
	}

	// Unresolvable text defaults to 14:00, bumped a day once it has passed.
	got = resolveTimeExpression("whenever", now)
	want = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("default = %v, want %v", got, want)
	}
	got = resolveTimeExpression("whenever", now.Add(8*time.Hour))
	want = time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("passed default = %v, want %v", got, want)
	}
}

func TestBookingTimeAndEmailCreatesEvent(t *testing.T) {
	cal := &fakeCalendar{event: CalendarEvent{EventID: "evt-1", MeetingLink: "https://meet.example/abc"}}
	agent := NewBookingAgent(cal, nil, 15, nil)
	st := testState()

	d := agent.Handle(context.Background(), st, "tomorrow at 2pm, send it to jane@example.com")
	if d.Action != ActionScheduled {
		t.Fatalf("action = %s", d.Action)
	}
	if d.Patch.Stage == nil || *d.Patch.Stage != StageScheduled {
		t.Fatalf("stage patch = %v", d.Patch.Stage)
	}
	details := d.Patch.BookingDetails
	if details == nil || details.Status != BookingConfirmed || details.CalendarEventID != "evt-1" {
		t.Fatalf("details = %+v", details)
	}
	if len(cal.reqs) != 1 || cal.reqs[0].AttendeeEmail != "jane@example.com" {
		t.Fatalf("calendar request = %+v", cal.reqs)
	}
	if d.Message == nil || !strings.Contains(d.Message.Body, "jane@example.com") {
		t.Fatalf("confirmation = %+v", d.Message)
	}
}

func TestBookingTimeOnlyAsksForEmail(t *testing.T) {
	agent := NewBookingAgent(&fakeCalendar{}, nil, 15, nil)
	st := testState()

	d := agent.Handle(context.Background(), st, "tuesday at 3pm")
	if d.Action != ActionSendMessage {
		t.Fatalf("action = %s", d.Action)
	}
	if d.Patch.NextAction == nil || *d.Patch.NextAction != ActionSendMessage {
		t.Fatalf("next action patch = %v", d.Patch.NextAction)
	}
	if d.Message == nil || !strings.Contains(d.Message.Body, "best email") {
		t.Fatalf("prompt = %+v", d.Message)
	}
	if d.Patch.BookingContext == nil || d.Patch.BookingContext.ConfirmedTime == "" {
		t.Fatalf("time not captured: %+v", d.Patch.BookingContext)
	}
	if d.Patch.BookingAttemptsDelta != 1 {
		t.Fatalf("attempts delta = %d", d.Patch.BookingAttemptsDelta)
	}
}

func TestBookingEmailCompletesCapturedTime(t *testing.T) {
	cal := &fakeCalendar{event: CalendarEvent{EventID: "evt-2"}}
	agent := NewBookingAgent(cal, nil, 15, nil)
	st := testState()
	st.BookingContext = &BookingContext{ConfirmedTime: "tuesday 3pm"}

	d := agent.Handle(context.Background(), st, "jane@example.com")
	if d.Action != ActionScheduled {
		t.Fatalf("action = %s", d.Action)
	}
	if len(cal.reqs) != 1 {
		t.Fatalf("calendar not called")
	}
}

func TestBookingAffirmativeOffersChoices(t *testing.T) {
	agent := NewBookingAgent(&fakeCalendar{}, nil, 15, nil)
	st := testState()

	d := agent.Handle(context.Background(), st, "sure!")
	if d.Message == nil || d.Message.Body != DefaultBookingTemplates().OfferChoices {
		t.Fatalf("prompt = %+v", d.Message)
	}
}

func TestBookingOpenQuestionRotates(t *testing.T) {
	agent := NewBookingAgent(&fakeCalendar{}, nil, 15, nil)
	st := testState()
	questions := DefaultBookingTemplates().OpenQuestions

	d := agent.Handle(context.Background(), st, "hmm let me see")
	if d.Message.Body != questions[0] {
		t.Fatalf("first prompt = %q", d.Message.Body)
	}

	st.BookingContext = d.Patch.BookingContext
	d = agent.Handle(context.Background(), st, "still thinking")
	if d.Message.Body != questions[1] {
		t.Fatalf("prompt repeated: %q", d.Message.Body)
	}
}

func TestBookingCalendarFailureDegrades(t *testing.T) {
	cal := &fakeCalendar{err: errors.New("calendar unavailable")}
	agent := NewBookingAgent(cal, nil, 15, nil)
	st := testState()
	st.BookingContext = &BookingContext{ConfirmedTime: "tomorrow 2pm", ConfirmedEmail: "jane@example.com"}

	d := agent.Handle(context.Background(), st, "")
	if d.Action != ActionScheduled {
		t.Fatalf("action = %s", d.Action)
	}
	details := d.Patch.BookingDetails
	if details == nil || details.Status != BookingPendingManual {
		t.Fatalf("details = %+v", details)
	}
	if d.Message == nil || !strings.Contains(d.Message.Body, "calendar invite shortly") {
		t.Fatalf("degraded confirmation = %+v", d.Message)
	}
	if d.Patch.LastError == nil {
		t.Fatalf("calendar error not recorded")
	}
}

func TestBookingNilCalendarPendsManual(t *testing.T) {
	agent := NewBookingAgent(nil, nil, 15, nil)
	st := testState()
	st.BookingContext = &BookingContext{ConfirmedTime: "tomorrow 2pm", ConfirmedEmail: "jane@example.com"}

	d := agent.Handle(context.Background(), st, "")
	if d.Patch.BookingDetails == nil || d.Patch.BookingDetails.Status != BookingPendingManual {
		t.Fatalf("details = %+v", d.Patch.BookingDetails)
	}
}

func TestBookingSuppressedConfirmation(t *testing.T) {
	cal := &fakeCalendar{event: CalendarEvent{EventID: "evt-3"}}
	agent := NewBookingAgent(cal, nil, 15, nil)
	st := testState()
	st.BookingContext = &BookingContext{ConfirmedTime: "tomorrow 2pm", ConfirmedEmail: "jane@example.com", SuppressMessage: true}

	d := agent.Handle(context.Background(), st, "")
	if d.Next != NodeEnd || d.Action != ActionScheduledNoMessage {
		t.Fatalf("next=%s action=%s", d.Next, d.Action)
	}
	if d.Message != nil {
		t.Fatalf("message emitted despite suppression")
	}
}

func TestBookingScheduledReplyDoesNotRebook(t *testing.T) {
	cal := &fakeCalendar{event: CalendarEvent{EventID: "evt-1"}}
	agent := NewBookingAgent(cal, nil, 15, nil)
	st := testState()
	st.Stage = StageScheduled
	st.BookingContext = &BookingContext{ConfirmedTime: "tomorrow 2pm", ConfirmedEmail: "jane@example.com"}
	st.BookingDetails = &BookingDetails{
		ScheduledTime:   "tomorrow 2pm",
		DurationMinutes: 15,
		CalendarEventID: "evt-1",
		Status:          BookingConfirmed,
	}

	d := agent.Handle(context.Background(), st, "thanks, see you then")
	if len(cal.reqs) != 0 {
		t.Fatalf("calendar called %d times for a booked lead", len(cal.reqs))
	}
	if d.Action != ActionSendMessage {
		t.Fatalf("action = %s", d.Action)
	}
	if d.Message == nil || !strings.Contains(d.Message.Body, "confirmed for tomorrow 2pm") {
		t.Fatalf("acknowledgment = %+v", d.Message)
	}
	if d.Patch.BookingDetails != nil || d.Patch.BookingAttemptsDelta != 0 {
		t.Fatalf("booked lead re-patched: %+v", d.Patch)
	}

	// The guard keys off the booking details, not the stage.
	st.Stage = StageBooking
	d = agent.Handle(context.Background(), st, "looking forward to the appointment")
	if len(cal.reqs) != 0 {
		t.Fatalf("calendar called %d times for a booked lead", len(cal.reqs))
	}
	if d.Message == nil || !strings.Contains(d.Message.Body, "confirmed for tomorrow 2pm") {
		t.Fatalf("acknowledgment = %+v", d.Message)
	}
}

func TestBookingDeclineClosesThroughSpecialist(t *testing.T) {
	agent := NewBookingAgent(nil, nil, 15, nil)
	spec := NewSpecialist(leads.PropertyFixFlip, NewExtractor(nil, nil), nil)
	st := testState()
	st.Stage = StageBooking

	d := agent.HandleDecline(st, spec)
	if d.Patch.Handler != string(NodeBooking) {
		t.Fatalf("handler = %q", d.Patch.Handler)
	}
	if d.Patch.Stage == nil || *d.Patch.Stage != StageNotInterested {
		t.Fatalf("stage patch = %v", d.Patch.Stage)
	}
	if d.Message == nil || !strings.Contains(d.Message.Body, "No problem at all") {
		t.Fatalf("closure = %+v", d.Message)
	}

	d = agent.HandleDecline(st, nil)
	if d.Next != NodeEnd || d.Message != nil {
		t.Fatalf("nil specialist: %+v", d)
	}
}

func TestBookingNoShowLadder(t *testing.T) {
	agent := NewBookingAgent(nil, nil, 15, nil)
	ladder := DefaultBookingTemplates().NoShowLadder

	for _, tc := range []struct {
		count int
		idx   int
	}{{0, 0}, {1, 1}, {2, 2}, {5, 2}} {
		st := testState()
		st.NoShowCount = tc.count
		d := agent.NoShow(st)
		want := strings.ReplaceAll(ladder[tc.idx], "{name}", "Jane")
		if d.Message == nil || d.Message.Body != want {
			t.Fatalf("count %d: body = %q", tc.count, d.Message.Body)
		}
		if d.Patch.NoShowDelta != 1 {
			t.Fatalf("no-show delta = %d", d.Patch.NoShowDelta)
		}
	}
}
