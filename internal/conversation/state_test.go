package conversation

import (
	"testing"
	"time"

	"github.com/agentestate/outreach/internal/leads"
)

func testLead() *leads.Lead {
	return &leads.Lead{
		ID:              "lead-1",
		CampaignID:      "camp-1",
		Name:            "Jane Seller",
		PropertyAddress: "12 Oak St",
		PropertyType:    leads.PropertyFixFlip,
		Email:           "jane@example.com",
		Phone:           "+15551230001",
	}
}

func testState() *State {
	return NewState(testLead())
}

func TestQualificationMergeFillOnly(t *testing.T) {
	q := QualificationData{Condition: "good"}

	filled := q.Merge(map[string]string{
		"condition":        "needs_work",
		"timeline":         "asap",
		"occupancy_status": "unknown",
		"repairs_needed":   "",
	})

	if q.Condition != "good" {
		t.Fatalf("existing value overwritten: %q", q.Condition)
	}
	if q.Timeline != "asap" {
		t.Fatalf("empty field not filled: %q", q.Timeline)
	}
	if q.OccupancyStatus != "" {
		t.Fatalf("sentinel value stored: %q", q.OccupancyStatus)
	}
	if len(filled) != 1 || filled[0] != "timeline" {
		t.Fatalf("unexpected filled list: %v", filled)
	}
}

func TestQualificationMergeCustomFields(t *testing.T) {
	q := QualificationData{}
	q.Merge(map[string]string{"hoa": "yes"})
	if q.Get("hoa") != "yes" {
		t.Fatalf("custom field not stored")
	}
	q.Merge(map[string]string{"hoa": "no"})
	if q.Get("hoa") != "yes" {
		t.Fatalf("custom field overwritten")
	}
}

func TestCountSentTodayCountsFailures(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	st := testState()
	st.CommLog = []CommAttempt{
		{Channel: ChannelSMS, Timestamp: now.Add(-2 * time.Hour), Success: true},
		{Channel: ChannelSMS, Timestamp: now.Add(-1 * time.Hour), Success: false},
		{Channel: ChannelSMS, Timestamp: now.AddDate(0, 0, -1), Success: true},
		{Channel: ChannelEmail, Timestamp: now.Add(-1 * time.Hour), Success: true},
	}

	if got := st.CountSentToday(ChannelSMS, now); got != 2 {
		t.Fatalf("sms count = %d, want 2", got)
	}
	if got := st.CountSentToday(ChannelEmail, now); got != 1 {
		t.Fatalf("email count = %d, want 1", got)
	}
}

func TestFailedRecentlyWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	st := testState()

	st.CommLog = []CommAttempt{{Channel: ChannelSMS, Timestamp: now.Add(-23 * time.Hour), Success: false}}
	if !st.FailedRecently(ChannelSMS, now) {
		t.Fatalf("sms failure inside 24h window not detected")
	}

	st.CommLog = []CommAttempt{{Channel: ChannelSMS, Timestamp: now.Add(-25 * time.Hour), Success: false}}
	if st.FailedRecently(ChannelSMS, now) {
		t.Fatalf("sms failure outside 24h window still blocking")
	}

	st.CommLog = []CommAttempt{
		{Channel: ChannelSMS, Timestamp: now.Add(-2 * time.Hour), Success: false},
		{Channel: ChannelSMS, Timestamp: now.Add(-1 * time.Hour), Success: true},
	}
	if st.FailedRecently(ChannelSMS, now) {
		t.Fatalf("success after failure should clear the window")
	}

	st.CommLog = []CommAttempt{{Channel: ChannelEmail, Timestamp: now.Add(-5 * time.Hour), Success: false}}
	if !st.FailedRecently(ChannelEmail, now) {
		t.Fatalf("email failure inside 6h window not detected")
	}
	st.CommLog = []CommAttempt{{Channel: ChannelEmail, Timestamp: now.Add(-7 * time.Hour), Success: false}}
	if st.FailedRecently(ChannelEmail, now) {
		t.Fatalf("email failure outside 6h window still blocking")
	}
}

func TestApplyCollapsesHandlerHistory(t *testing.T) {
	st := testState()
	st.Apply(Patch{Handler: "supervisor"})
	st.Apply(Patch{Handler: "supervisor"})
	st.Apply(Patch{Handler: "specialist_fix_flip"})
	st.Apply(Patch{Handler: "supervisor"})

	want := []string{"supervisor", "specialist_fix_flip", "supervisor"}
	if len(st.HandlerHistory) != len(want) {
		t.Fatalf("history = %v, want %v", st.HandlerHistory, want)
	}
	for i := range want {
		if st.HandlerHistory[i] != want[i] {
			t.Fatalf("history = %v, want %v", st.HandlerHistory, want)
		}
	}
}

func TestApplyDeduplicatesObjections(t *testing.T) {
	st := testState()
	st.Apply(Patch{Objections: []string{"price too low"}})
	st.Apply(Patch{Objections: []string{"price too low", "has an agent"}})

	if len(st.ObjectionsHandled) != 2 {
		t.Fatalf("objections = %v", st.ObjectionsHandled)
	}
}

func TestApplyCounters(t *testing.T) {
	st := testState()
	st.Apply(Patch{MessagesSentDelta: 1, BookingAttemptsDelta: 1, NoShowDelta: 1, RetryDelta: 2})
	st.Apply(Patch{MessagesSentDelta: 1})

	if st.TotalMessagesSent != 2 || st.BookingAttempts != 1 || st.NoShowCount != 1 || st.RetryCount != 2 {
		t.Fatalf("counters = %d %d %d %d", st.TotalMessagesSent, st.BookingAttempts, st.NoShowCount, st.RetryCount)
	}
}
