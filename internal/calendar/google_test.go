package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/agentestate/outreach/internal/conversation"
)

func TestCreateEvent(t *testing.T) {
	var gotPath, gotQuery string
	var gotEvent gcal.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotEvent)
		_ = json.NewEncoder(w).Encode(&gcal.Event{
			Id:          "evt-1",
			HangoutLink: "https://meet.google.com/abc-defg-hij",
		})
	}))
	defer srv.Close()

	cal, err := NewGoogleCalendar(context.Background(), "", nil,
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	start := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)
	event, err := cal.CreateEvent(context.Background(), conversation.CalendarEventRequest{
		Title:           "Property consultation",
		Description:     "12 Oak St",
		Start:           start,
		DurationMinutes: 15,
		AttendeeEmail:   "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", event.MeetingLink)

	assert.Contains(t, gotPath, "/calendars/primary/events")
	assert.Contains(t, gotQuery, "conferenceDataVersion=1")
	assert.Contains(t, gotQuery, "sendUpdates=all")

	assert.Equal(t, "Property consultation", gotEvent.Summary)
	require.Len(t, gotEvent.Attendees, 1)
	assert.Equal(t, "jane@example.com", gotEvent.Attendees[0].Email)
	assert.Equal(t, start.Format(time.RFC3339), gotEvent.Start.DateTime)
	assert.Equal(t, start.Add(15*time.Minute).Format(time.RFC3339), gotEvent.End.DateTime)
	require.NotNil(t, gotEvent.ConferenceData)
	assert.Equal(t, "hangoutsMeet", gotEvent.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)
}

func TestCreateEventMeetLinkFromEntryPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(&gcal.Event{
			Id: "evt-2",
			ConferenceData: &gcal.ConferenceData{
				EntryPoints: []*gcal.EntryPoint{
					{EntryPointType: "phone", Uri: "tel:+15550000000"},
					{EntryPointType: "video", Uri: "https://meet.google.com/xyz"},
				},
			},
		})
	}))
	defer srv.Close()

	cal, err := NewGoogleCalendar(context.Background(), "team-calendar", nil,
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	event, err := cal.CreateEvent(context.Background(), conversation.CalendarEventRequest{
		Start: time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://meet.google.com/xyz", event.MeetingLink)
}

func TestCreateEventRequiresStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	cal, err := NewGoogleCalendar(context.Background(), "", nil,
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = cal.CreateEvent(context.Background(), conversation.CalendarEventRequest{})
	require.Error(t, err)
}
