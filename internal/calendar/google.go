package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/pkg/logging"
)

// GoogleCalendar creates consultation events with Meet links on a Google
// calendar.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
	logger     *logging.Logger
}

// NewGoogleCalendar builds the calendar client. calendarID defaults to
// "primary". Credentials come from the provided client options.
func NewGoogleCalendar(ctx context.Context, calendarID string, logger *logging.Logger, opts ...option.ClientOption) (*GoogleCalendar, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = logging.Default()
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create service: %w", err)
	}
	return &GoogleCalendar{svc: svc, calendarID: calendarID, logger: logger}, nil
}

var _ conversation.CalendarService = (*GoogleCalendar)(nil)

// CreateEvent inserts the event with a Meet conference attached and invites
// the attendee.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, req conversation.CalendarEventRequest) (conversation.CalendarEvent, error) {
	if req.Start.IsZero() {
		return conversation.CalendarEvent{}, errors.New("calendar: start time required")
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 15
	}
	end := req.Start.Add(time.Duration(duration) * time.Minute)

	event := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: req.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId: uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}
	if req.AttendeeEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: req.AttendeeEmail}}
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return conversation.CalendarEvent{}, fmt.Errorf("calendar: failed to create event: %w", err)
	}

	meetLink := created.HangoutLink
	if meetLink == "" && created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				meetLink = ep.Uri
				break
			}
		}
	}

	g.logger.Info("calendar event created",
		"event_id", created.Id,
		"start", req.Start.Format(time.RFC3339),
		"attendee", req.AttendeeEmail,
	)
	return conversation.CalendarEvent{EventID: created.Id, MeetingLink: meetLink}, nil
}
