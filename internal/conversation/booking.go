package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agentestate/outreach/internal/compliance"
	"github.com/agentestate/outreach/pkg/logging"
)

// CalendarEventRequest asks the external scheduler for a consultation slot.
type CalendarEventRequest struct {
	Title           string
	Description     string
	Start           time.Time
	DurationMinutes int
	AttendeeEmail   string
}

// CalendarEvent is the created event.
type CalendarEvent struct {
	EventID     string
	MeetingLink string
}

// CalendarService is the external scheduling collaborator.
type CalendarService interface {
	CreateEvent(ctx context.Context, req CalendarEventRequest) (CalendarEvent, error)
}

var (
	emailInTextRE = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	clockTimeRE   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24RE     = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

var dayWords = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"today", "tomorrow", "tonight",
}

var dayPartWords = []string{
	"morning", "afternoon", "evening", "this week", "next week", "weekend", "noon",
}

var affirmativeWords = []string{"yes", "sure", "ok", "okay", "yep", "yeah", "sounds good", "works for me"}

// parseTimeSelection pulls a clock time and/or day reference out of the
// message. It returns a normalized display expression ("tomorrow 2pm") and
// which components were present.
func parseTimeSelection(text string) (expr string, hasClock bool, hasDayPart bool) {
	lower := strings.ToLower(text)

	var parts []string
	for _, day := range dayWords {
		if strings.Contains(lower, day) {
			parts = append(parts, day)
			hasDayPart = true
			break
		}
	}
	for _, part := range dayPartWords {
		if strings.Contains(lower, part) {
			parts = append(parts, part)
			hasDayPart = true
			break
		}
	}

	if m := clockTimeRE.FindStringSubmatch(lower); m != nil {
		hasClock = true
		clock := m[1]
		if m[2] != "" {
			clock += ":" + m[2]
		}
		parts = append(parts, clock+m[3])
	} else if m := clock24RE.FindStringSubmatch(lower); m != nil {
		hasClock = true
		parts = append(parts, m[1]+":"+m[2])
	}

	return strings.Join(parts, " "), hasClock, hasDayPart
}

func isAffirmativeOnly(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.Trim(lower, ".!")
	for _, w := range affirmativeWords {
		if lower == w {
			return true
		}
	}
	return false
}

// resolveTimeExpression turns a display expression into a concrete start
// time. Unresolvable expressions default to the next day at 14:00; the call
// is confirmed on the phone anyway, the invite anchors it.
func resolveTimeExpression(expr string, now time.Time) time.Time {
	lower := strings.ToLower(expr)
	day := now

	switch {
	case strings.Contains(lower, "tomorrow"):
		day = now.AddDate(0, 0, 1)
	case strings.Contains(lower, "next week"):
		day = now.AddDate(0, 0, 7)
	case strings.Contains(lower, "weekend"):
		offset := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		day = now.AddDate(0, 0, offset)
	default:
		for i, name := range []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
			if strings.Contains(lower, name) {
				offset := (i - int(now.Weekday()) + 7) % 7
				if offset == 0 {
					offset = 7
				}
				day = now.AddDate(0, 0, offset)
				break
			}
		}
	}

	hour, minute := 14, 0
	if m := clockTimeRE.FindStringSubmatch(lower); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if m[3] == "pm" && hour < 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
	} else if m := clock24RE.FindStringSubmatch(lower); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
	} else {
		switch {
		case strings.Contains(lower, "morning"):
			hour = 10
		case strings.Contains(lower, "noon"):
			hour = 12
		case strings.Contains(lower, "evening"), strings.Contains(lower, "tonight"):
			hour = 18
		}
	}

	resolved := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
	if !resolved.After(now) {
		resolved = resolved.AddDate(0, 0, 1)
	}
	return resolved
}

// BookingAgent manages the booking sub-flow: collecting a time and email,
// creating the calendar event, and handling no-shows.
type BookingAgent struct {
	calendar        CalendarService
	templates       *BookingTemplates
	durationMinutes int
	logger          *logging.Logger
	now             func() time.Time
}

// NewBookingAgent builds the booking agent. calendar may be nil; every
// booking then takes the degraded manual-follow-up path.
func NewBookingAgent(calendar CalendarService, templates *BookingTemplates, durationMinutes int, logger *logging.Logger) *BookingAgent {
	if templates == nil {
		templates = DefaultBookingTemplates()
	}
	if durationMinutes <= 0 {
		durationMinutes = 15
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingAgent{
		calendar:        calendar,
		templates:       templates,
		durationMinutes: durationMinutes,
		logger:          logger,
		now:             time.Now,
	}
}

// Handle advances the booking state machine one step for an inbound message.
// With a confirmed time and email already in context the message is not
// consulted; the calendar event is created directly. A lead whose event
// already exists gets an acknowledgment; the calendar is called exactly once
// per booking.
func (b *BookingAgent) Handle(ctx context.Context, st *State, text string) Decision {
	bctx := BookingContext{}
	if st.BookingContext != nil {
		bctx = *st.BookingContext
	}

	if st.BookingDetails != nil {
		return b.acknowledgeScheduled(st)
	}

	if bctx.ConfirmedTime != "" && bctx.ConfirmedEmail != "" {
		return b.createEvent(ctx, st, bctx)
	}

	email := emailInTextRE.FindString(text)
	expr, hasClock, hasDayPart := parseTimeSelection(text)

	if bctx.ConfirmedEmail == "" && email != "" {
		bctx.ConfirmedEmail = email
	}
	if bctx.ConfirmedTime == "" && (hasClock || hasDayPart) {
		bctx.ConfirmedTime = expr
	}

	if bctx.ConfirmedTime != "" && bctx.ConfirmedEmail != "" {
		return b.createEvent(ctx, st, bctx)
	}

	vars := st.templateVars()
	switch {
	case bctx.ConfirmedTime != "":
		vars["time"] = bctx.ConfirmedTime
		return b.prompt(st, bctx, renderTemplate(b.templates.AskEmail, vars))
	case isAffirmativeOnly(text):
		return b.prompt(st, bctx, renderTemplate(b.templates.OfferChoices, vars))
	default:
		return b.prompt(st, bctx, b.nextOpenQuestion(st, bctx))
	}
}

// acknowledgeScheduled answers a reply that arrives after the event exists.
// It restates the booked time and never touches the calendar again.
func (b *BookingAgent) acknowledgeScheduled(st *State) Decision {
	vars := st.templateVars()
	vars["time"] = st.BookingDetails.ScheduledTime
	return Decision{
		Next:   NodeRouter,
		Action: ActionSendMessage,
		Patch: Patch{
			Handler:    string(NodeBooking),
			NextAction: actionPtr(ActionSendMessage),
		},
		Message: &OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Body:       renderTemplate(b.templates.AlreadyScheduled, vars),
			Purpose:    compliance.PurposeReply,
		},
	}
}

// nextOpenQuestion rotates the open scheduling prompts so the identical
// question is never sent twice in a row.
func (b *BookingAgent) nextOpenQuestion(st *State, bctx BookingContext) string {
	previous := bctx.LastPrompt
	if previous == "" {
		previous = st.LastOutboundBody()
	}
	for _, q := range b.templates.OpenQuestions {
		if q != previous {
			return q
		}
	}
	return b.templates.OpenQuestions[0]
}

func (b *BookingAgent) prompt(st *State, bctx BookingContext, body string) Decision {
	bctx.LastPrompt = body
	stage := StageBooking
	return Decision{
		Next:   NodeRouter,
		Action: ActionSendMessage,
		Patch: Patch{
			Handler:              string(NodeBooking),
			Stage:                &stage,
			BookingContext:       &bctx,
			BookingAttemptsDelta: 1,
			NextAction:           actionPtr(ActionSendMessage),
		},
		Message: &OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Body:       body,
			Purpose:    compliance.PurposeReply,
		},
	}
}

// createEvent attempts the external calendar creation, degrading to a
// verbal confirmation with a manual follow-up when the scheduler fails.
func (b *BookingAgent) createEvent(ctx context.Context, st *State, bctx BookingContext) Decision {
	vars := st.templateVars()
	vars["time"] = bctx.ConfirmedTime
	vars["email"] = bctx.ConfirmedEmail

	start := resolveTimeExpression(bctx.ConfirmedTime, b.now().UTC())
	title := b.templates.MeetingTitles[st.PropertyType]
	if title == "" {
		title = "Cash offer call"
	}

	details := &BookingDetails{
		ScheduledTime:       bctx.ConfirmedTime,
		DurationMinutes:     b.durationMinutes,
		ConfirmationChannel: st.LastContactMethod,
	}
	patch := Patch{
		Handler:        string(NodeBooking),
		Stage:          stagePtr(StageScheduled),
		BookingContext: &bctx,
		BookingDetails: details,
	}

	var body string
	if b.calendar == nil {
		details.Status = BookingPendingManual
		body = renderTemplate(b.templates.DegradedConfirmation, vars)
	} else {
		event, err := b.calendar.CreateEvent(ctx, CalendarEventRequest{
			Title:           title,
			Description:     fmt.Sprintf("Consultation with %s about %s", st.LeadName, st.PropertyAddress),
			Start:           start,
			DurationMinutes: b.durationMinutes,
			AttendeeEmail:   bctx.ConfirmedEmail,
		})
		if err != nil {
			b.logger.Warn("calendar creation failed; booking pending manual follow-up", "lead_id", st.LeadID, "error", err)
			details.Status = BookingPendingManual
			patch.LastError = stringPtr(err.Error())
			body = renderTemplate(b.templates.DegradedConfirmation, vars)
		} else {
			details.Status = BookingConfirmed
			details.CalendarEventID = event.EventID
			details.MeetingLink = event.MeetingLink
			body = renderTemplate(b.templates.Confirmation, vars)
		}
	}

	if bctx.SuppressMessage {
		patch.NextAction = actionPtr(ActionScheduledNoMessage)
		return Decision{Next: NodeEnd, Action: ActionScheduledNoMessage, Patch: patch}
	}

	patch.NextAction = actionPtr(ActionScheduled)
	return Decision{
		Next:   NodeRouter,
		Action: ActionScheduled,
		Patch:  patch,
		Message: &OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Body:       body,
			Purpose:    compliance.PurposeReply,
		},
	}
}

// NoShow emits the escalating no-show message for the lead's current count.
// The counter only ever increments.
func (b *BookingAgent) NoShow(st *State) Decision {
	idx := st.NoShowCount
	if idx > 2 {
		idx = 2
	}
	body := renderTemplate(b.templates.NoShowLadder[idx], st.templateVars())
	return Decision{
		Next:   NodeRouter,
		Action: ActionSendMessage,
		Patch: Patch{
			Handler:     string(NodeBooking),
			NoShowDelta: 1,
			NextAction:  actionPtr(ActionSendMessage),
		},
		Message: &OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Body:       body,
			Purpose:    compliance.PurposeOutreach,
		},
	}
}

// HandleDecline during booking mirrors the specialist's decline closure.
func (b *BookingAgent) HandleDecline(st *State, specialist *Specialist) Decision {
	if specialist != nil {
		d := specialist.HandleDecline(st)
		d.Patch.Handler = string(NodeBooking)
		return d
	}
	return Decision{
		Next:   NodeEnd,
		Action: ActionNotInterested,
		Patch: Patch{
			Handler:    string(NodeBooking),
			Stage:      stagePtr(StageNotInterested),
			NextAction: actionPtr(ActionNotInterested),
		},
	}
}
