package conversation

import (
	"time"

	"github.com/agentestate/outreach/internal/leads"
)

// Stage is the lead's position in the conversation lifecycle.
type Stage string

const (
	StageInitial       Stage = "initial"
	StageQualifying    Stage = "qualifying"
	StageInterested    Stage = "interested"
	StageBooking       Stage = "booking"
	StageScheduled     Stage = "scheduled"
	StageCompleted     Stage = "completed"
	StageNotInterested Stage = "not_interested"
	StageFollowUp      Stage = "follow_up"
	StageResponding    Stage = "responding"
)

// Channel is a communication medium.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelNone  Channel = "none"
)

// Daily per-lead send caps and failed-recently windows.
const (
	DefaultDailySMSCap   = 5
	DefaultDailyEmailCap = 3

	smsFailureWindow   = 24 * time.Hour
	emailFailureWindow = 6 * time.Hour
)

// CommAttempt is one entry in the append-only communication log.
type CommAttempt struct {
	Channel           Channel   `json:"channel"`
	Timestamp         time.Time `json:"timestamp"`
	Body              string    `json:"body"`
	Success           bool      `json:"success"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// QualificationData holds the structured answers collected from a lead.
// Fields are strings normalized by the extractor (prices as plain digit
// strings, acreage as a decimal string). A field, once set, is never
// overwritten by a later merge.
type QualificationData struct {
	OccupancyStatus  string `json:"occupancy_status,omitempty"`
	Condition        string `json:"condition,omitempty"`
	RepairsNeeded    string `json:"repairs_needed,omitempty"`
	Timeline         string `json:"timeline,omitempty"`
	Access           string `json:"access,omitempty"`
	PriceExpectation string `json:"price_expectation,omitempty"`
	Acreage          string `json:"acreage,omitempty"`
	RoadAccess       string `json:"road_access,omitempty"`
	Utilities        string `json:"utilities,omitempty"`
	RentalStatus     string `json:"rental_status,omitempty"`

	// Custom carries extractor output that has no dedicated field.
	Custom map[string]string `json:"custom,omitempty"`
}

// Qualification field names. Typos in callers fail the Get/set lookup loudly
// in tests rather than silently storing under a new key.
const (
	FieldOccupancyStatus  = "occupancy_status"
	FieldCondition        = "condition"
	FieldRepairsNeeded    = "repairs_needed"
	FieldTimeline         = "timeline"
	FieldAccess           = "access"
	FieldPriceExpectation = "price_expectation"
	FieldAcreage          = "acreage"
	FieldRoadAccess       = "road_access"
	FieldUtilities        = "utilities"
	FieldRentalStatus     = "rental_status"
)

func (q *QualificationData) fieldRef(field string) *string {
	switch field {
	case FieldOccupancyStatus:
		return &q.OccupancyStatus
	case FieldCondition:
		return &q.Condition
	case FieldRepairsNeeded:
		return &q.RepairsNeeded
	case FieldTimeline:
		return &q.Timeline
	case FieldAccess:
		return &q.Access
	case FieldPriceExpectation:
		return &q.PriceExpectation
	case FieldAcreage:
		return &q.Acreage
	case FieldRoadAccess:
		return &q.RoadAccess
	case FieldUtilities:
		return &q.Utilities
	case FieldRentalStatus:
		return &q.RentalStatus
	}
	return nil
}

// Get returns the value of a qualification field by name.
func (q *QualificationData) Get(field string) string {
	if q == nil {
		return ""
	}
	if ref := q.fieldRef(field); ref != nil {
		return *ref
	}
	return q.Custom[field]
}

// Merge fills still-empty fields from partial and returns the names of the
// fields it filled. Values that are empty or the sentinel "unknown" are
// skipped. Existing values are never overwritten.
func (q *QualificationData) Merge(partial map[string]string) []string {
	if q == nil || len(partial) == 0 {
		return nil
	}
	var filled []string
	for field, value := range partial {
		if value == "" || value == "unknown" {
			continue
		}
		if ref := q.fieldRef(field); ref != nil {
			if *ref == "" {
				*ref = value
				filled = append(filled, field)
			}
			continue
		}
		if q.Custom == nil {
			q.Custom = make(map[string]string)
		}
		if q.Custom[field] == "" {
			q.Custom[field] = value
			filled = append(filled, field)
		}
	}
	return filled
}

// BookingContext holds the partially-collected booking selection before a
// calendar event exists.
type BookingContext struct {
	ConfirmedTime   string `json:"confirmed_time,omitempty"`
	ConfirmedEmail  string `json:"confirmed_email,omitempty"`
	SuppressMessage bool   `json:"suppress_message,omitempty"`
	LastPrompt      string `json:"last_prompt,omitempty"`
}

// BookingStatus tracks the state of a scheduled consultation.
type BookingStatus string

const (
	BookingConfirmed     BookingStatus = "confirmed"
	BookingPendingManual BookingStatus = "pending_manual_follow_up"
)

// BookingDetails is populated once a consultation time is confirmed.
type BookingDetails struct {
	ScheduledTime       string        `json:"scheduled_time"`
	DurationMinutes     int           `json:"duration_minutes"`
	ConfirmationChannel Channel       `json:"confirmation_channel,omitempty"`
	CalendarEventID     string        `json:"calendar_event_id,omitempty"`
	MeetingLink         string        `json:"meeting_link,omitempty"`
	Status              BookingStatus `json:"status"`
}

// Compliance is the point-in-time compliance snapshot carried on the state.
type Compliance struct {
	OptedOut       bool      `json:"opted_out"`
	LastQuietHours bool      `json:"last_quiet_hours"`
	LastCheckedAt  time.Time `json:"last_checked_at,omitempty"`
}

// State is the one mutable record threaded through every handler for a lead.
type State struct {
	LeadID          string             `json:"lead_id"`
	CampaignID      string             `json:"campaign_id"`
	LeadName        string             `json:"lead_name"`
	PropertyAddress string             `json:"property_address"`
	PropertyType    leads.PropertyType `json:"property_type"`
	Phone           string             `json:"phone,omitempty"`
	Email           string             `json:"email,omitempty"`

	Stage         Stage             `json:"stage"`
	Qualification QualificationData `json:"qualification"`
	CommLog       []CommAttempt     `json:"comm_log"`
	Compliance    Compliance        `json:"compliance"`

	CurrentHandler string   `json:"current_handler,omitempty"`
	HandlerHistory []string `json:"handler_history,omitempty"`
	NextAction     Action   `json:"next_action,omitempty"`
	LastError      string   `json:"last_error,omitempty"`
	RetryCount     int      `json:"retry_count"`

	Sentiment string `json:"sentiment,omitempty"`

	SMSFailed         bool      `json:"sms_failed"`
	EmailFailed       bool      `json:"email_failed"`
	LastContactMethod Channel   `json:"last_contact_method,omitempty"`
	LastContactTime   time.Time `json:"last_contact_time,omitempty"`

	BookingContext *BookingContext `json:"booking_context,omitempty"`
	BookingDetails *BookingDetails `json:"booking_details,omitempty"`

	TotalMessagesSent int      `json:"total_messages_sent"`
	BookingAttempts   int      `json:"booking_attempts"`
	NoShowCount       int      `json:"no_show_count"`
	ObjectionsHandled []string `json:"objections_handled,omitempty"`

	EscalationReason string `json:"escalation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates the initial conversation state for a lead.
func NewState(lead *leads.Lead) *State {
	now := time.Now().UTC()
	return &State{
		LeadID:          lead.ID,
		CampaignID:      lead.CampaignID,
		LeadName:        lead.Name,
		PropertyAddress: lead.PropertyAddress,
		PropertyType:    lead.PropertyType,
		Phone:           lead.Phone,
		Email:           lead.Email,
		Stage:           StageInitial,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CountSentToday returns the number of attempts on the channel whose
// timestamp falls on the same calendar day as now (UTC). Failed attempts
// count against the cap; a failing provider is still a contact attempt.
func (s *State) CountSentToday(channel Channel, now time.Time) int {
	day := now.UTC().Truncate(24 * time.Hour)
	count := 0
	for _, a := range s.CommLog {
		if a.Channel != channel {
			continue
		}
		if a.Timestamp.UTC().Truncate(24 * time.Hour).Equal(day) {
			count++
		}
	}
	return count
}

// FailedRecently reports whether the channel's most recent failure falls
// inside its cool-down window (24h for SMS, 6h for email).
func (s *State) FailedRecently(channel Channel, now time.Time) bool {
	window := smsFailureWindow
	if channel == ChannelEmail {
		window = emailFailureWindow
	}
	for i := len(s.CommLog) - 1; i >= 0; i-- {
		a := s.CommLog[i]
		if a.Channel != channel {
			continue
		}
		if a.Success {
			return false
		}
		return now.Sub(a.Timestamp) < window
	}
	return false
}

// LastOutboundBody returns the body of the most recent attempt on any
// channel, or empty when nothing has been sent.
func (s *State) LastOutboundBody() string {
	if len(s.CommLog) == 0 {
		return ""
	}
	return s.CommLog[len(s.CommLog)-1].Body
}
