package conversation

import (
	"strings"

	"github.com/agentestate/outreach/internal/leads"
)

// TemplateSet is the immutable canned-message table for one property type.
// Injected into the specialist at construction; never mutated at runtime.
type TemplateSet struct {
	InitialOutreach string
	Questions       map[string]string
	Completion      string

	// Objection handling: ordered keyword table mapping to a response key.
	ObjectionKeywords []struct {
		keywords []string
		category string
	}
	ObjectionResponses map[string]string
	GenericObjection   string

	Decline   string
	FollowUps []string
}

// renderTemplate substitutes {name}, {address} and friends in a template.
func renderTemplate(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

var sharedObjectionKeywords = []struct {
	keywords []string
	category string
}{
	{[]string{"too low", "lowball", "low offer", "not enough", "price", "worth more"}, "price"},
	{[]string{"agent", "realtor", "listing", "mls"}, "agent"},
	{[]string{"think about it", "need to think", "not sure", "maybe later", "talk to my"}, "hesitation"},
}

var fixFlipTemplates = TemplateSet{
	InitialOutreach: "Hi {name}, this is Alex with Brightline Property Group. We buy houses in your area and noticed {address}. Would you consider a cash offer? Reply STOP to opt out.",
	Questions: map[string]string{
		FieldOccupancyStatus:  "Is the property currently vacant, rented out, or are you living in it?",
		FieldCondition:        "How would you describe the overall condition of the house?",
		FieldRepairsNeeded:    "Are there any major repairs needed, like the roof, HVAC, or foundation?",
		FieldTimeline:         "How soon are you looking to sell?",
		FieldAccess:           "If we moved forward, how easy would it be to walk through the property?",
		FieldPriceExpectation: "Do you have a ballpark price in mind?",
	},
	Completion:         "Thanks {name}, that's everything I need to put together a fair cash offer on {address}. The next step is a quick 15-minute call to go over the numbers. Would an afternoon or evening this week work?",
	ObjectionKeywords:  sharedObjectionKeywords,
	ObjectionResponses: sharedObjectionResponses,
	GenericObjection:   "I hear you. No pressure at all - would a quick call help answer any questions about how this works?",
	Decline:            "No problem at all, {name}. If anything changes down the road, you know where to find us. Take care!",
	FollowUps: []string{
		"Hi {name}, just circling back about {address}. Still happy to put a no-obligation cash offer together whenever you're ready.",
		"Hi {name}, following up one more time about {address}. If the timing isn't right, no worries - just let me know either way.",
	},
}

var vacantLandTemplates = TemplateSet{
	InitialOutreach: "Hi {name}, this is Alex with Brightline Property Group. We buy land in your county and came across your parcel at {address}. Any interest in a cash offer? Reply STOP to opt out.",
	Questions: map[string]string{
		FieldAcreage:          "Roughly how many acres is the parcel?",
		FieldRoadAccess:       "Does the property have road access, and is it paved or dirt?",
		FieldUtilities:        "Are utilities like water or power available at the property?",
		FieldPriceExpectation: "Do you have a price in mind for the land?",
	},
	Completion:         "Thanks {name}, that gives me a clear picture of the parcel. Let's set up a quick 15-minute call so I can walk you through our cash offer. Would an afternoon or evening this week work?",
	ObjectionKeywords:  sharedObjectionKeywords,
	ObjectionResponses: sharedObjectionResponses,
	GenericObjection:   "Totally fair. Land deals raise a lot of questions - would a short call be easier than texting back and forth?",
	Decline:            "Understood, {name}. If you ever decide to sell the parcel, we'd be glad to take another look. All the best!",
	FollowUps: []string{
		"Hi {name}, just checking back in about your land at {address}. Happy to run the numbers whenever you'd like.",
		"Hi {name}, one last note about the parcel at {address}. If now isn't the time, no problem - just say the word.",
	},
}

var rentalTemplates = TemplateSet{
	InitialOutreach: "Hi {name}, this is Alex with Brightline Property Group. We buy rental properties in your area, including {address} if you'd ever consider selling. Open to a cash offer? Reply STOP to opt out.",
	Questions: map[string]string{
		FieldRentalStatus:     "Is the property currently rented, vacant, or between tenants?",
		FieldCondition:        "How would you describe the condition of the property?",
		FieldTimeline:         "What kind of timeline are you thinking for a sale?",
		FieldAccess:           "If we moved forward, how would showings work with the current situation?",
		FieldPriceExpectation: "Do you have a number in mind that would make a sale worth it?",
	},
	Completion:         "Thanks {name}, that's all I need to work up a solid cash offer on {address}. A quick 15-minute call is the best next step - would an afternoon or evening this week work?",
	ObjectionKeywords:  sharedObjectionKeywords,
	ObjectionResponses: sharedObjectionResponses,
	GenericObjection:   "Makes sense - selling a rental has a lot of moving parts. Want to hop on a quick call so I can answer anything specific?",
	Decline:            "No worries at all, {name}. Enjoy the rental income, and reach out if you ever want a number. Take care!",
	FollowUps: []string{
		"Hi {name}, following up about your rental at {address}. We're still interested whenever the timing works for you.",
		"Hi {name}, last check-in about {address}. If selling isn't on the table, no problem - just let me know.",
	},
}

var sharedObjectionResponses = map[string]string{
	"price":      "Completely understand - nobody wants to leave money on the table. Our offers account for you paying zero fees, zero repairs, and closing on your timeline. Can I walk you through the math on a quick call?",
	"agent":      "That's a fair route too. The difference with us is no commissions, no showings, and no waiting on buyer financing. If the agent route stalls, we're a solid backup - want me to keep the offer on the table?",
	"hesitation": "Of course, take whatever time you need. There's no obligation on our offers - would it help if I sent over exactly how the process works so you have it in writing?",
}

// TemplatesFor returns the canned-message table for the property type.
func TemplatesFor(pt leads.PropertyType) *TemplateSet {
	switch pt {
	case leads.PropertyFixFlip:
		return &fixFlipTemplates
	case leads.PropertyVacantLand:
		return &vacantLandTemplates
	case leads.PropertyRental:
		return &rentalTemplates
	}
	return nil
}

// BookingTemplates is the canned-message table for the booking sub-flow.
type BookingTemplates struct {
	// OpenQuestions are rotated so the same open prompt is never sent
	// twice in a row.
	OpenQuestions        []string
	OfferChoices         string
	AskEmail             string
	Confirmation         string
	DegradedConfirmation string
	AlreadyScheduled     string
	NoShowLadder         [3]string
	MeetingTitles        map[leads.PropertyType]string
}

var defaultBookingTemplates = BookingTemplates{
	OpenQuestions: []string{
		"What day and time generally work best for a quick 15-minute call?",
		"When's a good window for you this week? Mornings, afternoons, or evenings?",
	},
	OfferChoices:         "Great! Would tomorrow morning or tomorrow afternoon work better for a quick call?",
	AskEmail:             "Perfect, I have you down for {time}. What's the best email for the calendar invite?",
	Confirmation:         "You're all set for {time}. I've sent a calendar invite to {email} - talk soon!",
	DegradedConfirmation: "I've noted {time}. I'll follow up with a calendar invite shortly.",
	AlreadyScheduled:     "Sounds good, {name} - we're confirmed for {time}. If anything changes, just reply here.",
	NoShowLadder: [3]string{
		"Hi {name}, sorry we missed each other earlier! Want to grab another time this week?",
		"Hi {name}, we've missed a couple of calls now. Is this still something you want to move forward with? Happy to reschedule once more.",
		"Hi {name}, I'll leave the ball in your court - if you'd still like that offer, just reply with a time that works and we'll make it happen.",
	},
	MeetingTitles: map[leads.PropertyType]string{
		leads.PropertyFixFlip:    "Cash offer call - house",
		leads.PropertyVacantLand: "Cash offer call - land",
		leads.PropertyRental:     "Cash offer call - rental property",
	},
}

// DefaultBookingTemplates returns the standard booking message table.
func DefaultBookingTemplates() *BookingTemplates {
	return &defaultBookingTemplates
}
