package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentestate/outreach/internal/compliance"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/pkg/logging"
)

// Specialist owns the qualification state machine for one property type: the
// ordered field list, the next question to ask, and the completion message.
type Specialist struct {
	propertyType leads.PropertyType
	fields       []string
	templates    *TemplateSet
	extractor    *Extractor
	logger       *logging.Logger
}

// NewSpecialist builds the specialist for a property type.
func NewSpecialist(pt leads.PropertyType, extractor *Extractor, logger *logging.Logger) *Specialist {
	templates := TemplatesFor(pt)
	if templates == nil {
		panic(fmt.Sprintf("conversation: no specialist for property type %q", pt))
	}
	if extractor == nil {
		extractor = NewExtractor(nil, logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Specialist{
		propertyType: pt,
		fields:       RequiredFields(pt),
		templates:    templates,
		extractor:    extractor,
		logger:       logger,
	}
}

func (s *Specialist) handlerName() string {
	return "specialist_" + string(s.propertyType)
}

// NextMissingField returns the first field in the ordered list with no
// value, or empty when qualification is complete.
func (s *Specialist) NextMissingField(st *State) string {
	for _, field := range s.fields {
		if st.Qualification.Get(field) == "" {
			return field
		}
	}
	return ""
}

// GenerateQuestion returns the canned prompt for a qualification field.
func (s *Specialist) GenerateQuestion(st *State, field string) string {
	q := s.templates.Questions[field]
	return renderTemplate(q, st.templateVars())
}

func (st *State) templateVars() map[string]string {
	name := strings.TrimSpace(st.LeadName)
	if name == "" {
		name = "there"
	} else if first := strings.Fields(name); len(first) > 0 {
		name = first[0]
	}
	address := st.PropertyAddress
	if address == "" {
		address = "your property"
	}
	return map[string]string{"name": name, "address": address}
}

// HandleMessage merges extracted fields and either asks the next question or
// emits the qualification-complete message.
func (s *Specialist) HandleMessage(ctx context.Context, st *State, text string) Decision {
	partial := s.extractor.Extract(ctx, s.propertyType, text, &st.Qualification)

	// Next-missing is computed over the merged view without mutating the
	// caller's state; the patch carries the merge.
	next := ""
	for _, field := range s.fields {
		if st.Qualification.Get(field) == "" && partial[field] == "" {
			next = field
			break
		}
	}

	patch := Patch{
		Handler:       s.handlerName(),
		Qualification: partial,
	}

	if next != "" {
		if st.Stage == StageInitial || st.Stage == StageResponding || st.Stage == StageFollowUp {
			patch.Stage = stagePtr(StageQualifying)
		}
		patch.NextAction = actionPtr(ActionContinueQualification)
		return Decision{
			Next:   NodeRouter,
			Action: ActionContinueQualification,
			Patch:  patch,
			Message: &OutboundMessage{
				LeadID:     st.LeadID,
				CampaignID: st.CampaignID,
				Body:       s.GenerateQuestion(st, next),
				Purpose:    compliance.PurposeReply,
			},
		}
	}

	patch.Stage = stagePtr(StageInterested)
	patch.NextAction = actionPtr(ActionReadyToBook)
	return Decision{
		Next:   NodeRouter,
		Action: ActionReadyToBook,
		Patch:  patch,
		Message: &OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Body:       renderTemplate(s.templates.Completion, st.templateVars()),
			Purpose:    compliance.PurposeReply,
		},
	}
}

// HandleObjection answers a matched objection category with its canned
// rebuttal, or the generic acknowledge-and-offer-a-call response. The
// objection text is recorded once, deduplicated by exact string.
func (s *Specialist) HandleObjection(_ context.Context, st *State, text string) Decision {
	lower := strings.ToLower(text)
	response := s.templates.GenericObjection
	for _, entry := range s.templates.ObjectionKeywords {
		matched := false
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if matched {
			if r, ok := s.templates.ObjectionResponses[entry.category]; ok {
				response = r
			}
			break
		}
	}

	return Decision{
		Next:   NodeRouter,
		Action: ActionHandleObjection,
		Patch: Patch{
			Handler:    s.handlerName(),
			Objections: []string{strings.TrimSpace(text)},
			NextAction: actionPtr(ActionHandleObjection),
		},
		Message: &OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Body:       renderTemplate(response, st.templateVars()),
			Purpose:    compliance.PurposeReply,
		},
	}
}

// HandleDecline sends the polite closure and terminates the conversation.
func (s *Specialist) HandleDecline(st *State) Decision {
	return Decision{
		Next:   NodeRouter,
		Action: ActionNotInterested,
		Patch: Patch{
			Handler:    s.handlerName(),
			Stage:      stagePtr(StageNotInterested),
			NextAction: actionPtr(ActionNotInterested),
		},
		Message: &OutboundMessage{
			LeadID:     st.LeadID,
			CampaignID: st.CampaignID,
			Body:       renderTemplate(s.templates.Decline, st.templateVars()),
			Purpose:    compliance.PurposeReply,
		},
	}
}

// InitialOutreach returns the first-touch message for the lead.
func (s *Specialist) InitialOutreach(st *State) *OutboundMessage {
	return &OutboundMessage{
		LeadID:     st.LeadID,
		CampaignID: st.CampaignID,
		Body:       renderTemplate(s.templates.InitialOutreach, st.templateVars()),
		Purpose:    compliance.PurposeOutreach,
	}
}

// FollowUp returns the canned follow-up message, cycling through the table
// by how many follow-ups were already sent.
func (s *Specialist) FollowUp(st *State, sequence int) *OutboundMessage {
	if len(s.templates.FollowUps) == 0 {
		return nil
	}
	if sequence < 0 {
		sequence = 0
	}
	if sequence >= len(s.templates.FollowUps) {
		sequence = len(s.templates.FollowUps) - 1
	}
	return &OutboundMessage{
		LeadID:     st.LeadID,
		CampaignID: st.CampaignID,
		Body:       renderTemplate(s.templates.FollowUps[sequence], st.templateVars()),
		Purpose:    compliance.PurposeOutreach,
	}
}
