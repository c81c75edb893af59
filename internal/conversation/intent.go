package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentestate/outreach/pkg/logging"
)

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentInterested    Intent = "interested"
	IntentNotInterested Intent = "not_interested"
	IntentReadyToBook   Intent = "ready_to_book"
	IntentObjection     Intent = "objection"
	IntentQuestion      Intent = "question"
	IntentUnknown       Intent = "unknown"
)

// Classification is the classifier output for one inbound message.
type Classification struct {
	Intent    Intent `json:"intent"`
	Sentiment string `json:"sentiment"`
	Style     string `json:"style,omitempty"`
	Urgency   string `json:"urgency,omitempty"`
}

// IntentClassifier maps free text to a Classification. Implementations must
// never fail the turn: the deterministic keyword classifier is always
// available as the fallback.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, state *State) (Classification, error)
}

// Ordered phrase tables. Earlier entries win, so "not interested" is checked
// before "interested".
var notInterestedPhrases = []string{
	"not interested",
	"no thanks",
	"no thank you",
	"leave me alone",
	"stop",
	"remove",
}

var readyToBookPhrases = []string{
	"book",
	"schedule",
	"appointment",
	"call me",
	"give me a call",
	"set up a call",
	"set up a time",
}

var interestedPhrases = []string{
	"yes",
	"interested",
	"sure",
	"ok",
	"okay",
	"sounds good",
	"tell me more",
}

var objectionPhrases = []string{
	"too low",
	"lowball",
	"not enough",
	"already have an agent",
	"my realtor",
	"need to think",
}

var positiveWords = []string{"great", "awesome", "perfect", "excellent", "love", "thanks", "thank you"}
var negativeWords = []string{"bad", "terrible", "awful", "hate", "scam", "annoying", "harassing"}

var wordSplitRE = regexp.MustCompile(`[^a-z0-9']+`)

// KeywordClassifier is the deterministic rule-based classifier. It is the
// reference behavior; the LLM path may refine it but never replaces it.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the deterministic classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var _ IntentClassifier = (*KeywordClassifier)(nil)

// Classify applies the ordered phrase tables to the message.
func (c *KeywordClassifier) Classify(_ context.Context, text string, _ *State) (Classification, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	out := Classification{Intent: IntentUnknown, Sentiment: sentimentOf(lower)}
	if lower == "" {
		return out, nil
	}

	switch {
	case matchesAnyPhrase(lower, notInterestedPhrases):
		out.Intent = IntentNotInterested
	case matchesAnyPhrase(lower, readyToBookPhrases):
		out.Intent = IntentReadyToBook
	case matchesAnyPhrase(lower, objectionPhrases):
		out.Intent = IntentObjection
	case matchesAnyPhrase(lower, interestedPhrases):
		out.Intent = IntentInterested
	case strings.Contains(lower, "?"):
		out.Intent = IntentQuestion
	}
	return out, nil
}

// matchesAnyPhrase matches multi-word phrases by substring and single words
// on word boundaries, so "stop" does not fire on "unstoppable".
func matchesAnyPhrase(lower string, phrases []string) bool {
	var words []string
	for _, phrase := range phrases {
		if strings.Contains(phrase, " ") {
			if strings.Contains(lower, phrase) {
				return true
			}
			continue
		}
		if words == nil {
			words = wordSplitRE.Split(lower, -1)
		}
		for _, w := range words {
			if w == phrase {
				return true
			}
		}
	}
	return false
}

func sentimentOf(lower string) string {
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			return "negative"
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			return "positive"
		}
	}
	return "neutral"
}

// LLMClassifier asks an LLM for the classification and parses its JSON
// reply. Any failure surfaces as an error so the caller can fall back.
type LLMClassifier struct {
	llm    LLMClient
	model  string
	logger *logging.Logger
}

// NewLLMClassifier builds an LLM-backed classifier.
func NewLLMClassifier(llm LLMClient, model string, logger *logging.Logger) *LLMClassifier {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMClassifier{llm: llm, model: model, logger: logger}
}

var _ IntentClassifier = (*LLMClassifier)(nil)

const classifierSystemPrompt = `You classify replies from property sellers in an SMS/email conversation.
Respond with only a JSON object:
{"intent":"interested|not_interested|ready_to_book|objection|question|unknown","sentiment":"positive|neutral|negative","style":"short description","urgency":"low|medium|high"}`

// Classify sends the message to the LLM and parses the JSON response.
func (c *LLMClassifier) Classify(ctx context.Context, text string, state *State) (Classification, error) {
	userPrompt := fmt.Sprintf("Property type: %s\nStage: %s\nSeller message: %q", state.PropertyType, state.Stage, text)
	resp, err := c.llm.Complete(ctx, LLMRequest{
		Model:       c.model,
		System:      []string{classifierSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: userPrompt}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("conversation: intent classification failed: %w", err)
	}

	raw, err := extractJSONObject(stripCodeFence(resp.Text))
	if err != nil {
		return Classification{}, fmt.Errorf("conversation: classifier returned non-JSON output: %w", err)
	}
	var out Classification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Classification{}, fmt.Errorf("conversation: classifier JSON decode failed: %w", err)
	}
	switch out.Intent {
	case IntentInterested, IntentNotInterested, IntentReadyToBook, IntentObjection, IntentQuestion, IntentUnknown:
	default:
		out.Intent = IntentUnknown
	}
	if out.Sentiment == "" {
		out.Sentiment = "neutral"
	}
	return out, nil
}

// FallbackClassifier tries the primary classifier and falls back to the
// deterministic rules on any error.
type FallbackClassifier struct {
	primary  IntentClassifier
	fallback IntentClassifier
	logger   *logging.Logger
}

// NewFallbackClassifier wires a primary classifier over the keyword rules.
// A nil primary means the keyword rules run directly.
func NewFallbackClassifier(primary IntentClassifier, logger *logging.Logger) *FallbackClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClassifier{
		primary:  primary,
		fallback: NewKeywordClassifier(),
		logger:   logger,
	}
}

var _ IntentClassifier = (*FallbackClassifier)(nil)

// Classify never returns an error; classification failures degrade to the
// keyword rules.
func (c *FallbackClassifier) Classify(ctx context.Context, text string, state *State) (Classification, error) {
	if c.primary != nil {
		out, err := c.primary.Classify(ctx, text, state)
		if err == nil {
			return out, nil
		}
		c.logger.Warn("primary intent classifier failed; using keyword rules", "error", err)
	}
	return c.fallback.Classify(ctx, text, state)
}
