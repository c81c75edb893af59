package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/pkg/logging"
)

// RequiredFields returns the ordered qualification field list for a property
// type. The order is the order the specialist asks in.
func RequiredFields(pt leads.PropertyType) []string {
	switch pt {
	case leads.PropertyFixFlip:
		return []string{FieldOccupancyStatus, FieldCondition, FieldRepairsNeeded, FieldTimeline, FieldAccess, FieldPriceExpectation}
	case leads.PropertyVacantLand:
		return []string{FieldAcreage, FieldRoadAccess, FieldUtilities, FieldPriceExpectation}
	case leads.PropertyRental:
		return []string{FieldRentalStatus, FieldCondition, FieldTimeline, FieldAccess, FieldPriceExpectation}
	}
	return nil
}

var (
	priceDollarRE  = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k|m|million)?`)
	priceSuffixRE  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(k|million|mil|m)\b`)
	priceDigitsRE  = regexp.MustCompile(`\b(\d{5,7})\b`)
	acreageRE      = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*acres?\b`)
	timelineSpanRE = regexp.MustCompile(`(?i)\b(\d+)\s*(day|week|month)s?\b`)
)

// Ordered keyword tables. The first matching pattern names the value, so
// more specific entries come first.
var occupancyPatterns = []struct {
	keywords []string
	value    string
}{
	{[]string{"owner occupied", "i live", "we live", "living in it", "living there"}, "owner_occupied"},
	{[]string{"tenant", "rented", "renter", "leased"}, "tenant_occupied"},
	{[]string{"vacant", "empty", "nobody lives", "no one lives"}, "vacant"},
}

var conditionNeedsWorkKeywords = []string{
	"needs work", "needs a lot", "fixer", "rough", "bad shape", "poor",
	"repairs", "damage", "damaged", "outdated", "gutted", "fire",
}

var conditionGoodKeywords = []string{
	"good", "great", "excellent", "move-in", "move in ready", "updated",
	"renovated", "remodeled", "well maintained",
}

var repairKeywords = []string{
	"roof", "hvac", "furnace", "plumbing", "electrical", "foundation",
	"kitchen", "bathroom", "paint", "flooring", "windows", "siding", "water damage",
}

var noRepairKeywords = []string{"no repairs", "nothing needed", "nothing major", "doesn't need"}

var timelineNamedPatterns = []struct {
	keywords []string
	value    string
}{
	{[]string{"asap", "as soon as possible", "immediately", "right away", "yesterday"}, "asap"},
	{[]string{"this month", "within the month", "few weeks"}, "within_30_days"},
	{[]string{"next month", "30 days", "60 days"}, "1_2_months"},
	{[]string{"no rush", "no hurry", "flexible", "whenever", "not in a hurry"}, "flexible"},
}

var accessPatterns = []struct {
	keywords []string
	value    string
}{
	{[]string{"lockbox", "key under", "come by anytime", "any time works", "easy to show", "can show"}, "available"},
	{[]string{"tenant", "coordinate", "notice", "appointment only"}, "needs_coordination"},
}

var roadAccessPatterns = []struct {
	keywords []string
	value    string
}{
	{[]string{"dirt road", "gravel"}, "dirt_road"},
	{[]string{"no road", "no access", "landlocked"}, "none"},
	{[]string{"paved", "road access", "on the road", "county road", "highway"}, "paved"},
}

var utilitiesPatterns = []struct {
	keywords []string
	value    string
}{
	{[]string{"no utilities", "nothing out there", "off grid", "off-grid"}, "none"},
	{[]string{"water only", "power only", "electric only", "some utilities", "partial"}, "partial"},
	{[]string{"utilities", "water", "power", "electric", "sewer", "septic", "gas"}, "available"},
}

var rentalStatusPatterns = []struct {
	keywords []string
	value    string
}{
	{[]string{"month to month", "month-to-month"}, "month_to_month"},
	{[]string{"tenant", "rented", "occupied", "lease"}, "tenant_occupied"},
	{[]string{"vacant", "empty", "between tenants"}, "vacant"},
}

// Enricher is the optional text-to-structured-data service. It receives only
// the still-missing field names and returns a partial map.
type Enricher interface {
	ExtractStructuredFields(ctx context.Context, pt leads.PropertyType, text string, missingFields []string) (map[string]string, error)
}

// Extractor merges deterministic keyword/regex extraction with optional
// LLM enrichment. Extraction is monotonic: the result map contains only
// fields still empty in the existing data.
type Extractor struct {
	enricher Enricher
	logger   *logging.Logger
}

// NewExtractor builds an extractor. enricher may be nil; the deterministic
// layer always runs.
func NewExtractor(enricher Enricher, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{enricher: enricher, logger: logger}
}

// Extract returns newly-discovered values for fields that are empty in
// existing. Enrichment failures are logged and ignored; they never abort
// the turn.
func (e *Extractor) Extract(ctx context.Context, pt leads.PropertyType, text string, existing *QualificationData) map[string]string {
	out := make(map[string]string)
	lower := strings.ToLower(text)

	for _, field := range RequiredFields(pt) {
		if existing.Get(field) != "" {
			continue
		}
		if value := extractField(field, lower); value != "" {
			out[field] = value
		}
	}

	if e != nil && e.enricher != nil {
		missing := missingAfter(pt, existing, out)
		if len(missing) > 0 {
			enriched, err := e.enricher.ExtractStructuredFields(ctx, pt, text, missing)
			if err != nil {
				e.logger.Warn("qualification enrichment failed; keeping deterministic results", "error", err)
				return out
			}
			for field, value := range enriched {
				if value == "" || value == "unknown" {
					continue
				}
				if !containsString(missing, field) {
					continue
				}
				if out[field] == "" {
					out[field] = value
				}
			}
		}
	}
	return out
}

func missingAfter(pt leads.PropertyType, existing *QualificationData, found map[string]string) []string {
	var missing []string
	for _, field := range RequiredFields(pt) {
		if existing.Get(field) == "" && found[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func extractField(field, lower string) string {
	switch field {
	case FieldOccupancyStatus:
		return matchPatternTable(lower, occupancyPatterns)
	case FieldCondition:
		return extractCondition(lower)
	case FieldRepairsNeeded:
		return extractRepairs(lower)
	case FieldTimeline:
		return extractTimeline(lower)
	case FieldAccess:
		return matchPatternTable(lower, accessPatterns)
	case FieldPriceExpectation:
		return extractPrice(lower)
	case FieldAcreage:
		return extractAcreage(lower)
	case FieldRoadAccess:
		return matchPatternTable(lower, roadAccessPatterns)
	case FieldUtilities:
		return matchPatternTable(lower, utilitiesPatterns)
	case FieldRentalStatus:
		return matchPatternTable(lower, rentalStatusPatterns)
	}
	return ""
}

func matchPatternTable(lower string, table []struct {
	keywords []string
	value    string
}) string {
	for _, entry := range table {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.value
			}
		}
	}
	return ""
}

// extractCondition prefers needs_work when both signal sets appear: a seller
// writing "good bones but needs work" is describing a project.
func extractCondition(lower string) string {
	for _, kw := range conditionNeedsWorkKeywords {
		if strings.Contains(lower, kw) {
			return "needs_work"
		}
	}
	for _, kw := range conditionGoodKeywords {
		if strings.Contains(lower, kw) {
			return "good"
		}
	}
	return ""
}

func extractRepairs(lower string) string {
	for _, kw := range noRepairKeywords {
		if strings.Contains(lower, kw) {
			return "none"
		}
	}
	var found []string
	for _, kw := range repairKeywords {
		if strings.Contains(lower, kw) && !containsString(found, kw) {
			found = append(found, kw)
		}
	}
	if len(found) == 0 {
		return ""
	}
	return strings.Join(found, ",")
}

func extractTimeline(lower string) string {
	if v := matchPatternTable(lower, timelineNamedPatterns); v != "" {
		return v
	}
	if m := timelineSpanRE.FindStringSubmatch(lower); m != nil {
		return m[1] + "_" + strings.ToLower(m[2]) + "s"
	}
	return ""
}

// extractPrice normalizes "$200k", "$200,000", "1.2 million" and bare digit
// runs of five or more into a plain digit string.
func extractPrice(lower string) string {
	if m := priceDollarRE.FindStringSubmatch(lower); m != nil {
		return normalizePrice(m[1], m[2])
	}
	if m := priceSuffixRE.FindStringSubmatch(lower); m != nil {
		return normalizePrice(m[1], m[2])
	}
	if m := priceDigitsRE.FindStringSubmatch(lower); m != nil {
		return m[1]
	}
	return ""
}

func normalizePrice(number, suffix string) string {
	cleaned := strings.ReplaceAll(number, ",", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return ""
	}
	switch strings.ToLower(suffix) {
	case "k":
		value *= 1_000
	case "m", "mil", "million":
		value *= 1_000_000
	}
	return strconv.FormatInt(int64(value), 10)
}

func extractAcreage(lower string) string {
	if m := acreageRE.FindStringSubmatch(lower); m != nil {
		return m[1]
	}
	return ""
}

// LLMEnricher implements Enricher over an LLM client. Malformed responses
// are reported as errors and dropped by the caller.
type LLMEnricher struct {
	llm   LLMClient
	model string
}

// NewLLMEnricher builds the LLM-backed enrichment layer.
func NewLLMEnricher(llm LLMClient, model string) *LLMEnricher {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &LLMEnricher{llm: llm, model: model}
}

var _ Enricher = (*LLMEnricher)(nil)

// ExtractStructuredFields asks the LLM for exactly the missing fields.
func (e *LLMEnricher) ExtractStructuredFields(ctx context.Context, pt leads.PropertyType, text string, missingFields []string) (map[string]string, error) {
	if len(missingFields) == 0 {
		return nil, nil
	}
	system := fmt.Sprintf(`You extract structured real-estate data from a seller's message about a %s property.
Respond with only a JSON object whose keys are a subset of: %s.
Use the string "unknown" for anything the message does not state.`, pt, strings.Join(missingFields, ", "))

	resp, err := e.llm.Complete(ctx, LLMRequest{
		Model:       e.model,
		System:      []string{system},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: text}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: enrichment completion failed: %w", err)
	}

	raw, err := extractJSONObject(stripCodeFence(resp.Text))
	if err != nil {
		return nil, fmt.Errorf("conversation: enrichment returned non-JSON output: %w", err)
	}
	out := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("conversation: enrichment JSON decode failed: %w", err)
	}
	return out, nil
}
