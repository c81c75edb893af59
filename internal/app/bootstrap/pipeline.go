package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/agentestate/outreach/internal/calendar"
	"github.com/agentestate/outreach/internal/compliance"
	appconfig "github.com/agentestate/outreach/internal/config"
	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/internal/messaging"
	"github.com/agentestate/outreach/pkg/logging"
)

// BuildGate wires the compliance gate: quiet hours from config plus the
// Redis-backed opt-out list when Redis is available.
func BuildGate(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (*compliance.Gate, *compliance.OptOutStore, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	quiet, err := compliance.ParseQuietHours(cfg.QuietHoursStart, cfg.QuietHoursEnd, cfg.QuietHoursTimezone)
	if err != nil {
		return nil, nil, err
	}

	var optOuts *compliance.OptOutStore
	var lookup compliance.OptOutLookup
	if redisClient != nil {
		optOuts = compliance.NewOptOutStore(redisClient, nil)
		lookup = optOuts
	}
	return compliance.NewGate(quiet, lookup, logger), optOuts, nil
}

// BuildLLMClient assembles the qualification LLM: Bedrock primary with a
// Gemini fallback when both are configured. Returns nil when neither is;
// keyword classification and regex extraction still work without one.
// The returned closer releases the Gemini connection.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() {}

	var bedrock conversation.LLMClient
	if cfg.BedrockModelID != "" {
		bedrock = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	}

	var gemini *conversation.GeminiLLMClient
	if cfg.GeminiAPIKey != "" {
		g, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini client unavailable", "error", err)
		} else {
			gemini = g
		}
	}

	switch {
	case bedrock != nil && gemini != nil:
		logger.Info("llm configured with fallback", "primary", cfg.BedrockModelID, "fallback", cfg.GeminiModelID)
		return conversation.NewFallbackLLMClient(bedrock, gemini, logger), func() { _ = gemini.Close() }, nil
	case bedrock != nil:
		logger.Info("llm configured", "model", cfg.BedrockModelID)
		return bedrock, noop, nil
	case gemini != nil:
		logger.Info("llm configured", "model", cfg.GeminiModelID)
		return gemini, func() { _ = gemini.Close() }, nil
	}
	logger.Warn("no llm configured; using keyword classification only")
	return nil, noop, nil
}

// BuildStateStore layers the Redis cache over the Postgres store when both
// are available.
func BuildStateStore(sqlDB *sql.DB, redisClient *redis.Client, logger *logging.Logger) conversation.StateStore {
	if sqlDB == nil {
		return nil
	}
	store := conversation.NewPGStateStore(sqlDB)
	if redisClient == nil {
		return store
	}
	return conversation.NewCachedStateStore(store, redisClient, logger)
}

// BuildCalendar returns the Google Calendar booking backend, or nil when
// booking runs in degraded mode (confirmations promise a manual follow-up).
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) conversation.CalendarService {
	if cfg == nil || !cfg.CalendarEnabled {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	cal, err := calendar.NewGoogleCalendar(ctx, cfg.CalendarID, logger)
	if err != nil {
		logger.Warn("calendar unavailable; booking will degrade to manual follow-up", "error", err)
		return nil
	}
	return cal
}

// BuildMessengers selects the outbound providers. Either side falls back to
// a logging stub so local runs exercise the full graph without credentials.
func BuildMessengers(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) (sms, email conversation.Messenger) {
	if logger == nil {
		logger = logging.Default()
	}

	sms, smsProvider, smsReason := messaging.BuildSMSMessenger(cfg, logger)
	if sms == nil {
		logger.Warn("no sms provider configured; using stub", "reason", smsReason)
		sms = messaging.NewStubMessenger(conversation.ChannelSMS, logger)
	} else {
		logger.Info("sms provider selected", "provider", smsProvider)
	}

	email, emailProvider, emailReason := messaging.BuildEmailMessenger(cfg, sesClient, logger)
	if email == nil {
		logger.Warn("no email provider configured; using stub", "reason", emailReason)
		email = messaging.NewStubMessenger(conversation.ChannelEmail, logger)
	} else {
		logger.Info("email provider selected", "provider", emailProvider)
	}
	return sms, email
}

// BuildRunner assembles the conversation graph: supervisor, one specialist
// per property type, booking agent, channel router and both channel agents.
func BuildRunner(
	cfg *appconfig.Config,
	gate *compliance.Gate,
	llm conversation.LLMClient,
	cal conversation.CalendarService,
	sms, email conversation.Messenger,
	logger *logging.Logger,
) *conversation.GraphRunner {
	if cfg == nil {
		panic("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var classifier conversation.IntentClassifier = conversation.NewKeywordClassifier()
	var enricher conversation.Enricher
	if llm != nil {
		classifier = conversation.NewFallbackClassifier(
			conversation.NewLLMClassifier(llm, cfg.BedrockModelID, logger), logger)
		enricher = conversation.NewLLMEnricher(llm, cfg.BedrockModelID)
	}
	extractor := conversation.NewExtractor(enricher, logger)

	specialists := map[leads.PropertyType]*conversation.Specialist{
		leads.PropertyFixFlip:    conversation.NewSpecialist(leads.PropertyFixFlip, extractor, logger),
		leads.PropertyVacantLand: conversation.NewSpecialist(leads.PropertyVacantLand, extractor, logger),
		leads.PropertyRental:     conversation.NewSpecialist(leads.PropertyRental, extractor, logger),
	}

	supervisor := conversation.NewSupervisor(gate, classifier, logger)
	booking := conversation.NewBookingAgent(cal, conversation.DefaultBookingTemplates(), cfg.MeetingDurationMinutes, logger)
	router := conversation.NewRouter(cfg.DailySMSCap, cfg.DailyEmailCap, gate.IsQuietHours)
	smsAgent := conversation.NewChannelAgent(conversation.ChannelSMS, sms, gate, logger)
	emailAgent := conversation.NewChannelAgent(conversation.ChannelEmail, email, gate, logger)

	return conversation.NewGraphRunner(supervisor, specialists, booking, router, smsAgent, emailAgent, logger)
}
