package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	// Outbound SMS providers
	SMSProvider              string
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	TelnyxFromNumber         string
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioFromNumber         string

	// Inbound webhook verification
	TelnyxPublicKey string
	PublicBaseURL   string

	// Outbound email providers
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	UseSESFallback    bool

	// Compliance
	QuietHoursStart    string
	QuietHoursEnd      string
	QuietHoursTimezone string
	DailySMSCap        int
	DailyEmailCap      int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	OutreachQueueURL    string
	RunsTable           string
	ArchiveBucket       string
	BedrockModelID      string

	// Gemini fallback LLM
	GeminiAPIKey  string
	GeminiModelID string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking
	CalendarEnabled        bool
	CalendarID             string
	MeetingDurationMinutes int

	// Follow-up cadence
	FollowUpInterval time.Duration

	// Admin API
	AdminJWTSecret string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		SMSProvider:              strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "auto"))),
		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TelnyxFromNumber:         getEnv("TELNYX_FROM_NUMBER", ""),
		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:         getEnv("TWILIO_FROM_NUMBER", ""),

		TelnyxPublicKey: getEnv("TELNYX_PUBLIC_KEY", ""),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "AgentEstate"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		UseSESFallback:    getEnvAsBool("USE_SES_FALLBACK", false),

		QuietHoursStart:    getEnv("QUIET_HOURS_START", "21:00"),
		QuietHoursEnd:      getEnv("QUIET_HOURS_END", "08:00"),
		QuietHoursTimezone: getEnv("QUIET_HOURS_TZ", "America/Chicago"),
		DailySMSCap:        getEnvAsInt("DAILY_SMS_CAP", 5),
		DailyEmailCap:      getEnvAsInt("DAILY_EMAIL_CAP", 3),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		OutreachQueueURL:    getEnv("OUTREACH_QUEUE_URL", ""),
		RunsTable:           getEnv("OUTREACH_RUNS_TABLE", "outreach_runs"),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CalendarEnabled:        getEnvAsBool("CALENDAR_ENABLED", false),
		CalendarID:             getEnv("CALENDAR_ID", "primary"),
		MeetingDurationMinutes: getEnvAsInt("MEETING_DURATION_MINUTES", 15),

		FollowUpInterval: getEnvAsDuration("FOLLOW_UP_INTERVAL", 48*time.Hour),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
