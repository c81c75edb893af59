package messaging

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/agentestate/outreach/internal/config"
	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/pkg/logging"
)

// BuildSMSMessenger selects the SMS provider from configuration.
// "telnyx" and "twilio" force a single provider; "auto" wires Telnyx with
// Twilio failover when both are configured. Returns nil and a reason when
// nothing is configured.
func BuildSMSMessenger(cfg *config.Config, logger *logging.Logger) (conversation.Messenger, string, string) {
	if logger == nil {
		logger = logging.Default()
	}

	var telnyx conversation.Messenger
	if cfg.TelnyxAPIKey != "" && cfg.TelnyxFromNumber != "" {
		telnyx = NewTelnyxSender(cfg.TelnyxAPIKey, cfg.TelnyxMessagingProfileID, cfg.TelnyxFromNumber, logger)
	}
	var twilio conversation.Messenger
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		twilio = NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	}

	switch cfg.SMSProvider {
	case "telnyx":
		if telnyx == nil {
			return nil, "", "telnyx selected but not configured"
		}
		return telnyx, "telnyx", ""
	case "twilio":
		if twilio == nil {
			return nil, "", "twilio selected but not configured"
		}
		return twilio, "twilio", ""
	}

	switch {
	case telnyx != nil && twilio != nil:
		return NewFailoverMessenger(telnyx, "telnyx", twilio, "twilio", logger), "telnyx+twilio", ""
	case telnyx != nil:
		return telnyx, "telnyx", ""
	case twilio != nil:
		return twilio, "twilio", ""
	}
	return nil, "", "no sms provider configured"
}

// BuildEmailMessenger wires SendGrid with optional SES failover. sesClient
// may be nil. Returns nil and a reason when nothing is configured.
func BuildEmailMessenger(cfg *config.Config, sesClient *sesv2.Client, logger *logging.Logger) (conversation.Messenger, string, string) {
	if logger == nil {
		logger = logging.Default()
	}

	sendgrid := NewSendGridSender(SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)

	var ses conversation.Messenger
	if cfg.UseSESFallback && cfg.SESFromEmail != "" {
		if sender := NewSESSender(sesClient, SESConfig{FromEmail: cfg.SESFromEmail, FromName: cfg.SendGridFromName}, logger); sender != nil {
			ses = sender
		}
	}

	switch {
	case sendgrid != nil && ses != nil:
		return NewFailoverMessenger(sendgrid, "sendgrid", ses, "ses", logger), "sendgrid+ses", ""
	case sendgrid != nil:
		return sendgrid, "sendgrid", ""
	case ses != nil:
		return ses, "ses", ""
	}
	return nil, "", "no email provider configured"
}
