package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentestate/outreach/internal/config"
	"github.com/agentestate/outreach/internal/conversation"
)

func TestBuildSMSMessengerAutoFailover(t *testing.T) {
	cfg := &config.Config{
		SMSProvider:      "auto",
		TelnyxAPIKey:     "tk",
		TelnyxFromNumber: "+15550000000",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "token",
		TwilioFromNumber: "+15550000001",
	}
	sender, name, reason := BuildSMSMessenger(cfg, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "telnyx+twilio", name)
	assert.Empty(t, reason)
	assert.IsType(t, &FailoverMessenger{}, sender)
}

func TestBuildSMSMessengerSingleProvider(t *testing.T) {
	cfg := &config.Config{
		SMSProvider:      "auto",
		TelnyxAPIKey:     "tk",
		TelnyxFromNumber: "+15550000000",
	}
	sender, name, _ := BuildSMSMessenger(cfg, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "telnyx", name)
	assert.IsType(t, &TelnyxSender{}, sender)
}

func TestBuildSMSMessengerForcedProviderMissing(t *testing.T) {
	cfg := &config.Config{SMSProvider: "twilio"}
	sender, _, reason := BuildSMSMessenger(cfg, nil)
	assert.Nil(t, sender)
	assert.Contains(t, reason, "twilio selected but not configured")
}

func TestBuildSMSMessengerNothingConfigured(t *testing.T) {
	cfg := &config.Config{SMSProvider: "auto"}
	sender, _, reason := BuildSMSMessenger(cfg, nil)
	assert.Nil(t, sender)
	assert.Equal(t, "no sms provider configured", reason)
}

func TestBuildEmailMessengerSendGridOnly(t *testing.T) {
	cfg := &config.Config{
		SendGridAPIKey:    "sg",
		SendGridFromEmail: "offers@example.com",
	}
	sender, name, _ := BuildEmailMessenger(cfg, nil, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "sendgrid", name)
}

func TestBuildEmailMessengerNothingConfigured(t *testing.T) {
	sender, _, reason := BuildEmailMessenger(&config.Config{}, nil, nil)
	assert.Nil(t, sender)
	assert.Equal(t, "no email provider configured", reason)
}

func TestEmailSubjectDefaults(t *testing.T) {
	msg := conversation.OutboundMessage{Subject: "Cash offer for 12 Oak St"}
	assert.Equal(t, "Cash offer for 12 Oak St", EmailSubject(msg))
	assert.Equal(t, "About your property", EmailSubject(conversation.OutboundMessage{}))
}
