package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/pkg/logging"
)

// SendGridSender delivers outreach emails via the SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender creates a SendGrid email sender. Returns nil when no API
// key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Brightline Property Group"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

var _ conversation.Messenger = (*SendGridSender)(nil)

// SendMessage sends one email via SendGrid.
func (s *SendGridSender) SendMessage(ctx context.Context, msg conversation.OutboundMessage) conversation.SendResult {
	if s.client == nil {
		return failed("messaging: sendgrid client not configured")
	}
	if msg.To == "" {
		return failed("messaging: to required")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", msg.To)
	subject := EmailSubject(msg)
	message := mail.NewSingleEmail(from, subject, to, msg.Body, msg.Body)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return failed(fmt.Sprintf("messaging: sendgrid send failed: %v", err))
	}
	if response.StatusCode >= 300 {
		errMsg := fmt.Sprintf("messaging: sendgrid returned status %d: %s", response.StatusCode, strings.TrimSpace(response.Body))
		s.logger.Error("sendgrid send rejected", "status", response.StatusCode, "to", msg.To)
		return failed(errMsg)
	}

	messageID := ""
	if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}
	s.logger.Info("email sent via sendgrid", "lead_id", msg.LeadID, "to", msg.To, "subject", subject)
	return conversation.SendResult{Success: true, ProviderMessageID: messageID}
}

// EmailSubject returns the message subject, defaulting from the lead context
// since conversational bodies rarely carry one.
func EmailSubject(msg conversation.OutboundMessage) string {
	if strings.TrimSpace(msg.Subject) != "" {
		return msg.Subject
	}
	return "About your property"
}
