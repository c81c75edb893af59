package messaging

import (
	"context"

	"github.com/google/uuid"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/pkg/logging"
)

// StubMessenger logs instead of sending. It stands in for an unconfigured
// provider in local development.
type StubMessenger struct {
	channel conversation.Channel
	logger  *logging.Logger
}

// NewStubMessenger creates a logging stand-in for the channel.
func NewStubMessenger(channel conversation.Channel, logger *logging.Logger) *StubMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubMessenger{channel: channel, logger: logger}
}

var _ conversation.Messenger = (*StubMessenger)(nil)

func (s *StubMessenger) SendMessage(_ context.Context, msg conversation.OutboundMessage) conversation.SendResult {
	s.logger.Info("stub messenger: message not sent",
		"channel", s.channel,
		"lead_id", msg.LeadID,
		"to", msg.To,
		"body", msg.Body,
	)
	return conversation.SendResult{Success: true, ProviderMessageID: "stub-" + uuid.NewString()}
}
