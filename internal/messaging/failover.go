package messaging

import (
	"context"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/pkg/logging"
)

// FailoverMessenger attempts a primary send, then retries once on a
// secondary provider. It is channel-agnostic; the same wrapper serves the
// Telnyx/Twilio pair and the SendGrid/SES pair.
type FailoverMessenger struct {
	primary       conversation.Messenger
	secondary     conversation.Messenger
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// NewFailoverMessenger builds a failover messenger with named providers.
func NewFailoverMessenger(primary conversation.Messenger, primaryName string, secondary conversation.Messenger, secondaryName string, logger *logging.Logger) *FailoverMessenger {
	if primary == nil {
		panic("messaging: failover primary sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverMessenger{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		logger:        logger,
	}
}

var _ conversation.Messenger = (*FailoverMessenger)(nil)

// SendMessage tries the primary provider first, then the secondary.
func (f *FailoverMessenger) SendMessage(ctx context.Context, msg conversation.OutboundMessage) conversation.SendResult {
	result := f.primary.SendMessage(ctx, msg)
	if result.Success || f.secondary == nil {
		return result
	}

	f.logger.Warn("primary send failed; attempting fallback provider",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"error", result.Error,
		"to", msg.To,
	)
	fallbackResult := f.secondary.SendMessage(ctx, msg)
	if !fallbackResult.Success {
		f.logger.Error("fallback provider send failed",
			"provider", f.secondaryName,
			"error", fallbackResult.Error,
			"to", msg.To,
		)
	}
	return fallbackResult
}
