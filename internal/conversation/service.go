package conversation

import (
	"context"
	"errors"

	"github.com/agentestate/outreach/pkg/logging"
)

// Service is the producer side of the outreach queue: webhooks and schedulers
// enqueue work, the worker drains it.
type Service struct {
	queue  queueClient
	logger *logging.Logger
}

// NewService builds the queue producer.
func NewService(queue queueClient, logger *logging.Logger) *Service {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{queue: queue, logger: logger}
}

// EnqueueInbound queues an inbound reply for processing. Returns the job ID.
func (s *Service) EnqueueInbound(ctx context.Context, leadID, from string, channel Channel, text string) (string, error) {
	if leadID == "" {
		return "", errors.New("conversation: lead id required")
	}
	return s.publish(ctx, queuePayload{
		Kind:    jobTypeInbound,
		LeadID:  leadID,
		From:    from,
		Channel: channel,
		Text:    text,
	})
}

// EnqueueInitialOutreach queues the first touch for a lead.
func (s *Service) EnqueueInitialOutreach(ctx context.Context, leadID string) (string, error) {
	if leadID == "" {
		return "", errors.New("conversation: lead id required")
	}
	return s.publish(ctx, queuePayload{Kind: jobTypeInitialOutreach, LeadID: leadID})
}

// EnqueueFollowUp queues the next sequenced follow-up touch.
func (s *Service) EnqueueFollowUp(ctx context.Context, leadID string, sequence int) (string, error) {
	if leadID == "" {
		return "", errors.New("conversation: lead id required")
	}
	return s.publish(ctx, queuePayload{Kind: jobTypeFollowUp, LeadID: leadID, Sequence: sequence})
}

// EnqueueNoShow queues a missed-consultation touch.
func (s *Service) EnqueueNoShow(ctx context.Context, leadID string) (string, error) {
	if leadID == "" {
		return "", errors.New("conversation: lead id required")
	}
	return s.publish(ctx, queuePayload{Kind: jobTypeNoShow, LeadID: leadID})
}

func (s *Service) publish(ctx context.Context, payload queuePayload) (string, error) {
	payload, body, err := encodePayload(payload)
	if err != nil {
		return "", err
	}
	if err := s.queue.Send(ctx, body); err != nil {
		return "", err
	}
	s.logger.Debug("queued conversation job", "job_id", payload.ID, "kind", payload.Kind, "lead_id", payload.LeadID)
	return payload.ID, nil
}
