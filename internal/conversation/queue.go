package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeInbound         jobType = "inbound_message"
	jobTypeInitialOutreach jobType = "initial_outreach"
	jobTypeFollowUp        jobType = "follow_up"
	jobTypeNoShow          jobType = "no_show"
)

type queuePayload struct {
	ID       string  `json:"id"`
	Kind     jobType `json:"kind"`
	LeadID   string  `json:"lead_id"`
	From     string  `json:"from,omitempty"`
	Channel  Channel `json:"channel,omitempty"`
	Text     string  `json:"text,omitempty"`
	Sequence int     `json:"sequence,omitempty"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}
