package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/pkg/logging"
)

var telnyxSendTracer = otel.Tracer("outreach.internal.messaging.telnyx")

// TelnyxSender posts SMS messages using Telnyx's V2 API.
type TelnyxSender struct {
	apiKey             string
	messagingProfileID string
	from               string
	httpClient         *http.Client
	logger             *logging.Logger
}

// NewTelnyxSender builds a sender for the Telnyx V2 API.
func NewTelnyxSender(apiKey, messagingProfileID, from string, logger *logging.Logger) *TelnyxSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxSender{
		apiKey:             apiKey,
		messagingProfileID: messagingProfileID,
		from:               from,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ conversation.Messenger = (*TelnyxSender)(nil)

// SendMessage dispatches a single SMS via Telnyx, retrying transient
// failures up to three times.
func (s *TelnyxSender) SendMessage(ctx context.Context, msg conversation.OutboundMessage) conversation.SendResult {
	if s.apiKey == "" {
		return failed("messaging: telnyx api key missing")
	}
	if msg.To == "" {
		return failed("messaging: to required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return failed("messaging: body required")
	}

	ctx, span := telnyxSendTracer.Start(ctx, "messaging.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("outreach.lead_id", msg.LeadID),
		attribute.String("outreach.to", msg.To),
	)

	payload := map[string]any{
		"from": s.from,
		"to":   msg.To,
		"text": msg.Body,
	}
	if s.messagingProfileID != "" {
		payload["messaging_profile_id"] = s.messagingProfileID
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return failed(fmt.Sprintf("messaging: failed to marshal telnyx payload: %v", err))
	}

	var lastErr string
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.telnyx.com/v2/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			lastErr = err.Error()
			break
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err.Error()
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					Data struct {
						ID string `json:"id"`
					} `json:"data"`
				}
				_ = json.Unmarshal(body, &parsed)
				s.logger.Info("telnyx sms sent", "lead_id", msg.LeadID, "to", msg.To)
				return conversation.SendResult{Success: true, ProviderMessageID: parsed.Data.ID}
			}
			lastErr = fmt.Sprintf("telnyx send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			// Non-rate-limit 4xx responses will not improve on retry.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	span.SetAttributes(attribute.String("outreach.error", lastErr))
	s.logger.Error("failed to send telnyx sms", "error", lastErr, "lead_id", msg.LeadID, "to", msg.To)
	return failed(lastErr)
}

func failed(errMsg string) conversation.SendResult {
	return conversation.SendResult{Success: false, Error: errMsg}
}
