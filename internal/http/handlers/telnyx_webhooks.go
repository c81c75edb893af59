package handlers

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/pkg/logging"
)

// conversationPublisher is the producer surface webhooks need.
type conversationPublisher interface {
	EnqueueInbound(ctx context.Context, leadID, from string, channel conversation.Channel, text string) (string, error)
	EnqueueInitialOutreach(ctx context.Context, leadID string) (string, error)
	EnqueueFollowUp(ctx context.Context, leadID string, sequence int) (string, error)
	EnqueueNoShow(ctx context.Context, leadID string) (string, error)
}

// telnyxTolerance bounds how stale a signed webhook timestamp may be.
const telnyxTolerance = 5 * time.Minute

// TelnyxWebhookHandler accepts inbound Telnyx message webhooks and enqueues
// replies for the conversation worker.
type TelnyxWebhookHandler struct {
	leads     leads.Repository
	publisher conversationPublisher
	publicKey ed25519.PublicKey
	logger    *logging.Logger
	now       func() time.Time
}

// NewTelnyxWebhookHandler builds the handler. publicKeyB64 is the
// base64-encoded Ed25519 public key from the Telnyx portal; when empty,
// signature verification is skipped (local development only).
func NewTelnyxWebhookHandler(repo leads.Repository, publisher conversationPublisher, publicKeyB64 string, logger *logging.Logger) *TelnyxWebhookHandler {
	if repo == nil {
		panic("handlers: leads repository required")
	}
	if publisher == nil {
		panic("handlers: conversation publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var key ed25519.PublicKey
	if publicKeyB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(publicKeyB64)
		if err != nil || len(decoded) != ed25519.PublicKeySize {
			panic("handlers: invalid telnyx public key")
		}
		key = ed25519.PublicKey(decoded)
	}
	return &TelnyxWebhookHandler{
		leads:     repo,
		publisher: publisher,
		publicKey: key,
		logger:    logger,
		now:       time.Now,
	}
}

type telnyxEvent struct {
	Data struct {
		EventType string `json:"event_type"`
		ID        string `json:"id"`
		Payload   struct {
			From struct {
				PhoneNumber string `json:"phone_number"`
			} `json:"from"`
			To []struct {
				PhoneNumber string `json:"phone_number"`
			} `json:"to"`
			Text      string `json:"text"`
			Direction string `json:"direction"`
		} `json:"payload"`
	} `json:"data"`
}

// HandleMessages processes message webhooks. Only inbound message.received
// events produce work; everything else is acknowledged and dropped.
func (h *TelnyxWebhookHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.verifySignature(r.Header.Get("Telnyx-Timestamp"), r.Header.Get("Telnyx-Signature-Ed25519"), body); err != nil {
		h.logger.Warn("rejected telnyx webhook", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var evt telnyxEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if evt.Data.EventType != "message.received" || evt.Data.Payload.Direction != "inbound" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	from := evt.Data.Payload.From.PhoneNumber
	text := evt.Data.Payload.Text
	if from == "" || text == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	lead, err := h.leads.GetByContact(r.Context(), from)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			// Unknown senders are acknowledged so the provider stops
			// retrying; there is no conversation to advance.
			h.logger.Info("inbound sms from unknown number", "from", from)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("lead lookup failed", "error", err, "from", from)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	jobID, err := h.publisher.EnqueueInbound(r.Context(), lead.ID, from, conversation.ChannelSMS, text)
	if err != nil {
		h.logger.Error("failed to enqueue inbound sms", "error", err, "lead_id", lead.ID)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	h.logger.Info("inbound sms queued", "lead_id", lead.ID, "job_id", jobID, "event_id", evt.Data.ID)
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

// verifySignature checks the Ed25519 webhook signature over
// "<timestamp>|<body>" and rejects stale timestamps.
func (h *TelnyxWebhookHandler) verifySignature(timestamp, signatureB64 string, body []byte) error {
	if h.publicKey == nil {
		return nil
	}
	if timestamp == "" || signatureB64 == "" {
		return errors.New("handlers: missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("handlers: invalid timestamp")
	}
	age := h.now().Sub(time.Unix(ts, 0))
	if age > telnyxTolerance || age < -telnyxTolerance {
		return errors.New("handlers: timestamp outside tolerance")
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return errors.New("handlers: invalid signature encoding")
	}
	signed := append([]byte(timestamp+"|"), body...)
	if !ed25519.Verify(h.publicKey, signed, signature) {
		return errors.New("handlers: signature mismatch")
	}
	return nil
}
