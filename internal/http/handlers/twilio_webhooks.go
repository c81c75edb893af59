package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/pkg/logging"
)

// TwilioWebhookHandler accepts inbound Twilio SMS webhooks. Twilio posts
// form-encoded parameters and expects a TwiML response.
type TwilioWebhookHandler struct {
	leads     leads.Repository
	publisher conversationPublisher
	authToken string
	baseURL   string
	logger    *logging.Logger
}

// NewTwilioWebhookHandler builds the handler. When authToken is empty,
// signature validation is skipped (local development only). baseURL is the
// public URL Twilio signs against, e.g. "https://api.example.com".
func NewTwilioWebhookHandler(repo leads.Repository, publisher conversationPublisher, authToken, baseURL string, logger *logging.Logger) *TwilioWebhookHandler {
	if repo == nil {
		panic("handlers: leads repository required")
	}
	if publisher == nil {
		panic("handlers: conversation publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioWebhookHandler{
		leads:     repo,
		publisher: publisher,
		authToken: authToken,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// HandleInbound processes an inbound SMS webhook.
func (h *TwilioWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	if err := h.verifySignature(r); err != nil {
		h.logger.Warn("rejected twilio webhook", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	from := r.PostForm.Get("From")
	text := r.PostForm.Get("Body")
	if from == "" || text == "" {
		respondTwiML(w)
		return
	}

	lead, err := h.leads.GetByContact(r.Context(), from)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			h.logger.Info("inbound sms from unknown number", "from", from)
			respondTwiML(w)
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

	h.logger.Info("inbound sms queued", "lead_id", lead.ID, "job_id", jobID, "sid", r.PostForm.Get("MessageSid"))
	respondTwiML(w)
}

func respondTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// verifySignature validates X-Twilio-Signature: base64 HMAC-SHA1 of the full
// request URL with the sorted form parameters appended.
func (h *TwilioWebhookHandler) verifySignature(r *http.Request) error {
	if h.authToken == "" {
		return nil
	}
	provided := r.Header.Get("X-Twilio-Signature")
	if provided == "" {
		return errors.New("handlers: missing twilio signature")
	}

	url := h.baseURL + r.URL.RequestURI()
	keys := make([]string, 0, len(r.PostForm))
	for k := range r.PostForm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(url)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(r.PostForm.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(h.authToken))
	mac.Write([]byte(sb.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return errors.New("handlers: signature mismatch")
	}
	return nil
}
