package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/pkg/logging"
)

// InboundEmailHandler accepts SendGrid Inbound Parse webhooks so email
// replies re-enter the conversation alongside SMS.
type InboundEmailHandler struct {
	leads     leads.Repository
	publisher conversationPublisher
	logger    *logging.Logger
}

// NewInboundEmailHandler builds the handler.
func NewInboundEmailHandler(repo leads.Repository, publisher conversationPublisher, logger *logging.Logger) *InboundEmailHandler {
	if repo == nil {
		panic("handlers: leads repository required")
	}
	if publisher == nil {
		panic("handlers: conversation publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &InboundEmailHandler{leads: repo, publisher: publisher, logger: logger}
}

var addressRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// HandleInbound processes one parsed email. SendGrid posts multipart form
// data with "from" as a display string like `Jane Doe <jane@example.com>`.
func (h *InboundEmailHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
	}

	from := addressRe.FindString(r.FormValue("from"))
	text := strings.TrimSpace(r.FormValue("text"))
	if from == "" || text == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// Strip quoted reply history; only the new content matters.
	text = stripQuotedReply(text)

	lead, err := h.leads.GetByContact(r.Context(), from)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			h.logger.Info("inbound email from unknown address", "from", from)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("lead lookup failed", "error", err, "from", from)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	jobID, err := h.publisher.EnqueueInbound(r.Context(), lead.ID, from, conversation.ChannelEmail, text)
	if err != nil {
		h.logger.Error("failed to enqueue inbound email", "error", err, "lead_id", lead.ID)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	h.logger.Info("inbound email queued", "lead_id", lead.ID, "job_id", jobID)
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

func stripQuotedReply(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			break
		}
		if strings.HasPrefix(trimmed, "On ") && strings.HasSuffix(trimmed, "wrote:") {
			break
		}
		kept = append(kept, line)
	}
	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" {
		return strings.TrimSpace(text)
	}
	return out
}
