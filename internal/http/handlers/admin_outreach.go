package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
	"github.com/agentestate/outreach/pkg/logging"
)

// AdminOutreachHandler exposes the operator API: create leads, kick off
// outreach, and inspect conversation state and run outcomes.
type AdminOutreachHandler struct {
	leads     leads.Repository
	publisher conversationPublisher
	states    conversation.StateStore
	runs      conversation.RunRecorder
	logger    *logging.Logger
}

// NewAdminOutreachHandler builds the handler. states and runs may be nil in
// deployments without durable stores; the affected endpoints return 503.
func NewAdminOutreachHandler(repo leads.Repository, publisher conversationPublisher, states conversation.StateStore, runs conversation.RunRecorder, logger *logging.Logger) *AdminOutreachHandler {
	if repo == nil {
		panic("handlers: leads repository required")
	}
	if publisher == nil {
		panic("handlers: conversation publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminOutreachHandler{
		leads:     repo,
		publisher: publisher,
		states:    states,
		runs:      runs,
		logger:    logger,
	}
}

type createLeadRequest struct {
	leads.CreateLeadRequest
	StartOutreach bool `json:"start_outreach"`
}

type createLeadResponse struct {
	Lead  *leads.Lead `json:"lead"`
	JobID string      `json:"job_id,omitempty"`
}

// CreateLead creates a lead and optionally queues the first touch.
// POST /admin/leads
func (h *AdminOutreachHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if pt, ok := leads.ParsePropertyType(string(req.PropertyType)); ok {
		req.PropertyType = pt
	}

	lead, err := h.leads.Create(r.Context(), &req.CreateLeadRequest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := createLeadResponse{Lead: lead}
	if req.StartOutreach {
		jobID, err := h.publisher.EnqueueInitialOutreach(r.Context(), lead.ID)
		if err != nil {
			h.logger.Error("failed to enqueue initial outreach", "error", err, "lead_id", lead.ID)
			writeError(w, http.StatusInternalServerError, "lead created but outreach enqueue failed")
			return
		}
		resp.JobID = jobID
	}

	h.logger.Info("lead created", "lead_id", lead.ID, "campaign_id", lead.CampaignID, "outreach_queued", req.StartOutreach)
	writeJSON(w, http.StatusCreated, resp)
}

// GetLead returns a lead by ID.
// GET /admin/leads/{leadID}
func (h *AdminOutreachHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	lead, err := h.leads.GetByID(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// ListLeads returns every lead in a campaign.
// GET /admin/campaigns/{campaignID}/leads
func (h *AdminOutreachHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	out, err := h.leads.ListByCampaign(r.Context(), campaignID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": out, "count": len(out)})
}

// GetState returns the conversation state for a lead.
// GET /admin/leads/{leadID}/state
func (h *AdminOutreachHandler) GetState(w http.ResponseWriter, r *http.Request) {
	if h.states == nil {
		writeError(w, http.StatusServiceUnavailable, "state store not configured")
		return
	}
	leadID := chi.URLParam(r, "leadID")
	st, err := h.states.Load(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, conversation.ErrStateNotFound) {
			writeError(w, http.StatusNotFound, "no conversation for lead")
			return
		}
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListStates returns conversations in a given stage, oldest contact first.
// GET /admin/states?stage=qualifying&limit=50
func (h *AdminOutreachHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	if h.states == nil {
		writeError(w, http.StatusServiceUnavailable, "state store not configured")
		return
	}
	stage := conversation.Stage(r.URL.Query().Get("stage"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	out, err := h.states.ListByStage(r.Context(), stage, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": out, "count": len(out)})
}

// StartOutreach queues the first touch for an existing lead.
// POST /admin/leads/{leadID}/outreach
func (h *AdminOutreachHandler) StartOutreach(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, func(leadID string) (string, error) {
		return h.publisher.EnqueueInitialOutreach(r.Context(), leadID)
	})
}

// FollowUp queues a sequenced follow-up touch.
// POST /admin/leads/{leadID}/follow-up
func (h *AdminOutreachHandler) FollowUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sequence int `json:"sequence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	h.enqueue(w, r, func(leadID string) (string, error) {
		return h.publisher.EnqueueFollowUp(r.Context(), leadID, body.Sequence)
	})
}

// NoShow queues a missed-consultation touch.
// POST /admin/leads/{leadID}/no-show
func (h *AdminOutreachHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, func(leadID string) (string, error) {
		return h.publisher.EnqueueNoShow(r.Context(), leadID)
	})
}

func (h *AdminOutreachHandler) enqueue(w http.ResponseWriter, r *http.Request, fn func(leadID string) (string, error)) {
	leadID := chi.URLParam(r, "leadID")
	if _, err := h.leads.GetByID(r.Context(), leadID); err != nil {
		if errors.Is(err, leads.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	jobID, err := fn(leadID)
	if err != nil {
		h.logger.Error("failed to enqueue job", "error", err, "lead_id", leadID)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// GetRun returns a run record by ID.
// GET /admin/runs/{runID}
func (h *AdminOutreachHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}
	runID := chi.URLParam(r, "runID")
	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, conversation.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
