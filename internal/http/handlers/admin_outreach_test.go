package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
)

type fakeRunRecorder struct {
	runs map[string]*conversation.RunRecord
}

func (f *fakeRunRecorder) PutPending(ctx context.Context, run *conversation.RunRecord) error {
	if f.runs == nil {
		f.runs = make(map[string]*conversation.RunRecord)
	}
	f.runs[run.RunID] = run
	return nil
}

func (f *fakeRunRecorder) MarkCompleted(ctx context.Context, runID, finalAction, finalStage string) error {
	return nil
}

func (f *fakeRunRecorder) MarkFailed(ctx context.Context, runID, errMsg string) error {
	return nil
}

func (f *fakeRunRecorder) GetRun(ctx context.Context, runID string) (*conversation.RunRecord, error) {
	run, ok := f.runs[runID]
	if !ok {
		return nil, conversation.ErrRunNotFound
	}
	return run, nil
}

func adminRouter(h *AdminOutreachHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/admin/leads", h.CreateLead)
	r.Get("/admin/leads/{leadID}", h.GetLead)
	r.Get("/admin/campaigns/{campaignID}/leads", h.ListLeads)
	r.Get("/admin/leads/{leadID}/state", h.GetState)
	r.Get("/admin/states", h.ListStates)
	r.Post("/admin/leads/{leadID}/outreach", h.StartOutreach)
	r.Post("/admin/leads/{leadID}/follow-up", h.FollowUp)
	r.Post("/admin/leads/{leadID}/no-show", h.NoShow)
	r.Get("/admin/runs/{runID}", h.GetRun)
	return r
}

func TestCreateLeadWithOutreach(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	publisher := &fakePublisher{}
	router := adminRouter(NewAdminOutreachHandler(repo, publisher, nil, nil, nil))

	body := `{"campaign_id":"camp-1","name":"Jane Seller","property_address":"12 Oak St","property_type":"fix-flip","phone":"+15551230001","start_outreach":true}`
	req := httptest.NewRequest(http.MethodPost, "/admin/leads", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createLeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Lead)
	assert.Equal(t, leads.PropertyFixFlip, resp.Lead.PropertyType)
	assert.Equal(t, "job-initial", resp.JobID)
	assert.Equal(t, []string{resp.Lead.ID}, publisher.initial)
}

func TestCreateLeadValidation(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	router := adminRouter(NewAdminOutreachHandler(repo, &fakePublisher{}, nil, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/leads", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/leads", strings.NewReader(`{"name":"No Campaign"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLead(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	router := adminRouter(NewAdminOutreachHandler(repo, &fakePublisher{}, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/"+lead.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), lead.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLeadsByCampaign(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	seedLead(t, repo)
	router := adminRouter(NewAdminOutreachHandler(repo, &fakePublisher{}, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/campaigns/camp-1/leads", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestGetState(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	states := conversation.NewMemoryStateStore()
	router := adminRouter(NewAdminOutreachHandler(repo, &fakePublisher{}, states, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/"+lead.ID+"/state", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	st := conversation.NewState(lead)
	st.Stage = conversation.StageQualifying
	require.NoError(t, states.Save(context.Background(), st))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/"+lead.ID+"/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stage":"qualifying"`)
}

func TestGetStateWithoutStore(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	router := adminRouter(NewAdminOutreachHandler(repo, &fakePublisher{}, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/"+lead.ID+"/state", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartOutreach(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	publisher := &fakePublisher{}
	router := adminRouter(NewAdminOutreachHandler(repo, publisher, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/leads/"+lead.ID+"/outreach", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "job-initial")
	assert.Equal(t, []string{lead.ID}, publisher.initial)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/leads/missing/outreach", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFollowUpPassesSequence(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	publisher := &fakePublisher{}
	router := adminRouter(NewAdminOutreachHandler(repo, publisher, nil, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/admin/leads/"+lead.ID+"/follow-up", strings.NewReader(`{"sequence":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []followUpCall{{leadID: lead.ID, sequence: 2}}, publisher.followUps)
}

func TestNoShow(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	publisher := &fakePublisher{}
	router := adminRouter(NewAdminOutreachHandler(repo, publisher, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/leads/"+lead.ID+"/no-show", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{lead.ID}, publisher.noShows)
}

func TestGetRun(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	seedLead(t, repo)
	runs := &fakeRunRecorder{}
	require.NoError(t, runs.PutPending(context.Background(), &conversation.RunRecord{
		RunID:  "run-1",
		LeadID: "lead-1",
		Status: conversation.RunStatusCompleted,
	}))
	router := adminRouter(NewAdminOutreachHandler(repo, &fakePublisher{}, nil, runs, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/runs/run-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runId":"run-1"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRunWithoutStore(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	router := adminRouter(NewAdminOutreachHandler(repo, &fakePublisher{}, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/runs/run-1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
