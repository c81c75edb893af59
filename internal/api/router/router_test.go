package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/http/handlers"
	"github.com/agentestate/outreach/internal/leads"
)

type stubPublisher struct{}

func (stubPublisher) EnqueueInbound(ctx context.Context, leadID, from string, channel conversation.Channel, text string) (string, error) {
	return "job-1", nil
}

func (stubPublisher) EnqueueInitialOutreach(ctx context.Context, leadID string) (string, error) {
	return "job-1", nil
}

func (stubPublisher) EnqueueFollowUp(ctx context.Context, leadID string, sequence int) (string, error) {
	return "job-1", nil
}

func (stubPublisher) EnqueueNoShow(ctx context.Context, leadID string) (string, error) {
	return "job-1", nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := leads.NewInMemoryRepository()
	pub := stubPublisher{}
	return New(&Config{
		TelnyxWebhooks: handlers.NewTelnyxWebhookHandler(repo, pub, "", nil),
		TwilioWebhooks: handlers.NewTwilioWebhookHandler(repo, pub, "", "", nil),
		EmailWebhooks:  handlers.NewInboundEmailHandler(repo, pub, nil),
		Admin:          handlers.NewAdminOutreachHandler(repo, pub, nil, nil, nil),
		AdminJWTSecret: "secret",
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/campaigns/camp-1/leads", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/campaigns/camp-1/leads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestWebhookRoutesArePublic(t *testing.T) {
	router := testRouter(t)

	form := url.Values{"From": {"+19995550000"}, "Body": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response></Response>")
}

func TestMetricsEndpointWired(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
