package handlers

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
)

type enqueuedInbound struct {
	leadID  string
	from    string
	channel conversation.Channel
	text    string
}

type followUpCall struct {
	leadID   string
	sequence int
}

// fakePublisher records every enqueue so tests can assert what the webhook
// handed to the worker queue.
type fakePublisher struct {
	inbound   []enqueuedInbound
	initial   []string
	followUps []followUpCall
	noShows   []string
	err       error
}

func (p *fakePublisher) EnqueueInbound(ctx context.Context, leadID, from string, channel conversation.Channel, text string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.inbound = append(p.inbound, enqueuedInbound{leadID: leadID, from: from, channel: channel, text: text})
	return fmt.Sprintf("job-%d", len(p.inbound)), nil
}

func (p *fakePublisher) EnqueueInitialOutreach(ctx context.Context, leadID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.initial = append(p.initial, leadID)
	return "job-initial", nil
}

func (p *fakePublisher) EnqueueFollowUp(ctx context.Context, leadID string, sequence int) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.followUps = append(p.followUps, followUpCall{leadID: leadID, sequence: sequence})
	return "job-follow-up", nil
}

func (p *fakePublisher) EnqueueNoShow(ctx context.Context, leadID string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.noShows = append(p.noShows, leadID)
	return "job-no-show", nil
}

func seedLead(t *testing.T, repo leads.Repository) *leads.Lead {
	t.Helper()
	lead, err := repo.Create(context.Background(), &leads.CreateLeadRequest{
		CampaignID:      "camp-1",
		Name:            "Jane Seller",
		PropertyAddress: "12 Oak St",
		PropertyType:    leads.PropertyFixFlip,
		Phone:           "+15551230001",
		Email:           "jane@example.com",
	})
	require.NoError(t, err)
	return lead
}

func telnyxBody(eventType, direction, from, text string) string {
	return fmt.Sprintf(`{"data":{"event_type":%q,"id":"evt-1","payload":{"from":{"phone_number":%q},"to":[{"phone_number":"+15550000000"}],"text":%q,"direction":%q}}}`,
		eventType, from, text, direction)
}

func TestTelnyxWebhookEnqueuesInbound(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	publisher := &fakePublisher{}
	handler := NewTelnyxWebhookHandler(repo, publisher, "", nil)

	body := telnyxBody("message.received", "inbound", lead.Phone, "yes the house is vacant")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleMessages(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "job-1")
	require.Len(t, publisher.inbound, 1)
	assert.Equal(t, lead.ID, publisher.inbound[0].leadID)
	assert.Equal(t, conversation.ChannelSMS, publisher.inbound[0].channel)
	assert.Equal(t, "yes the house is vacant", publisher.inbound[0].text)
}

func TestTelnyxWebhookIgnoresNonInbound(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	publisher := &fakePublisher{}
	handler := NewTelnyxWebhookHandler(repo, publisher, "", nil)

	for _, body := range []string{
		telnyxBody("message.sent", "outbound", lead.Phone, "hello"),
		telnyxBody("message.received", "outbound", lead.Phone, "hello"),
		telnyxBody("message.received", "inbound", "", "hello"),
	} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/messages", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.HandleMessages(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Empty(t, publisher.inbound)
}

func TestTelnyxWebhookUnknownNumberAcknowledged(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	publisher := &fakePublisher{}
	handler := NewTelnyxWebhookHandler(repo, publisher, "", nil)

	body := telnyxBody("message.received", "inbound", "+19995550000", "who is this")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleMessages(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, publisher.inbound)
}

func TestTelnyxWebhookSignatureVerification(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	publisher := &fakePublisher{}
	handler := NewTelnyxWebhookHandler(repo, publisher, base64.StdEncoding.EncodeToString(pub), nil)

	now := time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	body := telnyxBody("message.received", "inbound", lead.Phone, "sounds good")
	sign := func(ts string) string {
		sig := ed25519.Sign(priv, []byte(ts+"|"+body))
		return base64.StdEncoding.EncodeToString(sig)
	}

	ts := strconv.FormatInt(now.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/messages", strings.NewReader(body))
	req.Header.Set("Telnyx-Timestamp", ts)
	req.Header.Set("Telnyx-Signature-Ed25519", sign(ts))
	rec := httptest.NewRecorder()
	handler.HandleMessages(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing headers.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/messages", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler.HandleMessages(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key signed the payload.
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/messages", strings.NewReader(body))
	req.Header.Set("Telnyx-Timestamp", ts)
	req.Header.Set("Telnyx-Signature-Ed25519",
		base64.StdEncoding.EncodeToString(ed25519.Sign(otherPriv, []byte(ts+"|"+body))))
	rec = httptest.NewRecorder()
	handler.HandleMessages(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Stale timestamp.
	stale := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/telnyx/messages", strings.NewReader(body))
	req.Header.Set("Telnyx-Timestamp", stale)
	req.Header.Set("Telnyx-Signature-Ed25519", sign(stale))
	rec = httptest.NewRecorder()
	handler.HandleMessages(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Len(t, publisher.inbound, 1)
}
