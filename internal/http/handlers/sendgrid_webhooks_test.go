package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentestate/outreach/internal/conversation"
	"github.com/agentestate/outreach/internal/leads"
)

func inboundEmailRequest(t *testing.T, from, text string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("from", from))
	require.NoError(t, w.WriteField("text", text))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sendgrid/inbound", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestInboundEmailEnqueuesReply(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead := seedLead(t, repo)
	publisher := &fakePublisher{}
	handler := NewInboundEmailHandler(repo, publisher, nil)

	text := "The roof needs work but the rest is solid.\n\nOn Tue, Aug 18, 2026 Brightline wrote:\n> Hi Jane, quick question"
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, inboundEmailRequest(t, "Jane Seller <jane@example.com>", text))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.inbound, 1)
	assert.Equal(t, lead.ID, publisher.inbound[0].leadID)
	assert.Equal(t, conversation.ChannelEmail, publisher.inbound[0].channel)
	assert.Equal(t, "The roof needs work but the rest is solid.", publisher.inbound[0].text)
}

func TestInboundEmailUnknownAddressAcknowledged(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	publisher := &fakePublisher{}
	handler := NewInboundEmailHandler(repo, publisher, nil)

	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, inboundEmailRequest(t, "stranger@example.org", "hello"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, publisher.inbound)
}

func TestInboundEmailMissingFields(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	seedLead(t, repo)
	publisher := &fakePublisher{}
	handler := NewInboundEmailHandler(repo, publisher, nil)

	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, inboundEmailRequest(t, "jane@example.com", "   "))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, publisher.inbound)
}

func TestStripQuotedReply(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no quoting", "sounds good", "sounds good"},
		{"angle quoted", "yes please\n> earlier message\n> more", "yes please"},
		{"on wrote", "works for me\nOn Mon, Aug 17, 2026 Sam wrote:\nearlier", "works for me"},
		{"all quoted falls back", "> only quoted text", "> only quoted text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripQuotedReply(tc.in))
		})
	}
}
