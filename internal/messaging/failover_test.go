package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentestate/outreach/internal/conversation"
)

type scriptedMessenger struct {
	result conversation.SendResult
	calls  int
}

func (m *scriptedMessenger) SendMessage(context.Context, conversation.OutboundMessage) conversation.SendResult {
	m.calls++
	return m.result
}

func TestFailoverPrimarySucceeds(t *testing.T) {
	primary := &scriptedMessenger{result: conversation.SendResult{Success: true, ProviderMessageID: "p-1"}}
	secondary := &scriptedMessenger{result: conversation.SendResult{Success: true, ProviderMessageID: "s-1"}}

	f := NewFailoverMessenger(primary, "telnyx", secondary, "twilio", nil)
	result := f.SendMessage(context.Background(), testMessage())

	require.True(t, result.Success)
	assert.Equal(t, "p-1", result.ProviderMessageID)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestFailoverFallsBackOnce(t *testing.T) {
	primary := &scriptedMessenger{result: conversation.SendResult{Success: false, Error: "carrier down"}}
	secondary := &scriptedMessenger{result: conversation.SendResult{Success: true, ProviderMessageID: "s-1"}}

	f := NewFailoverMessenger(primary, "telnyx", secondary, "twilio", nil)
	result := f.SendMessage(context.Background(), testMessage())

	require.True(t, result.Success)
	assert.Equal(t, "s-1", result.ProviderMessageID)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFailoverBothFail(t *testing.T) {
	primary := &scriptedMessenger{result: conversation.SendResult{Success: false, Error: "carrier down"}}
	secondary := &scriptedMessenger{result: conversation.SendResult{Success: false, Error: "also down"}}

	f := NewFailoverMessenger(primary, "telnyx", secondary, "twilio", nil)
	result := f.SendMessage(context.Background(), testMessage())

	require.False(t, result.Success)
	assert.Equal(t, "also down", result.Error)
}

func TestFailoverNoSecondary(t *testing.T) {
	primary := &scriptedMessenger{result: conversation.SendResult{Success: false, Error: "carrier down"}}
	f := NewFailoverMessenger(primary, "telnyx", nil, "", nil)

	result := f.SendMessage(context.Background(), testMessage())
	require.False(t, result.Success)
	assert.Equal(t, "carrier down", result.Error)
}

func TestStubMessengerAlwaysSucceeds(t *testing.T) {
	stub := NewStubMessenger(conversation.ChannelSMS, nil)
	result := stub.SendMessage(context.Background(), testMessage())
	require.True(t, result.Success)
	assert.NotEmpty(t, result.ProviderMessageID)
}
