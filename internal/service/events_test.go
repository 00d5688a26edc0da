package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superchat/server/internal/domain"
)

func TestParseChannel(t *testing.T) {
	kind, id, err := ParseChannel("room:12")
	require.NoError(t, err)
	assert.Equal(t, RoomChannelKind, kind)
	assert.Equal(t, 12, id)

	kind, id, err = ParseChannel("user:3")
	require.NoError(t, err)
	assert.Equal(t, UserChannelKind, kind)
	assert.Equal(t, 3, id)

	for _, malformed := range []string{"", "room", "room:", "room:abc", "room:0", "room:-4", "group:5"} {
		_, _, err := ParseChannel(malformed)
		assert.Error(t, err, "channel %q", malformed)
	}
}

func TestChannelNamesRoundTrip(t *testing.T) {
	kind, id, err := ParseChannel(domain.RoomChannel(7))
	require.NoError(t, err)
	assert.Equal(t, RoomChannelKind, kind)
	assert.Equal(t, 7, id)

	kind, id, err = ParseChannel(domain.UserChannel(9))
	require.NoError(t, err)
	assert.Equal(t, UserChannelKind, kind)
	assert.Equal(t, 9, id)
}

func TestEnvelopeCarriesTypedPayload(t *testing.T) {
	event, err := NewEnvelope(domain.TypingType, TypingEvent{RoomID: 1, IsTyping: true})
	require.NoError(t, err)
	assert.Equal(t, domain.TypingType, event.Type)

	var te TypingEvent
	require.NoError(t, json.Unmarshal(event.Data, &te))
	assert.Equal(t, 1, te.RoomID)
	assert.True(t, te.IsTyping)
}
