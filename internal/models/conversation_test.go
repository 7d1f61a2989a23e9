package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectID("a1", "b1"), DirectID("b1", "a1"))
	assert.Equal(t, "a1_b1", DirectID("b1", "a1"))
}

func TestParseConversationIDDirect(t *testing.T) {
	id, err := ParseConversationID("direct:a1_b1")
	require.NoError(t, err)
	assert.Equal(t, KindDirect, id.Kind)
	assert.Equal(t, "a1_b1", id.Key)

	a, b, err := id.DirectParticipants()
	require.NoError(t, err)
	assert.Equal(t, "a1", a)
	assert.Equal(t, "b1", b)
}

func TestParseConversationIDCanonicalizesDirectKey(t *testing.T) {
	id, err := ParseConversationID("direct:b1_a1")
	require.NoError(t, err)
	assert.Equal(t, "a1_b1", id.Key)
	assert.Equal(t, "direct:a1_b1", id.String())
}

func TestParseConversationIDGroup(t *testing.T) {
	id, err := ParseConversationID("group:7f3d")
	require.NoError(t, err)
	assert.Equal(t, KindGroup, id.Kind)
	assert.Equal(t, "7f3d", id.Key)
	assert.Equal(t, "group:7f3d", id.String())
}

func TestParseConversationIDRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "direct", "direct:", "direct:solo", "direct:_b", "direct:a_", "channel:x", "group:"} {
		_, err := ParseConversationID(raw)
		assert.ErrorIs(t, err, ErrDecode, "input %q", raw)
	}
}

func TestDirectParticipantsRejectsGroupID(t *testing.T) {
	id := ConversationID{Kind: KindGroup, Key: "g1"}
	_, _, err := id.DirectParticipants()
	assert.ErrorIs(t, err, ErrDecode)
}

func TestHasActivity(t *testing.T) {
	assert.False(t, ConversationListItem{}.HasActivity())
	assert.True(t, ConversationListItem{LastTime: time.Now()}.HasActivity())
}
