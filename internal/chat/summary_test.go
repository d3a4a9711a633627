package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryList_Order(t *testing.T) {
	var s SummaryList
	assert.True(t, s.Insert(SummaryEntry{Key: FriendKey(1), LastMessage: "a"}))
	assert.True(t, s.Insert(SummaryEntry{Key: FriendKey(2), LastMessage: "b"}))
	assert.True(t, s.Insert(SummaryEntry{Key: GroupKey(1), LastMessage: "c"}))
	assert.False(t, s.Insert(SummaryEntry{Key: FriendKey(2), LastMessage: "dup"}))
	assert.Equal(t, 3, s.Len())

	// touching the last entry moves it to the front, the rest keep order
	assert.True(t, s.Touch(FriendKey(1), "a2"))
	assert.Equal(t, []SessionKey{FriendKey(1), GroupKey(1), FriendKey(2)}, summaryKeys(s.Entries()))

	// touching the front entry keeps it there
	assert.True(t, s.Touch(FriendKey(1), "a3"))
	e, ok := s.Get(FriendKey(1))
	require.True(t, ok)
	assert.Equal(t, "a3", e.LastMessage)
	assert.Equal(t, FriendKey(1), s.Entries()[0].Key)

	assert.False(t, s.Touch(GroupKey(99), "missing"))
}

func TestSummaryList_SameTickLaterWins(t *testing.T) {
	var s SummaryList
	s.Insert(SummaryEntry{Key: FriendKey(1)})
	s.Insert(SummaryEntry{Key: FriendKey(2)})
	s.Insert(SummaryEntry{Key: FriendKey(3)})

	s.Touch(FriendKey(1), "x")
	s.Touch(FriendKey(2), "y")
	assert.Equal(t, []SessionKey{FriendKey(2), FriendKey(1), FriendKey(3)}, summaryKeys(s.Entries()))
}

func TestViewIntent_JSON(t *testing.T) {
	data, err := json.Marshal(ShowConversation(GroupKey(42)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"show_conversation","account":42,"is_group":true}`, string(data))

	data, err = json.Marshal(ShowConversationPane())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"show_conversation_pane"}`, string(data))

	data, err = json.Marshal(ViewIntent{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"none"}`, string(data))
}

func TestSessionKey_String(t *testing.T) {
	assert.Equal(t, "42 group", GroupKey(42).String())
	assert.Equal(t, "42 friend", FriendKey(42).String())
	assert.Equal(t, "show_conversation(7 friend)", ShowConversation(FriendKey(7)).String())
	assert.Equal(t, "combined", LayoutCombined.String())
}
