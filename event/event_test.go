package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChat() Chat {
	return Chat{
		ID:        1,
		WsID:      1,
		Type:      ChatTypeGroup,
		Members:   []int64{1, 2, 3},
		CreatedAt: time.Date(2024, 7, 11, 12, 0, 0, 0, time.UTC),
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"new chat", NewChat{Chat: testChat()}, LabelNewChat},
		{"add to chat", AddToChat{Chat: testChat()}, LabelAddToChat},
		{"remove from chat", RemoveFromChat{Chat: testChat()}, LabelRemoveFromChat},
		{"new message", NewMessage{Message: Message{ID: 1}}, LabelNewMessage},
		{"pointer variant", &NewMessage{Message: Message{ID: 1}}, LabelNewMessage},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Label(tc.ev))
		})
	}
}

func TestEncode_TagsPayloadWithLabel(t *testing.T) {
	msg := Message{ID: 7, ChatID: 1, SenderID: 2, Content: "hello", Files: []string{}}

	rec, err := Encode(NewMessage{Message: msg})
	require.NoError(t, err)
	assert.Equal(t, LabelNewMessage, rec.Label)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.Data), &body))
	assert.Equal(t, "NewMessage", body["event"])
	assert.Equal(t, "hello", body["content"])
	assert.EqualValues(t, 7, body["id"])
	assert.EqualValues(t, 1, body["chat_id"])
}

func TestEncode_NilListsBecomeEmptyArrays(t *testing.T) {
	rec, err := Encode(NewMessage{Message: Message{ID: 1, ChatID: 1, SenderID: 2}})
	require.NoError(t, err)
	assert.Contains(t, rec.Data, `"files":[]`)

	chat := testChat()
	chat.Members = nil
	rec, err = Encode(&RemoveFromChat{Chat: chat})
	require.NoError(t, err)
	assert.Contains(t, rec.Data, `"members":[]`)
	assert.NotContains(t, rec.Data, "null")
}

func TestEncode_NilEvent(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
}

func TestDecode_RebuildsVariant(t *testing.T) {
	chat := testChat()
	rec, err := Encode(AddToChat{Chat: chat})
	require.NoError(t, err)

	ev, err := Decode(rec.Label, []byte(rec.Data))
	require.NoError(t, err)

	got, ok := ev.(AddToChat)
	require.True(t, ok, "expected AddToChat, got %T", ev)
	assert.Equal(t, chat.ID, got.Chat.ID)
	assert.Equal(t, chat.Members, got.Chat.Members)
	assert.True(t, chat.CreatedAt.Equal(got.Chat.CreatedAt))
}

func TestDecode_UnknownLabel(t *testing.T) {
	_, err := Decode("Unknown", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown label")
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := Decode(LabelNewMessage, []byte(`{"id":`))
	require.Error(t, err)
}

func TestControlRecords(t *testing.T) {
	hb := Heartbeat()
	assert.True(t, hb.IsHeartbeat())
	assert.Equal(t, "keep-alive-text", hb.Data)

	dc := Disconnect()
	assert.False(t, dc.IsHeartbeat())
	assert.Equal(t, "disconnect", dc.Label)
	assert.Equal(t, "User disconnected", dc.Data)
}

func TestChat_MemberIDs(t *testing.T) {
	c := Chat{Members: []int64{3, -1, 5}}
	assert.Equal(t, []uint64{3, 5}, c.MemberIDs())
}

func TestPayload(t *testing.T) {
	chat := testChat()
	msg := Message{ID: 5, ChatID: 1, SenderID: 2}

	assert.Equal(t, chat, Payload(NewChat{Chat: chat}))
	assert.Equal(t, chat, Payload(&RemoveFromChat{Chat: chat}))
	assert.Equal(t, msg, Payload(NewMessage{Message: msg}))
	assert.Nil(t, Payload(nil))
}

func TestLabels_MatchVariants(t *testing.T) {
	for _, label := range Labels() {
		ev, err := Decode(label, []byte(`{}`))
		require.NoError(t, err, label)
		assert.Equal(t, label, Label(ev))
	}
}
