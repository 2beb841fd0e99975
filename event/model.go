package event

import (
	"time"

	"github.com/samber/lo"
)

// ChatType classifies a chat.
type ChatType string

const (
	ChatTypeSingle         ChatType = "single"
	ChatTypeGroup          ChatType = "group"
	ChatTypePrivateChannel ChatType = "private_channel"
	ChatTypePublicChannel  ChatType = "public_channel"
)

// Chat is the chat record carried by chat membership events.
type Chat struct {
	ID        int64     `json:"id" validate:"required"`
	WsID      int64     `json:"ws_id"`
	Name      *string   `json:"name,omitempty"`
	Type      ChatType  `json:"type"`
	Members   []int64   `json:"members" validate:"required,min=1"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is the chat message record carried by NewMessage.
type Message struct {
	ID        int64     `json:"id" validate:"required"`
	ChatID    int64     `json:"chat_id" validate:"required"`
	SenderID  int64     `json:"sender_id" validate:"required"`
	Content   string    `json:"content"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"created_at"`
}

// wire returns c with a nil member list replaced by an empty one, so the
// payload always carries an array.
func (c Chat) wire() Chat {
	if c.Members == nil {
		c.Members = []int64{}
	}
	return c
}

func (m Message) wire() Message {
	if m.Files == nil {
		m.Files = []string{}
	}
	return m
}

// MemberIDs returns the chat members as user identifiers.
// Negative ids cannot identify a user and are skipped.
func (c Chat) MemberIDs() []uint64 {
	return UserIDs(c.Members)
}

// UserIDs converts signed member ids to user identifiers, skipping
// negative ones.
func UserIDs(members []int64) []uint64 {
	return lo.FilterMap(members, func(m int64, _ int) (uint64, bool) {
		return uint64(m), m >= 0
	})
}
