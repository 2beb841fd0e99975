package pglisten

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/validation"
)

// Notification channels the listener subscribes to.
const (
	ChannelChatUpdated    = "chat_updated"
	ChannelMessageCreated = "chat_message_created"
)

// Row operations reported on ChannelChatUpdated.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Channels returns every channel the listener subscribes to.
func Channels() []string {
	return []string{ChannelChatUpdated, ChannelMessageCreated}
}

// ChatUpdated is the payload of a chat_updated notification.
type ChatUpdated struct {
	Op  string      `json:"op"`
	Old *event.Chat `json:"old"`
	New *event.Chat `json:"new"`
}

// MessageCreated is the payload of a chat_message_created notification.
type MessageCreated struct {
	Message event.Message `json:"message"`
	Members []int64       `json:"members"`
}

// Notification is a domain event and the users it goes to.
type Notification struct {
	Event      event.Event
	Recipients []uint64
}

// Parse turns a database notification into a Notification. It returns nil
// without error when the change concerns nobody, such as a chat update that
// leaves membership unchanged.
func Parse(channel, payload string) (*Notification, error) {
	switch channel {
	case ChannelChatUpdated:
		var p ChatUpdated
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("pglisten: decode %s: %w", channel, err)
		}
		return p.notification()
	case ChannelMessageCreated:
		var p MessageCreated
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("pglisten: decode %s: %w", channel, err)
		}
		return p.notification()
	default:
		return nil, fmt.Errorf("pglisten: unexpected channel %q", channel)
	}
}

func (p ChatUpdated) notification() (*Notification, error) {
	v := validation.New().OneOf("op", p.Op, []string{OpInsert, OpUpdate, OpDelete})
	switch p.Op {
	case OpInsert:
		v.NotNil("new", p.New != nil)
	case OpUpdate:
		v.NotNil("old", p.Old != nil).NotNil("new", p.New != nil)
	case OpDelete:
		v.NotNil("old", p.Old != nil)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	switch p.Op {
	case OpInsert:
		return &Notification{
			Event:      event.NewChat{Chat: *p.New},
			Recipients: p.New.MemberIDs(),
		}, nil
	case OpUpdate:
		added, removed := lo.Difference(p.New.Members, p.Old.Members)
		if len(added) == 0 && len(removed) == 0 {
			return nil, nil
		}
		return &Notification{
			Event:      event.AddToChat{Chat: *p.New},
			Recipients: event.UserIDs(lo.Union(p.Old.Members, p.New.Members)),
		}, nil
	default:
		return &Notification{
			Event:      event.RemoveFromChat{Chat: *p.Old},
			Recipients: p.Old.MemberIDs(),
		}, nil
	}
}

func (p MessageCreated) notification() (*Notification, error) {
	err := validation.New().
		Positive("message.id", p.Message.ID).
		Positive("message.chat_id", p.Message.ChatID).
		Custom(len(p.Members) > 0, "members", "must not be empty").
		Err()
	if err != nil {
		return nil, err
	}
	return &Notification{
		Event:      event.NewMessage{Message: p.Message},
		Recipients: event.UserIDs(p.Members),
	}, nil
}
