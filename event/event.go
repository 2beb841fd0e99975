package event

import (
	"encoding/json"
	"fmt"
)

// Wire labels for the event variants.
const (
	LabelNewChat        = "NewChat"
	LabelAddToChat      = "AddToChat"
	LabelRemoveFromChat = "RemoveFromChat"
	LabelNewMessage     = "NewMessage"
)

// Control labels that carry no domain payload.
const (
	// LabelDisconnect marks the final record of a stream.
	LabelDisconnect = "disconnect"
	// LabelHeartbeat marks a keep-alive record. Transports write it in
	// their native keep-alive form (an SSE comment) rather than as an event.
	LabelHeartbeat = "heartbeat"

	DisconnectText = "User disconnected"
	KeepAliveText  = "keep-alive-text"
)

// Event is a domain event delivered to users. The set of variants is closed:
// only the types in this package implement it.
type Event interface {
	isEvent()
}

// NewChat is raised when a chat is created.
type NewChat struct{ Chat Chat }

// AddToChat is raised when chat membership grows or changes.
type AddToChat struct{ Chat Chat }

// RemoveFromChat is raised when a chat is removed.
type RemoveFromChat struct{ Chat Chat }

// NewMessage is raised when a message is posted to a chat.
type NewMessage struct{ Message Message }

func (NewChat) isEvent()        {}
func (AddToChat) isEvent()      {}
func (RemoveFromChat) isEvent() {}
func (NewMessage) isEvent()     {}

// Label returns the wire label of ev, or "" for nil.
func Label(ev Event) string {
	switch ev.(type) {
	case NewChat, *NewChat:
		return LabelNewChat
	case AddToChat, *AddToChat:
		return LabelAddToChat
	case RemoveFromChat, *RemoveFromChat:
		return LabelRemoveFromChat
	case NewMessage, *NewMessage:
		return LabelNewMessage
	default:
		return ""
	}
}

// Record is one framed unit written to a client: a label and its payload.
type Record struct {
	Label string
	Data  string
}

// IsHeartbeat reports whether r is a keep-alive record.
func (r Record) IsHeartbeat() bool { return r.Label == LabelHeartbeat }

// Heartbeat returns the keep-alive record.
func Heartbeat() Record {
	return Record{Label: LabelHeartbeat, Data: KeepAliveText}
}

// Disconnect returns the record that terminates a stream.
func Disconnect() Record {
	return Record{Label: LabelDisconnect, Data: DisconnectText}
}

type taggedChat struct {
	Event string `json:"event"`
	Chat
}

type taggedMessage struct {
	Event string `json:"event"`
	Message
}

// Marshal serializes ev as a JSON object tagged with its label in the
// "event" key next to the payload fields.
func Marshal(ev Event) ([]byte, error) {
	label := Label(ev)
	switch e := ev.(type) {
	case NewChat:
		return json.Marshal(taggedChat{Event: label, Chat: e.Chat.wire()})
	case *NewChat:
		return json.Marshal(taggedChat{Event: label, Chat: e.Chat.wire()})
	case AddToChat:
		return json.Marshal(taggedChat{Event: label, Chat: e.Chat.wire()})
	case *AddToChat:
		return json.Marshal(taggedChat{Event: label, Chat: e.Chat.wire()})
	case RemoveFromChat:
		return json.Marshal(taggedChat{Event: label, Chat: e.Chat.wire()})
	case *RemoveFromChat:
		return json.Marshal(taggedChat{Event: label, Chat: e.Chat.wire()})
	case NewMessage:
		return json.Marshal(taggedMessage{Event: label, Message: e.Message.wire()})
	case *NewMessage:
		return json.Marshal(taggedMessage{Event: label, Message: e.Message.wire()})
	default:
		return nil, fmt.Errorf("event: unsupported event type %T", ev)
	}
}

// Encode frames ev as a wire record.
func Encode(ev Event) (Record, error) {
	data, err := Marshal(ev)
	if err != nil {
		return Record{}, err
	}
	return Record{Label: Label(ev), Data: string(data)}, nil
}

// Decode rebuilds an event from its label and the payload produced by
// Marshal. The "event" key inside data, if present, is ignored in favour of
// label.
func Decode(label string, data []byte) (Event, error) {
	switch label {
	case LabelNewChat, LabelAddToChat, LabelRemoveFromChat:
		var c taggedChat
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", label, err)
		}
		switch label {
		case LabelNewChat:
			return NewChat{Chat: c.Chat}, nil
		case LabelAddToChat:
			return AddToChat{Chat: c.Chat}, nil
		default:
			return RemoveFromChat{Chat: c.Chat}, nil
		}
	case LabelNewMessage:
		var m taggedMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", label, err)
		}
		return NewMessage{Message: m.Message}, nil
	default:
		return nil, fmt.Errorf("event: unknown label %q", label)
	}
}

// Labels returns the wire labels of every domain event variant.
func Labels() []string {
	return []string{LabelNewChat, LabelAddToChat, LabelRemoveFromChat, LabelNewMessage}
}

// Payload returns the record carried by ev: a Chat or a Message.
func Payload(ev Event) any {
	switch e := ev.(type) {
	case NewChat:
		return e.Chat
	case *NewChat:
		return e.Chat
	case AddToChat:
		return e.Chat
	case *AddToChat:
		return e.Chat
	case RemoveFromChat:
		return e.Chat
	case *RemoveFromChat:
		return e.Chat
	case NewMessage:
		return e.Message
	case *NewMessage:
		return e.Message
	default:
		return nil
	}
}
