package relay

import (
	"encoding/json"
	"fmt"

	"github.com/kbukum/notify/event"
	"github.com/kbukum/notify/validation"
)

// Envelope is the message published on the relay channel.
type Envelope struct {
	Label      string          `json:"label" validate:"required,event_label"`
	Data       json.RawMessage `json:"data" validate:"required"`
	Recipients []uint64        `json:"recipients" validate:"required,min=1"`
	// Origin is the instance id of the publisher, for logs.
	Origin string `json:"origin,omitempty"`
}

// Seal builds the wire form of ev for recipients.
func Seal(origin string, ev event.Event, recipients []uint64) ([]byte, error) {
	data, err := event.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Label:      event.Label(ev),
		Data:       data,
		Recipients: recipients,
		Origin:     origin,
	})
}

// Open parses and validates a relayed message.
func Open(payload []byte) (Envelope, event.Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("relay: decode envelope: %w", err)
	}
	if err := validation.Validate(env); err != nil {
		return env, nil, err
	}
	ev, err := event.Decode(env.Label, env.Data)
	if err != nil {
		return env, nil, err
	}
	return env, ev, nil
}
