// Package event defines the domain events streamed to connected users.
//
// An Event is one of a closed set of variants (NewChat, AddToChat,
// RemoveFromChat, NewMessage). Each variant carries an immutable payload and
// maps to a wire label through Label. Encode turns an event into the Record
// written to a client; Decode reverses it for transports that carry events
// between processes.
//
// # Usage
//
//	ev := event.NewMessage{Message: msg}
//	rec, err := event.Encode(ev)
//	// rec.Label == "NewMessage"
package event
