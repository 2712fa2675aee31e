package models

import (
	"encoding/json"
	"fmt"
)

// Event kinds carried on the live subscription.
const (
	KindMessageCreated           = "message_created"
	KindMessageReactionIncreased = "message_reaction_increased"
	KindMessageReactionDecreased = "message_reaction_decreased"
	KindMessageAnswered          = "message_answered"
)

// Event is one decoded frame from the live subscription. Exactly one of the
// typed values is set, matching Kind. Unknown kinds leave all values nil so
// callers can ignore them without failing.
type Event struct {
	Kind string `json:"kind"`

	Created  *MessageCreatedEvent  `json:"-"`
	Reaction *ReactionChangedEvent `json:"-"`
	Answered *MessageAnsweredEvent `json:"-"`
}

// MessageCreatedEvent carries the full new message.
type MessageCreatedEvent struct {
	Message
}

// ReactionChangedEvent carries the authoritative new count, not a delta.
type ReactionChangedEvent struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// MessageAnsweredEvent marks a message as answered.
type MessageAnsweredEvent struct {
	ID string `json:"id"`
}

type eventEnvelope struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// DecodeEvent parses one subscription frame. A malformed payload, or a known
// kind whose value names no message id, returns an error; an unrecognized
// kind does not.
func DecodeEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Kind == "" {
		return Event{}, fmt.Errorf("decode event: missing kind")
	}

	ev := Event{Kind: env.Kind}
	switch env.Kind {
	case KindMessageCreated:
		var v MessageCreatedEvent
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return Event{}, fmt.Errorf("decode %s value: %w", env.Kind, err)
		}
		ev.Created = &v
	case KindMessageReactionIncreased, KindMessageReactionDecreased:
		var v ReactionChangedEvent
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return Event{}, fmt.Errorf("decode %s value: %w", env.Kind, err)
		}
		ev.Reaction = &v
	case KindMessageAnswered:
		var v MessageAnsweredEvent
		if err := json.Unmarshal(env.Value, &v); err != nil {
			return Event{}, fmt.Errorf("decode %s value: %w", env.Kind, err)
		}
		ev.Answered = &v
	}
	if isKnownKind(env.Kind) && ev.TargetID() == "" {
		// Covers "value":null too, which unmarshals into a zero value.
		return Event{}, fmt.Errorf("decode %s value: missing id", env.Kind)
	}
	return ev, nil
}

func isKnownKind(kind string) bool {
	switch kind {
	case KindMessageCreated, KindMessageReactionIncreased, KindMessageReactionDecreased, KindMessageAnswered:
		return true
	}
	return false
}

// TargetID returns the message id the event refers to, or "" for unknown kinds.
func (e Event) TargetID() string {
	switch {
	case e.Created != nil:
		return e.Created.ID
	case e.Reaction != nil:
		return e.Reaction.ID
	case e.Answered != nil:
		return e.Answered.ID
	}
	return ""
}
