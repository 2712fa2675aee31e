package session

import "github.com/felipemacedo1/go-msg-wss-app/internal/models"

// apply merges one decoded event into the ordered message collection and
// returns the next collection. It is a pure transform: the input slice is
// never mutated, so concurrent readers of a previous state stay consistent.
//
// Semantics:
//   - message_created appends unless a message with the same id exists
//   - reaction events replace the count with the authoritative value
//   - message_answered sets the flag to true, never back to false
//   - events targeting unknown ids and unrecognized kinds change nothing
func apply(msgs []models.Message, ev models.Event) ([]models.Message, bool) {
	switch {
	case ev.Created != nil:
		for _, m := range msgs {
			if m.ID == ev.Created.ID {
				return msgs, false
			}
		}
		next := make([]models.Message, len(msgs), len(msgs)+1)
		copy(next, msgs)
		return append(next, ev.Created.Message), true

	case ev.Reaction != nil:
		return replace(msgs, ev.Reaction.ID, func(m models.Message) (models.Message, bool) {
			changed := m.ReactionCount != ev.Reaction.Count
			m.ReactionCount = ev.Reaction.Count
			return m, changed
		})

	case ev.Answered != nil:
		return replace(msgs, ev.Answered.ID, func(m models.Message) (models.Message, bool) {
			changed := !m.Answered
			m.Answered = true
			return m, changed
		})
	}
	return msgs, false
}

func replace(msgs []models.Message, id string, fn func(models.Message) (models.Message, bool)) ([]models.Message, bool) {
	for i, m := range msgs {
		if m.ID != id {
			continue
		}
		updated, changed := fn(m)
		if !changed {
			return msgs, false
		}
		next := make([]models.Message, len(msgs))
		copy(next, msgs)
		next[i] = updated
		return next, true
	}
	return msgs, false
}
