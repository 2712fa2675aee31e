package models

import "time"

// Message represents a chat message inside a room. ID is unique within the
// room and is the sole deduplication key.
type Message struct {
	ID            string    `db:"id" json:"id"`
	RoomID        string    `db:"room_id" json:"room_id"`
	Body          string    `db:"body" json:"message"`
	AuthorID      string    `db:"author_id" json:"author_id,omitempty"`
	AuthorName    string    `db:"author_name" json:"author_name,omitempty"`
	ReactionCount int64     `db:"reaction_count" json:"reaction_count"`
	Answered      bool      `db:"answered" json:"answered"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// NeedsDateSeparator reports whether a date separator belongs before the
// message at index i of a chronologically ordered collection.
func NeedsDateSeparator(msgs []Message, i int) bool {
	if i < 0 || i >= len(msgs) {
		return false
	}
	if i == 0 {
		return true
	}
	prev := msgs[i-1].CreatedAt
	cur := msgs[i].CreatedAt
	py, pm, pd := prev.Date()
	cy, cm, cd := cur.Date()
	return py != cy || pm != cm || pd != cd
}
