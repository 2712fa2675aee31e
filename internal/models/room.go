package models

import "time"

// Room is a themed chat room. Rooms are immutable once created from this
// client's point of view.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Theme     string    `db:"theme" json:"theme"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
