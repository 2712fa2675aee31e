package ws

import "time"

// ReconnectPolicy controls how a dropped subscription is re-established.
// MaxAttempts counts consecutive failed connects; a successful connect
// resets the counter. Zero means retry forever.
type ReconnectPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy matches the behavior observed in the field: a
// constant two second delay with no cap.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: 2 * time.Second}
}
