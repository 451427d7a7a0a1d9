package core

import "time"

// Message is the domain model for a chat message.
type Message struct {
	ID        int64
	Username  string
	Room      Room
	Text      string
	CreatedAt time.Time
}

// Timestamp returns CreatedAt as fractional seconds since the unix epoch.
func (m Message) Timestamp() float64 {
	return float64(m.CreatedAt.UnixNano()) / float64(time.Second)
}
