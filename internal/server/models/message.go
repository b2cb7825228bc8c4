package models

import "time"

// Message is an opaque payload queued for a set of recipients.
type Message struct {
	ID        string
	SenderID  string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}
