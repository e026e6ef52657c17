package model

import "time"

// MessageKind classifies a transient user-facing notification.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
	MessageWarning MessageKind = "warning"
)

// Message is a transient notification. It auto-expires: the game service
// stops surfacing it once ExpiresAt has passed.
type Message struct {
	Kind      MessageKind `json:"kind"`
	Text      string      `json:"text"`
	ExpiresAt time.Time   `json:"-"`
}
