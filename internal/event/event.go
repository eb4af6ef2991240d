package event

import (
	"time"

	"github.com/google/uuid"
)

// Type doubles as the scope a live connection needs to receive the event.
type Type string

const (
	TypeUserCreated         Type = "users.created"
	TypeUserUpdated         Type = "users.updated"
	TypeUserPasswordChanged Type = "users.password"
	TypeUserDeleted         Type = "users.deleted"
	TypeSessionCreated      Type = "sessions.created"
	TypeSessionUpdated      Type = "sessions.updated"
	TypeSessionDisabled     Type = "sessions.disabled"
	TypeSessionDeleted      Type = "sessions.deleted"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   int64  `json:"actor_id,omitempty"`
}

func New(t Type, payload any, actorID int64) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
