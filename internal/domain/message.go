package domain

import (
	"time"

	"github.com/google/uuid"
)

// EphemeralMessage is a short note between connected users. It lives only in memory
// until ExpiresAt.
type EphemeralMessage struct {
	ID        string    `json:"id"`
	FromID    uuid.UUID `json:"from_id"`
	FromName  string    `json:"from_name"`
	ToID      uuid.UUID `json:"to_id"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
