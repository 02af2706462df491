package domain

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further status transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestRejected
}

type ConnectionRequest struct {
	ID          uuid.UUID     `json:"id"`
	FromID      uuid.UUID     `json:"from_id"`
	FromName    string        `json:"from_name"`
	FromEmail   string        `json:"from_email"`
	ToID        uuid.UUID     `json:"to_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
}

// Involves reports whether userID is either side of the request.
func (r *ConnectionRequest) Involves(userID uuid.UUID) bool {
	return r.FromID == userID || r.ToID == userID
}

// Between reports whether the request links a and b, in either direction.
func (r *ConnectionRequest) Between(a, b uuid.UUID) bool {
	return (r.FromID == a && r.ToID == b) || (r.FromID == b && r.ToID == a)
}
