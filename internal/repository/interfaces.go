package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
)

var (
	// ErrNotFound is returned by mutations that target a missing record.
	// Lookups return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would break a uniqueness rule, such as a
	// second email registration or a second pending request between the same users.
	ErrConflict = errors.New("conflicting record exists")
)

type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

type ConnectionUpdate struct {
	Nickname *string
	PhotoURL *string
}

type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	Update(ctx context.Context, id uuid.UUID, update ProfileUpdate) error
	SetMood(ctx context.Context, id uuid.UUID, mood *domain.Mood) error
	SetLocation(ctx context.Context, id uuid.UUID, loc domain.Location) error

	// AddConnection appends ref to the owner's set unless a ref with the same id
	// is already there. It reports whether anything was added.
	AddConnection(ctx context.Context, ownerID uuid.UUID, ref domain.ConnectionRef) (bool, error)
	RemoveConnection(ctx context.Context, ownerID, peerID uuid.UUID) (bool, error)
	UpdateConnection(ctx context.Context, ownerID, peerID uuid.UUID, update ConnectionUpdate) (bool, error)

	// Search returns up to limit profiles other than excludeID whose email or display
	// name contains query, ignoring case.
	Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.Profile, error)

	// WatchProfile emits the current profile and then a fresh snapshot after every
	// change, until ctx is done. A nil value means the profile does not exist.
	WatchProfile(ctx context.Context, id uuid.UUID) (<-chan *domain.Profile, error)
}

type RequestRepository interface {
	// Create fails with ErrConflict if a pending request already links the two users.
	Create(ctx context.Context, req *domain.ConnectionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ConnectionRequest, error)
	FindPendingBetween(ctx context.Context, a, b uuid.UUID) (*domain.ConnectionRequest, error)

	// Transition moves a pending request to status. It reports false when the request
	// was no longer pending.
	Transition(ctx context.Context, id uuid.UUID, status domain.RequestStatus, at time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBetween(ctx context.Context, a, b uuid.UUID) (int, error)

	ListIncoming(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error)

	// WatchRequests emits every request involving userID, newest first, on each change.
	WatchRequests(ctx context.Context, userID uuid.UUID) (<-chan []domain.ConnectionRequest, error)
}

// ConnectionResolver joins a profile's connection refs with the peers' live profiles.
// Peers that cannot be loaded are left out of the result.
type ConnectionResolver interface {
	ResolveConnections(ctx context.Context, owner *domain.Profile) ([]domain.ResolvedConnection, error)
}
