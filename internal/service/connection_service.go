package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrCannotRequestSelf     = errors.New("cannot send a connection request to yourself")
	ErrRequestAlreadyExists  = errors.New("a pending request already exists")
	ErrAlreadyConnected      = errors.New("you are already connected")
	ErrRequestNotFound       = errors.New("connection request not found")
	ErrNotRequestRecipient   = errors.New("only the request recipient can respond")
	ErrNotRequestSender      = errors.New("only the request sender can cancel")
	ErrRequestAlreadyHandled = errors.New("connection request was already answered")
	ErrConnectionNotFound    = errors.New("connection not found")
)

const (
	SearchMinLength = 3
	SearchLimit     = 5
)

type ConnectionService struct {
	profiles repository.ProfileRepository
	requests repository.RequestRepository
	resolver repository.ConnectionResolver
	notifier Notifier
	now      func() time.Time
}

func NewConnectionService(
	profiles repository.ProfileRepository,
	requests repository.RequestRepository,
	resolver repository.ConnectionResolver,
) *ConnectionService {
	return &ConnectionService{
		profiles: profiles,
		requests: requests,
		resolver: resolver,
		now:      time.Now,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ConnectionService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SearchResult is the public part of a profile shown to users who are not connected.
type SearchResult struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
}

// ResolveConnections joins every ref of profile with the peer's current profile.
func (s *ConnectionService) ResolveConnections(ctx context.Context, profile *domain.Profile) ([]domain.ResolvedConnection, error) {
	resolved, err := s.resolver.ResolveConnections(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("resolving connections: %w", err)
	}
	return resolved, nil
}

// Connections loads the caller's profile and resolves it.
func (s *ConnectionService) Connections(ctx context.Context, userID uuid.UUID) ([]domain.ResolvedConnection, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if profile == nil {
		return nil, ErrUserNotFound
	}
	return s.ResolveConnections(ctx, profile)
}

// SendRequest sends a connection request to the profile registered under email.
func (s *ConnectionService) SendRequest(ctx context.Context, senderID uuid.UUID, email string) (*domain.ConnectionRequest, error) {
	target, err := s.profiles.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if target == nil {
		return nil, ErrUserNotFound
	}
	if target.ID == senderID {
		return nil, ErrCannotRequestSelf
	}

	sender, err := s.profiles.GetByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}
	if sender.IsConnected(target.ID) {
		return nil, ErrAlreadyConnected
	}

	existing, err := s.requests.FindPendingBetween(ctx, senderID, target.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrRequestAlreadyExists
	}

	req := &domain.ConnectionRequest{
		ID:        uuid.New(),
		FromID:    sender.ID,
		FromName:  sender.DisplayName,
		FromEmail: sender.Email,
		ToID:      target.ID,
		Status:    domain.RequestPending,
		CreatedAt: s.now(),
	}

	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRequestAlreadyExists
		}
		return nil, fmt.Errorf("creating connection request: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyRequest(req)
	}
	return req, nil
}

// RespondToRequest accepts or rejects a pending request addressed to userID. On
// accept both profiles gain a ref to each other and the new entry is returned tagged
// optimistic, since the caller's feed has not echoed it yet.
func (s *ConnectionService) RespondToRequest(ctx context.Context, userID, requestID uuid.UUID, accept bool) (*domain.ResolvedConnection, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.ToID != userID {
		return nil, ErrNotRequestRecipient
	}
	if req.Status.Terminal() {
		return nil, ErrRequestAlreadyHandled
	}

	now := s.now()

	if !accept {
		ok, err := s.requests.Transition(ctx, req.ID, domain.RequestRejected, now)
		if err != nil {
			return nil, fmt.Errorf("rejecting request: %w", err)
		}
		if !ok {
			return nil, ErrRequestAlreadyHandled
		}
		return nil, nil
	}

	sender, err := s.profiles.GetByID(ctx, req.FromID)
	if err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}
	recipient, err := s.profiles.GetByID(ctx, req.ToID)
	if err != nil {
		return nil, fmt.Errorf("loading recipient: %w", err)
	}
	if sender == nil || recipient == nil {
		return nil, ErrUserNotFound
	}

	ok, err := s.requests.Transition(ctx, req.ID, domain.RequestAccepted, now)
	if err != nil {
		return nil, fmt.Errorf("accepting request: %w", err)
	}
	if !ok {
		return nil, ErrRequestAlreadyHandled
	}

	ref := sender.RefTo(now)
	if _, err := s.profiles.AddConnection(ctx, recipient.ID, ref); err != nil {
		return nil, fmt.Errorf("adding connection: %w", err)
	}
	if _, err := s.profiles.AddConnection(ctx, sender.ID, recipient.RefTo(now)); err != nil {
		return nil, fmt.Errorf("adding reverse connection: %w", err)
	}

	rc := domain.Resolve(ref, sender, domain.SyncOptimistic)
	return &rc, nil
}

// CancelRequest withdraws a pending request sent by userID.
func (s *ConnectionService) CancelRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.FromID != userID {
		return ErrNotRequestSender
	}
	if req.Status.Terminal() {
		return ErrRequestAlreadyHandled
	}
	return s.requests.Delete(ctx, requestID)
}

// RemoveConnection drops the connection on both sides and purges every request
// between the two users. The peer side is best effort.
func (s *ConnectionService) RemoveConnection(ctx context.Context, userID, peerID uuid.UUID) error {
	removed, err := s.profiles.RemoveConnection(ctx, userID, peerID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("removing connection: %w", err)
	}
	if !removed {
		return ErrConnectionNotFound
	}

	if _, err := s.profiles.RemoveConnection(ctx, peerID, userID); err != nil {
		glog.Warningf("[conn]%s remove reverse ref on %s error = %s", userID, peerID, err)
	}

	n, err := s.requests.DeleteBetween(ctx, userID, peerID)
	if err != nil {
		return fmt.Errorf("purging requests: %w", err)
	}
	glog.V(1).Infof("[conn]%s removed %s, purged %d requests", userID, peerID, n)
	return nil
}

// UpdateNickname sets the caller's private nickname for peerID.
func (s *ConnectionService) UpdateNickname(ctx context.Context, userID, peerID uuid.UUID, nickname string) error {
	return s.updateConnection(ctx, userID, peerID, repository.ConnectionUpdate{Nickname: &nickname})
}

// UpdatePhoto sets the caller's private photo for peerID.
func (s *ConnectionService) UpdatePhoto(ctx context.Context, userID, peerID uuid.UUID, photoURL string) error {
	return s.updateConnection(ctx, userID, peerID, repository.ConnectionUpdate{PhotoURL: &photoURL})
}

func (s *ConnectionService) updateConnection(ctx context.Context, userID, peerID uuid.UUID, update repository.ConnectionUpdate) error {
	ok, err := s.profiles.UpdateConnection(ctx, userID, peerID, update)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	if !ok {
		return ErrConnectionNotFound
	}
	return nil
}

// Search finds up to SearchLimit other profiles whose email or display name contains
// partial. Inputs shorter than SearchMinLength return nothing.
func (s *ConnectionService) Search(ctx context.Context, userID uuid.UUID, partial string) ([]SearchResult, error) {
	partial = strings.TrimSpace(partial)
	results := []SearchResult{}
	if utf8.RuneCountInString(partial) < SearchMinLength {
		return results, nil
	}

	profiles, err := s.profiles.Search(ctx, partial, userID, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}
	for _, p := range profiles {
		results = append(results, SearchResult{
			ID:          p.ID,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
		})
	}
	return results, nil
}

// ListIncomingRequests returns pending requests received by the user.
func (s *ConnectionService) ListIncomingRequests(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	reqs, err := s.requests.ListIncoming(ctx, userID)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []domain.ConnectionRequest{}
	}
	return reqs, nil
}

// ListOutgoingRequests returns pending requests sent by the user.
func (s *ConnectionService) ListOutgoingRequests(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	reqs, err := s.requests.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []domain.ConnectionRequest{}
	}
	return reqs, nil
}
