package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/oklog/ulid/v2"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
)

var (
	ErrNotConnected = errors.New("you can only message your connections")
	ErrEmptyMessage = errors.New("message text is required")
)

const (
	DefaultMessageTTL = time.Hour
	inboxCapacity     = 100_000
)

// Notifier pushes real-time events to connected clients.
type Notifier interface {
	NotifyMessage(msg *domain.EphemeralMessage)
	NotifyRequest(req *domain.ConnectionRequest)
}

// MessageService keeps ephemeral messages in a TTL cache. Nothing is written to the
// store and messages vanish once they expire.
type MessageService struct {
	profiles repository.ProfileRepository
	inbox    *ttlcache.Cache[string, domain.EphemeralMessage]
	ttl      time.Duration
	notifier Notifier

	// message ids per recipient, trimmed as the cache evicts
	mu          sync.Mutex
	byRecipient map[uuid.UUID]map[string]struct{}
}

func NewMessageService(profiles repository.ProfileRepository, ttl time.Duration) *MessageService {
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	inbox := ttlcache.New[string, domain.EphemeralMessage](
		ttlcache.WithTTL[string, domain.EphemeralMessage](ttl),
		ttlcache.WithCapacity[string, domain.EphemeralMessage](inboxCapacity),
	)

	s := &MessageService{
		profiles:    profiles,
		inbox:       inbox,
		ttl:         ttl,
		byRecipient: make(map[uuid.UUID]map[string]struct{}),
	}
	inbox.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, domain.EphemeralMessage]) {
		s.unindex(item.Value().ToID, item.Key())
	})
	go inbox.Start()
	return s
}

func (s *MessageService) index(toID uuid.UUID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.byRecipient[toID]
	if !ok {
		ids = make(map[string]struct{})
		s.byRecipient[toID] = ids
	}
	ids[id] = struct{}{}
}

func (s *MessageService) unindex(toID uuid.UUID, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.byRecipient[toID], id)
	}
	if len(s.byRecipient[toID]) == 0 {
		delete(s.byRecipient, toID)
	}
}

func (s *MessageService) indexed(toID uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.byRecipient[toID]))
	for id := range s.byRecipient[toID] {
		ids = append(ids, id)
	}
	return ids
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Close stops the expiry loop.
func (s *MessageService) Close() {
	s.inbox.Stop()
}

type SendMessageInput struct {
	ToID uuid.UUID `json:"to_id"`
	Text string    `json:"text"`
}

func (s *MessageService) Send(ctx context.Context, fromID uuid.UUID, input SendMessageInput) (*domain.EphemeralMessage, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sender, err := s.profiles.GetByID(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("loading sender: %w", err)
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}
	if !sender.IsConnected(input.ToID) {
		return nil, ErrNotConnected
	}

	now := time.Now()
	msg := domain.EphemeralMessage{
		ID:        ulid.Make().String(),
		FromID:    sender.ID,
		FromName:  sender.DisplayName,
		ToID:      input.ToID,
		Text:      text,
		SentAt:    now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.index(msg.ToID, msg.ID)
	s.inbox.Set(msg.ID, msg, ttlcache.DefaultTTL)

	if s.notifier != nil {
		s.notifier.NotifyMessage(&msg)
	}
	return &msg, nil
}

// Inbox returns the unexpired messages addressed to userID, oldest first.
func (s *MessageService) Inbox(ctx context.Context, userID uuid.UUID) ([]domain.EphemeralMessage, error) {
	msgs := []domain.EphemeralMessage{}
	var gone []string
	for _, id := range s.indexed(userID) {
		item := s.inbox.Get(id, ttlcache.WithDisableTouchOnHit[string, domain.EphemeralMessage]())
		if item == nil || item.IsExpired() {
			gone = append(gone, id)
			continue
		}
		msgs = append(msgs, item.Value())
	}
	if len(gone) > 0 {
		s.unindex(userID, gone...)
	}

	// ulids sort by creation time
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}
