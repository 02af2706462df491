// Package memory is a process-local store backend. It keeps every record in maps
// guarded by one lock and signals watchers through a changefeed.Broker.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository/changefeed"
)

type Store struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*domain.Profile
	emails   map[string]uuid.UUID
	requests map[uuid.UUID]*domain.ConnectionRequest
	index    *trigramIndex
	feed     *changefeed.Broker
}

func New() *Store {
	return &Store{
		profiles: make(map[uuid.UUID]*domain.Profile),
		emails:   make(map[string]uuid.UUID),
		requests: make(map[uuid.UUID]*domain.ConnectionRequest),
		index:    newTrigramIndex(),
		feed:     changefeed.NewBroker(),
	}
}

func (s *Store) Profiles() *ProfileRepo {
	return &ProfileRepo{s: s}
}

func (s *Store) Requests() *RequestRepo {
	return &RequestRepo{s: s}
}

// Feed exposes the broker so tests can observe subscriptions.
func (s *Store) Feed() *changefeed.Broker {
	return s.feed
}
