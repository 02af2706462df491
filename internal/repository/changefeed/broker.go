// Package changefeed fans store change signals out to watchers.
//
// Signals carry no data. A watcher reloads the record it cares about whenever its key
// is signalled, so bursts of writes collapse into a single reload.
package changefeed

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	profilePrefix  = "profile:"
	requestsPrefix = "requests:"
)

func ProfileKey(id uuid.UUID) string {
	return profilePrefix + id.String()
}

func RequestsKey(userID uuid.UUID) string {
	return requestsPrefix + userID.String()
}

// RequestsPrefix matches every RequestsKey.
const RequestsPrefix = requestsPrefix

type subscriber struct {
	ch chan struct{}
}

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers interest in key. The returned cancel func must be called
// exactly once to release the subscription.
func (b *Broker) Subscribe(key string) (<-chan struct{}, func()) {
	sub := &subscriber{ch: make(chan struct{}, 1)}

	b.mu.Lock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[key] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[key]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(b.subs, key)
				}
			}
		})
	}
}

// Publish signals every subscriber of the given keys. It never blocks.
func (b *Broker) Publish(keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		for sub := range b.subs[key] {
			notify(sub)
		}
	}
}

// PublishPrefix signals every subscriber whose key starts with prefix.
func (b *Broker) PublishPrefix(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, set := range b.subs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		for sub := range set {
			notify(sub)
		}
	}
}

// Subscribers returns the number of live subscriptions for key.
func (b *Broker) Subscribers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

func notify(sub *subscriber) {
	select {
	case sub.ch <- struct{}{}:
	default:
		// a signal is already queued
	}
}
