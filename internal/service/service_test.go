package service

import (
	"context"
	"flag"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository/memory"
)

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("v", "0")
}

type fixture struct {
	store    *memory.Store
	conns    *ConnectionService
	profiles *ProfileService
	notifier *recordingNotifier
}

func newFixture() *fixture {
	store := memory.New()
	notifier := &recordingNotifier{}
	conns := NewConnectionService(store.Profiles(), store.Requests(), NewFetchResolver(store.Profiles()))
	conns.SetNotifier(notifier)
	return &fixture{
		store:    store,
		conns:    conns,
		profiles: NewProfileService(store.Profiles()),
		notifier: notifier,
	}
}

func (f *fixture) profile(t *testing.T, email, name string) *domain.Profile {
	t.Helper()
	now := time.Now()
	p := &domain.Profile{ID: uuid.New(), Email: email, DisplayName: name, CreatedAt: now, UpdatedAt: now}
	assert.Equal(t, f.store.Profiles().Create(context.Background(), p), nil)
	return p
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *domain.Profile {
	t.Helper()
	p, err := f.store.Profiles().GetByID(context.Background(), id)
	assert.Equal(t, err, nil)
	return p
}

// connect runs the full request and accept flow between a and b.
func (f *fixture) connect(t *testing.T, a, b *domain.Profile) {
	t.Helper()
	ctx := context.Background()
	req, err := f.conns.SendRequest(ctx, a.ID, b.Email)
	assert.Equal(t, err, nil)
	_, err = f.conns.RespondToRequest(ctx, b.ID, req.ID, true)
	assert.Equal(t, err, nil)
}

type recordingNotifier struct {
	messages []domain.EphemeralMessage
	requests []domain.ConnectionRequest
}

func (n *recordingNotifier) NotifyMessage(msg *domain.EphemeralMessage) {
	n.messages = append(n.messages, *msg)
}

func (n *recordingNotifier) NotifyRequest(req *domain.ConnectionRequest) {
	n.requests = append(n.requests, *req)
}
