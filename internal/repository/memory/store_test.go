package memory

import (
	"context"
	"errors"
	"flag"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
)

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("v", "0")
}

func newProfile(t *testing.T, s *Store, email, name string) *domain.Profile {
	t.Helper()
	now := time.Now()
	p := &domain.Profile{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.Profiles().Create(context.Background(), p)
	assert.Equal(t, err, nil)
	return p
}

func pending(from, to uuid.UUID) *domain.ConnectionRequest {
	return &domain.ConnectionRequest{
		ID:        uuid.New(),
		FromID:    from,
		ToID:      to,
		Status:    domain.RequestPending,
		CreatedAt: time.Now(),
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	s := New()
	newProfile(t, s, "a@x.com", "Ana")

	err := s.Profiles().Create(context.Background(), &domain.Profile{ID: uuid.New(), Email: "A@X.com"})
	assert.Equal(t, errors.Is(err, repository.ErrConflict), true)

	p, err := s.Profiles().GetByEmail(context.Background(), " a@X.COM ")
	assert.Equal(t, err, nil)
	assert.Equal(t, p.DisplayName, "Ana")
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := New()
	p, err := s.Profiles().GetByID(context.Background(), uuid.New())
	assert.Equal(t, err, nil)
	assert.Equal(t, p == nil, true)
}

func TestReturnedProfilesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newProfile(t, s, "a@x.com", "Ana")

	got, _ := s.Profiles().GetByID(ctx, a.ID)
	got.DisplayName = "changed"
	got.Connections = append(got.Connections, domain.ConnectionRef{ID: uuid.New()})

	again, _ := s.Profiles().GetByID(ctx, a.ID)
	assert.Equal(t, again.DisplayName, "Ana")
	assert.Equal(t, len(again.Connections), 0)
}

func TestSearch(t *testing.T) {
	s := New()
	ctx := context.Background()
	newProfile(t, s, "abc@x.com", "First")
	newProfile(t, s, "xyz@x.com", "Second")

	found, err := s.Profiles().Search(ctx, "abc", uuid.Nil, 5)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(found), 1)
	assert.Equal(t, found[0].Email, "abc@x.com")

	found, _ = s.Profiles().Search(ctx, "@X.C", uuid.Nil, 5)
	assert.Equal(t, len(found), 2)
	assert.Equal(t, found[0].Email, "abc@x.com")
	assert.Equal(t, found[1].Email, "xyz@x.com")

	found, _ = s.Profiles().Search(ctx, "econ", uuid.Nil, 5)
	assert.Equal(t, len(found), 1)
	assert.Equal(t, found[0].DisplayName, "Second")

	found, _ = s.Profiles().Search(ctx, "nothing", uuid.Nil, 5)
	assert.Equal(t, len(found), 0)
}

func TestSearchFoldsCase(t *testing.T) {
	s := New()
	ctx := context.Background()
	newProfile(t, s, "jurgen@x.com", "JÜRGEN Straße")

	found, _ := s.Profiles().Search(ctx, "jürgen", uuid.Nil, 5)
	assert.Equal(t, len(found), 1)

	found, _ = s.Profiles().Search(ctx, "STRASSE", uuid.Nil, 5)
	assert.Equal(t, len(found), 1)
}

func TestSearchExcludesCallerAndLimits(t *testing.T) {
	s := New()
	ctx := context.Background()
	me := newProfile(t, s, "team0@x.com", "Me")
	for i := 1; i <= 7; i++ {
		newProfile(t, s, "team"+string(rune('0'+i))+"@x.com", "Member")
	}

	found, _ := s.Profiles().Search(ctx, "team", me.ID, 5)
	assert.Equal(t, len(found), 5)
	for _, p := range found {
		assert.NotEqual(t, p.ID, me.ID)
	}
}

func TestSearchFollowsRename(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProfile(t, s, "p@x.com", "Old Name")

	name := "Fresh Name"
	err := s.Profiles().Update(ctx, p.ID, repository.ProfileUpdate{DisplayName: &name})
	assert.Equal(t, err, nil)

	found, _ := s.Profiles().Search(ctx, "old", uuid.Nil, 5)
	assert.Equal(t, len(found), 0)
	found, _ = s.Profiles().Search(ctx, "fresh", uuid.Nil, 5)
	assert.Equal(t, len(found), 1)
}

func TestConnectionEdits(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newProfile(t, s, "a@x.com", "Ana")
	b := newProfile(t, s, "b@x.com", "Ben")

	added, err := s.Profiles().AddConnection(ctx, a.ID, b.RefTo(time.Now()))
	assert.Equal(t, err, nil)
	assert.Equal(t, added, true)

	added, err = s.Profiles().AddConnection(ctx, a.ID, b.RefTo(time.Now()))
	assert.Equal(t, err, nil)
	assert.Equal(t, added, false)

	nick := "benny"
	ok, err := s.Profiles().UpdateConnection(ctx, a.ID, b.ID, repository.ConnectionUpdate{Nickname: &nick})
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)

	got, _ := s.Profiles().GetByID(ctx, a.ID)
	assert.Equal(t, len(got.Connections), 1)
	assert.Equal(t, *got.Connections[0].Nickname, "benny")

	ok, _ = s.Profiles().UpdateConnection(ctx, a.ID, uuid.New(), repository.ConnectionUpdate{Nickname: &nick})
	assert.Equal(t, ok, false)

	removed, _ := s.Profiles().RemoveConnection(ctx, a.ID, b.ID)
	assert.Equal(t, removed, true)
	removed, _ = s.Profiles().RemoveConnection(ctx, a.ID, b.ID)
	assert.Equal(t, removed, false)

	_, err = s.Profiles().AddConnection(ctx, uuid.New(), b.RefTo(time.Now()))
	assert.Equal(t, errors.Is(err, repository.ErrNotFound), true)
}

func TestOnePendingRequestPerPair(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	assert.Equal(t, s.Requests().Create(ctx, pending(a, b)), nil)

	err := s.Requests().Create(ctx, pending(a, b))
	assert.Equal(t, errors.Is(err, repository.ErrConflict), true)

	err = s.Requests().Create(ctx, pending(b, a))
	assert.Equal(t, errors.Is(err, repository.ErrConflict), true)
}

func TestConcurrentCreateKeepsOnePending(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Requests().Create(ctx, pending(a, b))
		}()
	}
	wg.Wait()

	out, _ := s.Requests().ListOutgoing(ctx, a)
	assert.Equal(t, len(out), 1)
}

func TestTransitionOnlyFromPending(t *testing.T) {
	s := New()
	ctx := context.Background()
	req := pending(uuid.New(), uuid.New())
	s.Requests().Create(ctx, req)

	ok, err := s.Requests().Transition(ctx, req.ID, domain.RequestAccepted, time.Now())
	assert.Equal(t, err, nil)
	assert.Equal(t, ok, true)

	ok, _ = s.Requests().Transition(ctx, req.ID, domain.RequestRejected, time.Now())
	assert.Equal(t, ok, false)

	got, _ := s.Requests().GetByID(ctx, req.ID)
	assert.Equal(t, got.Status, domain.RequestAccepted)
	assert.NotEqual(t, got.RespondedAt, nil)

	// a finished request no longer blocks a new one
	assert.Equal(t, s.Requests().Create(ctx, pending(req.ToID, req.FromID)), nil)
}

func TestDeleteBetweenBothDirections(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	r1 := pending(a, b)
	s.Requests().Create(ctx, r1)
	s.Requests().Transition(ctx, r1.ID, domain.RequestAccepted, time.Now())
	s.Requests().Create(ctx, pending(b, a))
	s.Requests().Create(ctx, pending(a, c))

	n, err := s.Requests().DeleteBetween(ctx, a, b)
	assert.Equal(t, err, nil)
	assert.Equal(t, n, 2)

	left, _ := s.Requests().ListForUser(ctx, a)
	assert.Equal(t, len(left), 1)
	assert.Equal(t, left[0].ToID, c)
}

func TestListsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	me := uuid.New()

	older := pending(uuid.New(), me)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := pending(uuid.New(), me)
	s.Requests().Create(ctx, older)
	s.Requests().Create(ctx, newer)
	s.Requests().Create(ctx, pending(me, uuid.New()))

	in, _ := s.Requests().ListIncoming(ctx, me)
	assert.Equal(t, len(in), 2)
	assert.Equal(t, in[0].ID, newer.ID)
	assert.Equal(t, in[1].ID, older.ID)

	out, _ := s.Requests().ListOutgoing(ctx, me)
	assert.Equal(t, len(out), 1)
}

func TestWatchProfile(t *testing.T) {
	s := New()
	p := newProfile(t, s, "w@x.com", "Watcher")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Profiles().WatchProfile(ctx, p.ID)
	assert.Equal(t, err, nil)

	first := <-ch
	assert.Equal(t, first.Mood == nil, true)

	mood := &domain.Mood{Emoji: "🙂", Text: "fine", UpdatedAt: time.Now()}
	s.Profiles().SetMood(context.Background(), p.ID, mood)

	select {
	case next := <-ch:
		assert.Equal(t, next.Mood.Text, "fine")
	case <-time.After(time.Second):
		t.Fatal("no snapshot after mood change")
	}
}

func TestWatchRequests(t *testing.T) {
	s := New()
	a, b := uuid.New(), uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := s.Requests().WatchRequests(ctx, b)
	assert.Equal(t, len(<-ch), 0)

	s.Requests().Create(context.Background(), pending(a, b))

	select {
	case list := <-ch:
		assert.Equal(t, len(list), 1)
		assert.Equal(t, list[0].FromID, a)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after request")
	}
}
