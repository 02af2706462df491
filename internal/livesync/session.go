// Package livesync keeps one user's connections view live. A Session watches the
// user's own profile, the requests that involve them and every connected peer, and
// hands a fresh View to its callback after each change.
package livesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSessionStarted = errors.New("session already started")
)

// ProfileFeed is the part of repository.ProfileRepository a session reads from.
type ProfileFeed interface {
	WatchProfile(ctx context.Context, id uuid.UUID) (<-chan *domain.Profile, error)
}

// RequestFeed is the part of repository.RequestRepository a session reads from.
type RequestFeed interface {
	WatchRequests(ctx context.Context, userID uuid.UUID) (<-chan []domain.ConnectionRequest, error)
}

// Connections performs the store writes behind session operations.
// service.ConnectionService implements it.
type Connections interface {
	ResolveConnections(ctx context.Context, profile *domain.Profile) ([]domain.ResolvedConnection, error)
	RespondToRequest(ctx context.Context, userID, requestID uuid.UUID, accept bool) (*domain.ResolvedConnection, error)
	RemoveConnection(ctx context.Context, userID, peerID uuid.UUID) error
	UpdateNickname(ctx context.Context, userID, peerID uuid.UUID, nickname string) error
	UpdatePhoto(ctx context.Context, userID, peerID uuid.UUID, photoURL string) error
}

type state struct {
	profile  *domain.Profile
	entries  []domain.ResolvedConnection
	requests []domain.ConnectionRequest
	location *domain.Location

	peers      map[uuid.UUID]context.CancelFunc
	generation int
	pending    []*pendingEdit
}

// pendingEdit is an optimistic change to the entries. It is replayed over every
// resolution of the generation it was applied under, and dropped once a resolution
// confirms it or a later generation resolves.
type pendingEdit struct {
	generation int
	replay     func([]domain.ResolvedConnection) []domain.ResolvedConnection
	confirmed  func([]domain.ResolvedConnection) bool
}

type peerSnapshot struct {
	id      uuid.UUID
	profile *domain.Profile
}

type resolution struct {
	generation int
	entries    []domain.ResolvedConnection
	err        error
}

// Session is started once and stopped once. onUpdate runs on the session goroutine
// and must not call back into the Session.
type Session struct {
	profiles ProfileFeed
	requests RequestFeed
	conns    Connections
	onUpdate func(View)

	mu      sync.Mutex
	userID  uuid.UUID
	started bool
	cancel  context.CancelFunc

	closed   atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	ops      chan func(*state)
	peerCh   chan peerSnapshot
	resolved chan resolution
}

func NewSession(profiles ProfileFeed, requests RequestFeed, conns Connections, onUpdate func(View)) *Session {
	return &Session{
		profiles: profiles,
		requests: requests,
		conns:    conns,
		onUpdate: onUpdate,
		done:     make(chan struct{}),
		ops:      make(chan func(*state), 16),
		peerCh:   make(chan peerSnapshot, 16),
		resolved: make(chan resolution),
	}
}

// Start subscribes to the feeds of identityID and begins delivering views.
func (s *Session) Start(ctx context.Context, identityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.started {
		return ErrSessionStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	own, err := s.profiles.WatchProfile(ctx, identityID)
	if err != nil {
		cancel()
		return err
	}
	reqs, err := s.requests.WatchRequests(ctx, identityID)
	if err != nil {
		cancel()
		return err
	}

	s.userID = identityID
	s.started = true
	s.cancel = cancel
	go s.run(ctx, own, reqs)

	glog.V(1).Infof("[sync]%s session started", identityID)
	return nil
}

// Stop tears down every subscription. It is safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.closed.Store(true)

		s.mu.Lock()
		started, cancel := s.started, s.cancel
		s.mu.Unlock()

		if !started {
			close(s.done)
			return
		}
		cancel()
		<-s.done
		glog.V(1).Infof("[sync]%s session stopped", s.userID)
	})
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) UserID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Respond answers an incoming request. An accepted connection shows up in the view
// right away, tagged optimistic until the profile feed confirms it.
func (s *Session) Respond(ctx context.Context, requestID uuid.UUID, accept bool) (*domain.ResolvedConnection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rc, err := s.conns.RespondToRequest(ctx, s.userID, requestID, accept)
	if err != nil || rc == nil {
		return rc, err
	}

	entry := cloneResolved(*rc)
	return rc, s.optimistic(&pendingEdit{
		replay: func(entries []domain.ResolvedConnection) []domain.ResolvedConnection {
			if i := indexOf(entries, entry.ID); i >= 0 {
				if entries[i].State == domain.SyncOptimistic {
					entries[i] = cloneResolved(entry)
				}
				return entries
			}
			return append(entries, cloneResolved(entry))
		},
		confirmed: func(entries []domain.ResolvedConnection) bool {
			return indexOf(entries, entry.ID) >= 0
		},
	})
}

// Remove drops peerID from the view immediately, then from the store.
func (s *Session) Remove(ctx context.Context, peerID uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	edit := &pendingEdit{
		replay: func(entries []domain.ResolvedConnection) []domain.ResolvedConnection {
			if i := indexOf(entries, peerID); i >= 0 {
				return append(entries[:i], entries[i+1:]...)
			}
			return entries
		},
		confirmed: func(entries []domain.ResolvedConnection) bool {
			return indexOf(entries, peerID) < 0
		},
	}
	if err := s.optimistic(edit); err != nil {
		return err
	}
	return s.commit(edit, s.conns.RemoveConnection(ctx, s.userID, peerID))
}

// Nickname sets the local nickname for peerID in the view, then in the store.
func (s *Session) Nickname(ctx context.Context, peerID uuid.UUID, nickname string) error {
	if err := s.ready(); err != nil {
		return err
	}
	edit := annotation(peerID,
		func(ref *domain.ConnectionRef) { ref.Nickname = &nickname },
		func(ref domain.ConnectionRef) bool { return ref.Nickname != nil && *ref.Nickname == nickname })
	if err := s.optimistic(edit); err != nil {
		return err
	}
	return s.commit(edit, s.conns.UpdateNickname(ctx, s.userID, peerID, nickname))
}

// Photo sets the local photo for peerID in the view, then in the store.
func (s *Session) Photo(ctx context.Context, peerID uuid.UUID, photoURL string) error {
	if err := s.ready(); err != nil {
		return err
	}
	edit := annotation(peerID,
		func(ref *domain.ConnectionRef) { ref.PhotoURL = &photoURL },
		func(ref domain.ConnectionRef) bool { return ref.PhotoURL != nil && *ref.PhotoURL == photoURL })
	if err := s.optimistic(edit); err != nil {
		return err
	}
	return s.commit(edit, s.conns.UpdatePhoto(ctx, s.userID, peerID, photoURL))
}

// ApplyLocation shows a freshly sampled location before the store echoes it.
func (s *Session) ApplyLocation(loc domain.Location) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.apply(func(st *state) { st.location = &loc })
}

func annotation(peerID uuid.UUID, edit func(*domain.ConnectionRef), landed func(domain.ConnectionRef) bool) *pendingEdit {
	return &pendingEdit{
		replay: func(entries []domain.ResolvedConnection) []domain.ResolvedConnection {
			if i := indexOf(entries, peerID); i >= 0 {
				edit(&entries[i].ConnectionRef)
				entries[i].State = domain.SyncOptimistic
			}
			return entries
		},
		confirmed: func(entries []domain.ResolvedConnection) bool {
			i := indexOf(entries, peerID)
			return i >= 0 && entries[i].State == domain.SyncConfirmed && landed(entries[i].ConnectionRef)
		},
	}
}

func indexOf(entries []domain.ResolvedConnection, peerID uuid.UUID) int {
	for i := range entries {
		if entries[i].ID == peerID {
			return i
		}
	}
	return -1
}

// optimistic applies edit to the view and keeps it until the store catches up.
func (s *Session) optimistic(edit *pendingEdit) error {
	return s.apply(func(st *state) {
		edit.generation = st.generation
		st.entries = edit.replay(st.entries)
		st.pending = append(st.pending, edit)
	})
}

// commit forgets edit when its store write failed, so no later resolution replays it.
func (s *Session) commit(edit *pendingEdit, err error) error {
	if err == nil {
		return nil
	}
	_ = s.apply(func(st *state) {
		for i, e := range st.pending {
			if e == edit {
				st.pending = append(st.pending[:i], st.pending[i+1:]...)
				return
			}
		}
	})
	return err
}

func (s *Session) ready() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) apply(op func(*state)) error {
	select {
	case s.ops <- op:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) run(ctx context.Context, own <-chan *domain.Profile, reqs <-chan []domain.ConnectionRequest) {
	st := &state{peers: make(map[uuid.UUID]context.CancelFunc)}
	defer close(s.done)
	defer func() {
		for _, cancel := range st.peers {
			cancel()
		}
	}()

	for {
		select {
		case p, ok := <-own:
			if !ok {
				return
			}
			s.ownChanged(ctx, st, p)

		case list, ok := <-reqs:
			if !ok {
				return
			}
			st.requests = list
			s.emit(st)

		case snap := <-s.peerCh:
			if _, watched := st.peers[snap.id]; !watched {
				continue
			}
			s.peerChanged(st, snap)

		case res := <-s.resolved:
			if res.generation != st.generation {
				continue
			}
			if res.err != nil {
				glog.Warningf("[sync]%s resolve error = %s", s.userID, res.err)
				continue
			}
			// edits queued before their store write must land before its echo
			s.drainOps(st)
			st.entries = res.entries
			s.replayPending(st)
			s.emit(st)

		case op := <-s.ops:
			op(st)
			s.emit(st)

		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) drainOps(st *state) {
	for {
		select {
		case op := <-s.ops:
			op(st)
		default:
			return
		}
	}
}

func (s *Session) replayPending(st *state) {
	kept := st.pending[:0]
	for _, e := range st.pending {
		if e.generation < st.generation || e.confirmed(st.entries) {
			continue
		}
		st.entries = e.replay(st.entries)
		kept = append(kept, e)
	}
	clear(st.pending[len(kept):])
	st.pending = kept
}

func (s *Session) ownChanged(ctx context.Context, st *state, p *domain.Profile) {
	st.profile = p
	st.location = nil
	st.generation++

	want := make(map[uuid.UUID]bool)
	if p != nil {
		for _, ref := range p.Connections {
			want[ref.ID] = true
		}
	}
	for id, cancel := range st.peers {
		if !want[id] {
			cancel()
			delete(st.peers, id)
		}
	}
	for id := range want {
		if _, ok := st.peers[id]; !ok {
			st.peers[id] = s.watchPeer(ctx, id)
		}
	}

	if p == nil {
		st.entries = nil
		st.pending = nil
		s.emit(st)
		return
	}

	generation := st.generation
	go func() {
		entries, err := s.conns.ResolveConnections(ctx, p)
		select {
		case s.resolved <- resolution{generation: generation, entries: entries, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) peerChanged(st *state, snap peerSnapshot) {
	for i := range st.entries {
		if st.entries[i].ID != snap.id {
			continue
		}
		if snap.profile == nil {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
		} else {
			st.entries[i] = domain.Resolve(st.entries[i].ConnectionRef, snap.profile, st.entries[i].State)
		}
		s.emit(st)
		return
	}
}

func (s *Session) watchPeer(ctx context.Context, peerID uuid.UUID) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ch, err := s.profiles.WatchProfile(ctx, peerID)
		if err != nil {
			glog.Warningf("[sync]%s watch peer %s error = %s", s.userID, peerID, err)
			return
		}
		for p := range ch {
			select {
			case s.peerCh <- peerSnapshot{id: peerID, profile: p}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return cancel
}

func (s *Session) emit(st *state) {
	if s.onUpdate != nil {
		s.onUpdate(buildView(s.userID, st))
	}
}
