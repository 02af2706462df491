package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
	"github.com/vedran77/orbit/internal/repository/changefeed"
)

type ProfileRepo struct {
	s *Store
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *ProfileRepo) Create(ctx context.Context, profile *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := emailKey(profile.Email)
	if _, ok := r.s.emails[key]; ok {
		return repository.ErrConflict
	}
	if _, ok := r.s.profiles[profile.ID]; ok {
		return repository.ErrConflict
	}

	p := profile.Clone()
	if p.Connections == nil {
		p.Connections = []domain.ConnectionRef{}
	}
	r.s.profiles[p.ID] = p
	r.s.emails[key] = p.ID
	r.s.index.put(p.ID, p.Email, p.DisplayName)
	r.s.feed.Publish(changefeed.ProfileKey(p.ID))
	return nil
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.profiles[id].Clone(), nil
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[emailKey(email)]
	if !ok {
		return nil, nil
	}
	return r.s.profiles[id].Clone(), nil
}

// mutate applies fn to the stored profile under the write lock and signals watchers
// when fn reports a change.
func (r *ProfileRepo) mutate(id uuid.UUID, fn func(p *domain.Profile) bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !fn(p) {
		return false, nil
	}
	p.UpdatedAt = time.Now()
	r.s.feed.Publish(changefeed.ProfileKey(id))
	return true, nil
}

func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, update repository.ProfileUpdate) error {
	_, err := r.mutate(id, func(p *domain.Profile) bool {
		if update.DisplayName != nil {
			p.DisplayName = *update.DisplayName
		}
		if update.PhotoURL != nil {
			v := *update.PhotoURL
			p.PhotoURL = &v
		}
		r.s.index.put(p.ID, p.Email, p.DisplayName)
		return true
	})
	return err
}

func (r *ProfileRepo) SetMood(ctx context.Context, id uuid.UUID, mood *domain.Mood) error {
	_, err := r.mutate(id, func(p *domain.Profile) bool {
		if mood == nil {
			p.Mood = nil
		} else {
			v := *mood
			p.Mood = &v
		}
		return true
	})
	return err
}

func (r *ProfileRepo) SetLocation(ctx context.Context, id uuid.UUID, loc domain.Location) error {
	_, err := r.mutate(id, func(p *domain.Profile) bool {
		p.Location = &loc
		return true
	})
	return err
}

func (r *ProfileRepo) AddConnection(ctx context.Context, ownerID uuid.UUID, ref domain.ConnectionRef) (bool, error) {
	return r.mutate(ownerID, func(p *domain.Profile) bool {
		if p.IsConnected(ref.ID) {
			return false
		}
		p.Connections = append(p.Connections, ref.Clone())
		return true
	})
}

func (r *ProfileRepo) RemoveConnection(ctx context.Context, ownerID, peerID uuid.UUID) (bool, error) {
	return r.mutate(ownerID, func(p *domain.Profile) bool {
		for i, ref := range p.Connections {
			if ref.ID == peerID {
				p.Connections = append(p.Connections[:i:i], p.Connections[i+1:]...)
				return true
			}
		}
		return false
	})
}

func (r *ProfileRepo) UpdateConnection(ctx context.Context, ownerID, peerID uuid.UUID, update repository.ConnectionUpdate) (bool, error) {
	return r.mutate(ownerID, func(p *domain.Profile) bool {
		ref := p.Connection(peerID)
		if ref == nil {
			return false
		}
		if update.Nickname != nil {
			v := *update.Nickname
			ref.Nickname = &v
		}
		if update.PhotoURL != nil {
			v := *update.PhotoURL
			ref.PhotoURL = &v
		}
		return true
	})
}

func (r *ProfileRepo) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Profile{}
	for _, id := range r.s.index.lookup(query) {
		if id == excludeID {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *r.s.profiles[id].Clone())
	}
	return out, nil
}

func (r *ProfileRepo) WatchProfile(ctx context.Context, id uuid.UUID) (<-chan *domain.Profile, error) {
	return changefeed.Watch(ctx, r.s.feed, changefeed.ProfileKey(id), func(ctx context.Context) (*domain.Profile, error) {
		return r.GetByID(ctx, id)
	}), nil
}
