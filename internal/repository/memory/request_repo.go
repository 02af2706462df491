package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
	"github.com/vedran77/orbit/internal/repository/changefeed"
)

type RequestRepo struct {
	s *Store
}

func cloneRequest(req *domain.ConnectionRequest) *domain.ConnectionRequest {
	if req == nil {
		return nil
	}
	c := *req
	if req.RespondedAt != nil {
		t := *req.RespondedAt
		c.RespondedAt = &t
	}
	return &c
}

func (r *RequestRepo) publish(req *domain.ConnectionRequest) {
	r.s.feed.Publish(changefeed.RequestsKey(req.FromID), changefeed.RequestsKey(req.ToID))
}

func (r *RequestRepo) Create(ctx context.Context, req *domain.ConnectionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.requests[req.ID]; ok {
		return repository.ErrConflict
	}
	if req.Status == domain.RequestPending {
		for _, other := range r.s.requests {
			if other.Status == domain.RequestPending && other.Between(req.FromID, req.ToID) {
				return repository.ErrConflict
			}
		}
	}

	r.s.requests[req.ID] = cloneRequest(req)
	r.publish(req)
	return nil
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConnectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return cloneRequest(r.s.requests[id]), nil
}

func (r *RequestRepo) FindPendingBetween(ctx context.Context, a, b uuid.UUID) (*domain.ConnectionRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, req := range r.s.requests {
		if req.Status == domain.RequestPending && req.Between(a, b) {
			return cloneRequest(req), nil
		}
	}
	return nil, nil
}

func (r *RequestRepo) Transition(ctx context.Context, id uuid.UUID, status domain.RequestStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok || req.Status != domain.RequestPending {
		return false, nil
	}
	req.Status = status
	req.RespondedAt = &at
	r.publish(req)
	return true, nil
}

func (r *RequestRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if req, ok := r.s.requests[id]; ok {
		delete(r.s.requests, id)
		r.publish(req)
	}
	return nil
}

func (r *RequestRepo) DeleteBetween(ctx context.Context, a, b uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for id, req := range r.s.requests {
		if req.Between(a, b) {
			delete(r.s.requests, id)
			n++
		}
	}
	if n > 0 {
		r.s.feed.Publish(changefeed.RequestsKey(a), changefeed.RequestsKey(b))
	}
	return n, nil
}

// list returns matching requests newest first.
func (r *RequestRepo) list(match func(*domain.ConnectionRequest) bool) []domain.ConnectionRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.ConnectionRequest{}
	for _, req := range r.s.requests {
		if match(req) {
			out = append(out, *cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *RequestRepo) ListIncoming(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(func(req *domain.ConnectionRequest) bool {
		return req.ToID == userID && req.Status == domain.RequestPending
	}), nil
}

func (r *RequestRepo) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(func(req *domain.ConnectionRequest) bool {
		return req.FromID == userID && req.Status == domain.RequestPending
	}), nil
}

func (r *RequestRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(func(req *domain.ConnectionRequest) bool {
		return req.Involves(userID)
	}), nil
}

func (r *RequestRepo) WatchRequests(ctx context.Context, userID uuid.UUID) (<-chan []domain.ConnectionRequest, error) {
	return changefeed.Watch(ctx, r.s.feed, changefeed.RequestsKey(userID), func(ctx context.Context) ([]domain.ConnectionRequest, error) {
		return r.ListForUser(ctx, userID)
	}), nil
}
