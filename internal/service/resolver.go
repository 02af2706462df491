package service

import (
	"context"

	"github.com/golang/glog"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
	"golang.org/x/sync/errgroup"
)

const defaultResolveConcurrency = 8

// FetchResolver resolves each connection ref with its own profile lookup. It works
// with any ProfileRepository.
type FetchResolver struct {
	profiles    repository.ProfileRepository
	concurrency int
}

func NewFetchResolver(profiles repository.ProfileRepository) *FetchResolver {
	return &FetchResolver{profiles: profiles, concurrency: defaultResolveConcurrency}
}

// ResolveConnections keeps the order of owner.Connections. A peer that fails to load
// or no longer exists is logged and left out.
func (r *FetchResolver) ResolveConnections(ctx context.Context, owner *domain.Profile) ([]domain.ResolvedConnection, error) {
	if owner == nil || len(owner.Connections) == 0 {
		return []domain.ResolvedConnection{}, nil
	}

	slots := make([]*domain.ResolvedConnection, len(owner.Connections))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, ref := range owner.Connections {
		g.Go(func() error {
			peer, err := r.profiles.GetByID(ctx, ref.ID)
			if err != nil {
				glog.Warningf("[resolve]%s peer %s error = %s", owner.ID, ref.ID, err)
				return nil
			}
			if peer == nil {
				glog.V(1).Infof("[resolve]%s peer %s missing", owner.ID, ref.ID)
				return nil
			}
			rc := domain.Resolve(ref, peer, domain.SyncConfirmed)
			slots[i] = &rc
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved := make([]domain.ResolvedConnection, 0, len(slots))
	for _, rc := range slots {
		if rc != nil {
			resolved = append(resolved, *rc)
		}
	}
	return resolved, nil
}
