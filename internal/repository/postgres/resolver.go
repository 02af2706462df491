package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/orbit/internal/domain"
)

// Resolver joins connection refs with peer profiles in a single query. Refs whose
// peer row is gone simply produce no output row.
type Resolver struct {
	pool *pgxpool.Pool
}

func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

func (r *Resolver) ResolveConnections(ctx context.Context, owner *domain.Profile) ([]domain.ResolvedConnection, error) {
	resolved := []domain.ResolvedConnection{}
	if owner == nil || len(owner.Connections) == 0 {
		return resolved, nil
	}

	refs, err := json.Marshal(owner.Connections)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT c.ref, p.photo_url, p.mood, p.location
		FROM jsonb_array_elements($1::jsonb) WITH ORDINALITY AS c(ref, ord)
		JOIN profiles p ON p.id = (c.ref->>'id')::uuid
		ORDER BY c.ord`

	rows, err := r.pool.Query(ctx, query, string(refs))
	if err != nil {
		return nil, fmt.Errorf("resolving connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			refData, mood, loc []byte
			rc                 domain.ResolvedConnection
		)
		if err := rows.Scan(&refData, &rc.PeerPhotoURL, &mood, &loc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(refData, &rc.ConnectionRef); err != nil {
			return nil, fmt.Errorf("decoding connection ref: %w", err)
		}
		if mood != nil {
			rc.Mood = &domain.Mood{}
			if err := json.Unmarshal(mood, rc.Mood); err != nil {
				return nil, fmt.Errorf("decoding mood: %w", err)
			}
		}
		if loc != nil {
			rc.Location = &domain.Location{}
			if err := json.Unmarshal(loc, rc.Location); err != nil {
				return nil, fmt.Errorf("decoding location: %w", err)
			}
		}
		rc.State = domain.SyncConfirmed
		resolved = append(resolved, rc)
	}
	return resolved, rows.Err()
}
