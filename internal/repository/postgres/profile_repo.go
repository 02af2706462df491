package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
	"github.com/vedran77/orbit/internal/repository/changefeed"
)

const profileColumns = `id, email, display_name, password_hash, photo_url, mood, location, connections, created_at, updated_at`

type ProfileRepo struct {
	pool *pgxpool.Pool
	feed *changefeed.Broker
}

func NewProfileRepo(pool *pgxpool.Pool, feed *changefeed.Broker) *ProfileRepo {
	return &ProfileRepo{pool: pool, feed: feed}
}

func (r *ProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	connections := p.Connections
	if connections == nil {
		connections = []domain.ConnectionRef{}
	}
	refs, err := json.Marshal(connections)
	if err != nil {
		return err
	}
	mood, err := marshalNullable(p.Mood)
	if err != nil {
		return err
	}
	loc, err := marshalNullable(p.Location)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (id, email, display_name, password_hash, photo_url, mood, location, connections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		p.ID, p.Email, p.DisplayName, p.PasswordHash, p.PhotoURL,
		mood, loc, string(refs), p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return r.scanProfile(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.scanProfile(ctx, "SELECT "+profileColumns+" FROM profiles WHERE lower(email) = lower($1)", strings.TrimSpace(email))
}

func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, update repository.ProfileUpdate) error {
	query := `
		UPDATE profiles
		SET display_name = COALESCE($2, display_name),
		    photo_url = COALESCE($3, photo_url),
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, update.DisplayName, update.PhotoURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProfileRepo) SetMood(ctx context.Context, id uuid.UUID, mood *domain.Mood) error {
	data, err := marshalNullable(mood)
	if err != nil {
		return err
	}
	return r.setJSON(ctx, id, "mood", data)
}

func (r *ProfileRepo) SetLocation(ctx context.Context, id uuid.UUID, loc domain.Location) error {
	data, err := marshalNullable(&loc)
	if err != nil {
		return err
	}
	return r.setJSON(ctx, id, "location", data)
}

// setJSON overwrites one of the fixed jsonb columns.
func (r *ProfileRepo) setJSON(ctx context.Context, id uuid.UUID, column string, data *string) error {
	query := fmt.Sprintf(`UPDATE profiles SET %s = $2::jsonb, updated_at = NOW() WHERE id = $1`, column)
	tag, err := r.pool.Exec(ctx, query, id, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProfileRepo) AddConnection(ctx context.Context, ownerID uuid.UUID, ref domain.ConnectionRef) (bool, error) {
	entry, err := json.Marshal([]domain.ConnectionRef{ref})
	if err != nil {
		return false, err
	}

	query := `
		UPDATE profiles
		SET connections = connections || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND NOT connections @> $3::jsonb`
	tag, err := r.pool.Exec(ctx, query, ownerID, string(entry), containsID(ref.ID))
	if err != nil {
		return false, err
	}
	return r.changedOrMissing(ctx, ownerID, tag.RowsAffected())
}

func (r *ProfileRepo) RemoveConnection(ctx context.Context, ownerID, peerID uuid.UUID) (bool, error) {
	query := `
		UPDATE profiles
		SET connections = COALESCE((
		        SELECT jsonb_agg(c.ref ORDER BY c.ord)
		        FROM jsonb_array_elements(connections) WITH ORDINALITY AS c(ref, ord)
		        WHERE c.ref->>'id' <> $2
		    ), '[]'::jsonb),
		    updated_at = NOW()
		WHERE id = $1 AND connections @> $3::jsonb`
	tag, err := r.pool.Exec(ctx, query, ownerID, peerID.String(), containsID(peerID))
	if err != nil {
		return false, err
	}
	return r.changedOrMissing(ctx, ownerID, tag.RowsAffected())
}

func (r *ProfileRepo) UpdateConnection(ctx context.Context, ownerID, peerID uuid.UUID, update repository.ConnectionUpdate) (bool, error) {
	patch := map[string]string{}
	if update.Nickname != nil {
		patch["nickname"] = *update.Nickname
	}
	if update.PhotoURL != nil {
		patch["photo_url"] = *update.PhotoURL
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE profiles
		SET connections = (
		        SELECT jsonb_agg(CASE WHEN c.ref->>'id' = $2 THEN c.ref || $4::jsonb ELSE c.ref END ORDER BY c.ord)
		        FROM jsonb_array_elements(connections) WITH ORDINALITY AS c(ref, ord)
		    ),
		    updated_at = NOW()
		WHERE id = $1 AND connections @> $3::jsonb`
	tag, err := r.pool.Exec(ctx, query, ownerID, peerID.String(), containsID(peerID), string(data))
	if err != nil {
		return false, err
	}
	return r.changedOrMissing(ctx, ownerID, tag.RowsAffected())
}

// changedOrMissing turns a zero-row update into either "nothing to do" or
// ErrNotFound, depending on whether the owner exists.
func (r *ProfileRepo) changedOrMissing(ctx context.Context, ownerID uuid.UUID, rows int64) (bool, error) {
	if rows > 0 {
		return true, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, ownerID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, repository.ErrNotFound
	}
	return false, nil
}

func (r *ProfileRepo) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.Profile, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	sql := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE id <> $1
		  AND (lower(email) LIKE $2 ESCAPE '\' OR lower(display_name) LIKE $2 ESCAPE '\')
		ORDER BY lower(email) ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, sql, excludeID, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (r *ProfileRepo) WatchProfile(ctx context.Context, id uuid.UUID) (<-chan *domain.Profile, error) {
	return changefeed.Watch(ctx, r.feed, changefeed.ProfileKey(id), func(ctx context.Context) (*domain.Profile, error) {
		return r.GetByID(ctx, id)
	}), nil
}

func (r *ProfileRepo) scanProfile(ctx context.Context, query string, arg any) (*domain.Profile, error) {
	p, err := scanProfileRow(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanProfileRow(row pgx.Row) (*domain.Profile, error) {
	var (
		p                      domain.Profile
		mood, loc, connections []byte
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.PasswordHash, &p.PhotoURL,
		&mood, &loc, &connections, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if mood != nil {
		p.Mood = &domain.Mood{}
		if err := json.Unmarshal(mood, p.Mood); err != nil {
			return nil, fmt.Errorf("decoding mood: %w", err)
		}
	}
	if loc != nil {
		p.Location = &domain.Location{}
		if err := json.Unmarshal(loc, p.Location); err != nil {
			return nil, fmt.Errorf("decoding location: %w", err)
		}
	}
	p.Connections = []domain.ConnectionRef{}
	if connections != nil {
		if err := json.Unmarshal(connections, &p.Connections); err != nil {
			return nil, fmt.Errorf("decoding connections: %w", err)
		}
	}
	return &p, nil
}
