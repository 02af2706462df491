package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
	"github.com/vedran77/orbit/internal/repository/changefeed"
)

const requestColumns = `id, from_id, from_name, from_email, to_id, status, created_at, responded_at`

type RequestRepo struct {
	pool *pgxpool.Pool
	feed *changefeed.Broker
}

func NewRequestRepo(pool *pgxpool.Pool, feed *changefeed.Broker) *RequestRepo {
	return &RequestRepo{pool: pool, feed: feed}
}

func (r *RequestRepo) Create(ctx context.Context, req *domain.ConnectionRequest) error {
	query := `
		INSERT INTO connection_requests (id, from_id, from_name, from_email, to_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		req.ID, req.FromID, req.FromName, req.FromEmail, req.ToID, string(req.Status), req.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConnectionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM connection_requests WHERE id = $1`
	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *RequestRepo) FindPendingBetween(ctx context.Context, a, b uuid.UUID) (*domain.ConnectionRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM connection_requests
		WHERE status = 'pending'
		  AND ((from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1))
		LIMIT 1`
	req, err := scanRequest(r.pool.QueryRow(ctx, query, a, b))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *RequestRepo) Transition(ctx context.Context, id uuid.UUID, status domain.RequestStatus, at time.Time) (bool, error) {
	query := `
		UPDATE connection_requests
		SET status = $2, responded_at = $3
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, query, id, string(status), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RequestRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM connection_requests WHERE id = $1`, id)
	return err
}

func (r *RequestRepo) DeleteBetween(ctx context.Context, a, b uuid.UUID) (int, error) {
	query := `
		DELETE FROM connection_requests
		WHERE (from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1)`
	tag, err := r.pool.Exec(ctx, query, a, b)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *RequestRepo) ListIncoming(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(ctx, `WHERE to_id = $1 AND status = 'pending'`, userID)
}

func (r *RequestRepo) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(ctx, `WHERE from_id = $1 AND status = 'pending'`, userID)
}

func (r *RequestRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(ctx, `WHERE from_id = $1 OR to_id = $1`, userID)
}

func (r *RequestRepo) WatchRequests(ctx context.Context, userID uuid.UUID) (<-chan []domain.ConnectionRequest, error) {
	return changefeed.Watch(ctx, r.feed, changefeed.RequestsKey(userID), func(ctx context.Context) ([]domain.ConnectionRequest, error) {
		return r.ListForUser(ctx, userID)
	}), nil
}

func (r *RequestRepo) list(ctx context.Context, where string, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM connection_requests ` + where + ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := []domain.ConnectionRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.ConnectionRequest, error) {
	var (
		req    domain.ConnectionRequest
		status string
	)
	err := row.Scan(
		&req.ID, &req.FromID, &req.FromName, &req.FromEmail, &req.ToID,
		&status, &req.CreatedAt, &req.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = domain.RequestStatus(status)
	return &req, nil
}
