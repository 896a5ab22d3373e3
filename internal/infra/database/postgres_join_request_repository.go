package database

import (
	"context"
	"database/sql"
	"fmt"

	"inviter_bot/internal/domain/joinrequest"
)

var ErrJoinRequestNotFound = fmt.Errorf("join request not found")

type PostgresJoinRequestRepository struct {
	db *sql.DB
}

func NewPostgresJoinRequestRepository(db *sql.DB) *PostgresJoinRequestRepository {
	return &PostgresJoinRequestRepository{db: db}
}

const joinRequestColumns = `id, user_id, chat_id, username, first_name, last_name, status, requested_at, processed_at`

func scanJoinRequest(row interface{ Scan(...any) error }) (*joinrequest.Request, error) {
	jr := &joinrequest.Request{}
	var status string
	err := row.Scan(&jr.ID, &jr.UserID, &jr.ChatID, &jr.Username, &jr.FirstName, &jr.LastName, &status, &jr.RequestedAt, &jr.ProcessedAt)
	if err != nil {
		return nil, err
	}
	jr.Status = joinrequest.Status(status)
	return jr, nil
}

func (r *PostgresJoinRequestRepository) Upsert(ctx context.Context, jr *joinrequest.Request) (bool, error) {
	// xmax = 0 only holds for a freshly inserted tuple.
	query := `INSERT INTO join_requests (user_id, chat_id, username, first_name, last_name, status, requested_at, processed_at)
               VALUES ($1, $2, $3, $4, $5, 'pending', $6, NULL)
               ON CONFLICT (user_id, chat_id) DO UPDATE
               SET username = EXCLUDED.username,
                   first_name = EXCLUDED.first_name,
                   last_name = EXCLUDED.last_name,
                   status = 'pending',
                   requested_at = EXCLUDED.requested_at,
                   processed_at = NULL
               RETURNING id, (xmax = 0)`
	var isNew bool
	err := r.db.QueryRowContext(ctx, query, jr.UserID, jr.ChatID, jr.Username, jr.FirstName, jr.LastName, jr.RequestedAt).Scan(&jr.ID, &isNew)
	if err != nil {
		return false, fmt.Errorf("error upserting join request: %w", err)
	}
	jr.Status = joinrequest.StatusPending
	jr.ProcessedAt = sql.NullTime{}
	return isNew, nil
}

func (r *PostgresJoinRequestRepository) GetByID(ctx context.Context, id int64) (*joinrequest.Request, error) {
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests WHERE id = $1`
	jr, err := scanJoinRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJoinRequestNotFound
		}
		return nil, fmt.Errorf("error getting join request by ID: %w", err)
	}
	return jr, nil
}

func (r *PostgresJoinRequestRepository) ListByStatus(ctx context.Context, status joinrequest.Status, chatID int64, limit, offset int) ([]*joinrequest.Request, error) {
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests
               WHERE status = $1 AND ($2::bigint = 0 OR chat_id = $2::bigint)
               ORDER BY requested_at, id
               LIMIT $3 OFFSET $4`
	if limit <= 0 {
		limit = 100
	}
	return r.query(ctx, query, string(status), chatID, limit, offset)
}

func (r *PostgresJoinRequestRepository) CountByStatus(ctx context.Context, status joinrequest.Status) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM join_requests WHERE status = $1`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting join requests: %w", err)
	}
	return n, nil
}

func (r *PostgresJoinRequestRepository) ListByUser(ctx context.Context, userID int64) ([]*joinrequest.Request, error) {
	query := `SELECT ` + joinRequestColumns + ` FROM join_requests WHERE user_id = $1 ORDER BY id`
	return r.query(ctx, query, userID)
}

func (r *PostgresJoinRequestRepository) query(ctx context.Context, query string, args ...any) ([]*joinrequest.Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing join requests: %w", err)
	}
	defer rows.Close()

	reqs := make([]*joinrequest.Request, 0)
	for rows.Next() {
		jr, err := scanJoinRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning join request: %w", err)
		}
		reqs = append(reqs, jr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating join requests: %w", err)
	}
	return reqs, nil
}

func (r *PostgresJoinRequestRepository) Approve(ctx context.Context, id int64) error {
	return r.decide(ctx, id, joinrequest.StatusApproved)
}

func (r *PostgresJoinRequestRepository) Deny(ctx context.Context, id int64) error {
	return r.decide(ctx, id, joinrequest.StatusDenied)
}

func (r *PostgresJoinRequestRepository) decide(ctx context.Context, id int64, status joinrequest.Status) error {
	query := `UPDATE join_requests SET status = $1, processed_at = NOW() WHERE id = $2 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("error updating join request status: %w", err)
	}
	return expectRow(res, ErrJoinRequestNotFound)
}
