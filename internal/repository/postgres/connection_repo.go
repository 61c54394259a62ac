package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrstic/peerlink/internal/domain"
)

type ConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewConnectionRepo(pool *pgxpool.Pool) *ConnectionRepo {
	return &ConnectionRepo{pool: pool}
}

const connectionColumns = `id, requester_id, target_id, target_email, status, invite_token, created_at, expires_at, scheduled_at, cancelled_at`

func scanConnection(row pgx.Row) (*domain.ConnectionRequest, error) {
	var c domain.ConnectionRequest
	err := row.Scan(
		&c.ID, &c.RequesterID, &c.TargetID, &c.TargetEmail, &c.Status,
		&c.InviteToken, &c.CreatedAt, &c.ExpiresAt, &c.ScheduledAt, &c.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &c, err
}

func (r *ConnectionRepo) Create(ctx context.Context, req *domain.ConnectionRequest) error {
	query := `
		INSERT INTO connection_requests (` + connectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		req.ID, req.RequesterID, req.TargetID, req.TargetEmail, req.Status,
		req.InviteToken, req.CreatedAt, req.ExpiresAt, req.ScheduledAt, req.CancelledAt,
	)
	return translateErr(err)
}

func (r *ConnectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConnectionRequest, error) {
	query := `SELECT ` + connectionColumns + ` FROM connection_requests WHERE id = $1`
	return scanConnection(r.pool.QueryRow(ctx, query, id))
}

func (r *ConnectionRepo) GetByToken(ctx context.Context, token string) (*domain.ConnectionRequest, error) {
	query := `SELECT ` + connectionColumns + ` FROM connection_requests WHERE invite_token = $1`
	return scanConnection(r.pool.QueryRow(ctx, query, token))
}

func (r *ConnectionRepo) GetActiveByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.ConnectionRequest, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connection_requests
		WHERE status IN ('pending', 'confirmed')
		  AND ((requester_id = $1 AND target_id = $2) OR (requester_id = $2 AND target_id = $1))`
	return scanConnection(r.pool.QueryRow(ctx, query, userA, userB))
}

func (r *ConnectionRepo) GetActiveByEmail(ctx context.Context, requesterID uuid.UUID, email string) (*domain.ConnectionRequest, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connection_requests
		WHERE status = 'pending' AND requester_id = $1 AND target_id IS NULL AND target_email = $2`
	return scanConnection(r.pool.QueryRow(ctx, query, requesterID, email))
}

func (r *ConnectionRepo) ListByUser(ctx context.Context, userID uuid.UUID, email string) ([]domain.ConnectionRequest, error) {
	query := `
		SELECT cr.id, cr.requester_id, cr.target_id, cr.target_email, cr.status,
		       cr.invite_token, cr.created_at, cr.expires_at, cr.scheduled_at, cr.cancelled_at,
		       ru.display_name,
		       COALESCE(tu.display_name, '')
		FROM connection_requests cr
		JOIN users ru ON ru.id = cr.requester_id
		LEFT JOIN users tu ON tu.id = cr.target_id
		WHERE cr.requester_id = $1 OR cr.target_id = $1 OR (cr.target_id IS NULL AND cr.target_email = $2)
		ORDER BY cr.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []domain.ConnectionRequest
	for rows.Next() {
		var c domain.ConnectionRequest
		if err := rows.Scan(
			&c.ID, &c.RequesterID, &c.TargetID, &c.TargetEmail, &c.Status,
			&c.InviteToken, &c.CreatedAt, &c.ExpiresAt, &c.ScheduledAt, &c.CancelledAt,
			&c.RequesterName, &c.TargetName,
		); err != nil {
			return nil, err
		}
		reqs = append(reqs, c)
	}
	return reqs, rows.Err()
}

func (r *ConnectionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, targetID *uuid.UUID, cancelledAt *time.Time) (bool, error) {
	query := `
		UPDATE connection_requests
		SET status = $1,
		    target_id = COALESCE($2, target_id),
		    cancelled_at = COALESCE($3, cancelled_at)
		WHERE id = $4 AND status = $5`
	tag, err := r.pool.Exec(ctx, query, toStatus, targetID, cancelledAt, id, fromStatus)
	if err != nil {
		return false, translateErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ConnectionRepo) ResetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error) {
	query := `UPDATE connection_requests SET expires_at = $1 WHERE id = $2 AND status = 'pending'`
	tag, err := r.pool.Exec(ctx, query, expiresAt, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ConnectionRepo) SetScheduledAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE connection_requests SET scheduled_at = $1 WHERE id = $2`, at, id)
	return err
}

func (r *ConnectionRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE connection_requests SET status = 'expired' WHERE status = 'pending' AND expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
