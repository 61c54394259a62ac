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

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, party_a_id, party_b_id, scheduled_at, duration_minutes, conferencing_ref, status, end_reason, started_at, ended_at, transcript, summary, created_at`

func scanSession(row pgx.Row) (*domain.CallSession, error) {
	var s domain.CallSession
	err := row.Scan(
		&s.ID, &s.PartyAID, &s.PartyBID, &s.ScheduledAt, &s.DurationMinutes,
		&s.ConferencingRef, &s.Status, &s.EndReason, &s.StartedAt, &s.EndedAt,
		&s.Transcript, &s.Summary, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &s, err
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.CallSession) error {
	query := `
		INSERT INTO call_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.PartyAID, s.PartyBID, s.ScheduledAt, s.DurationMinutes,
		s.ConferencingRef, s.Status, s.EndReason, s.StartedAt, s.EndedAt,
		s.Transcript, s.Summary, s.CreatedAt,
	)
	return translateErr(err)
}

// CreateIfIdle inserts a connecting session only when neither party holds a
// connecting/live slot. The busy check and the insert run in one
// transaction so two concurrent dials cannot both land on the same party.
func (r *SessionRepo) CreateIfIdle(ctx context.Context, s *domain.CallSession) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var busy bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM call_sessions
			WHERE status IN ('connecting', 'live')
			  AND (party_a_id = $1 OR party_b_id = $1 OR party_a_id = $2 OR party_b_id = $2)
		)`, s.PartyAID, s.PartyBID).Scan(&busy)
	if err != nil {
		return false, err
	}
	if busy {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO call_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.PartyAID, s.PartyBID, s.ScheduledAt, s.DurationMinutes,
		s.ConferencingRef, s.Status, s.EndReason, s.StartedAt, s.EndedAt,
		s.Transcript, s.Summary, s.CreatedAt,
	)
	if err != nil {
		return false, translateErr(err)
	}

	return true, tx.Commit(ctx)
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CallSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM call_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

func (r *SessionRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.CallSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM call_sessions
		WHERE status IN ('connecting', 'live') AND (party_a_id = $1 OR party_b_id = $1)`
	return scanSession(r.pool.QueryRow(ctx, query, userID))
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CallSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM call_sessions
		WHERE party_a_id = $1 OR party_b_id = $1
		ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *SessionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, startedAt, endedAt *time.Time, endReason *string) (bool, error) {
	query := `
		UPDATE call_sessions
		SET status = $1,
		    started_at = COALESCE($2, started_at),
		    ended_at = COALESCE($3, ended_at),
		    end_reason = COALESCE($4, end_reason)
		WHERE id = $5 AND status = $6`
	tag, err := r.pool.Exec(ctx, query, toStatus, startedAt, endedAt, endReason, id, fromStatus)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SessionRepo) SetConferencingRef(ctx context.Context, id uuid.UUID, ref string) error {
	_, err := r.pool.Exec(ctx, `UPDATE call_sessions SET conferencing_ref = $1 WHERE id = $2`, ref, id)
	return err
}

func (r *SessionRepo) AttachArtifacts(ctx context.Context, id uuid.UUID, transcript, summary *string) error {
	query := `
		UPDATE call_sessions
		SET transcript = COALESCE($1, transcript),
		    summary = COALESCE($2, summary)
		WHERE id = $3 AND status IN ('live', 'ended')`
	_, err := r.pool.Exec(ctx, query, transcript, summary, id)
	return err
}

func (r *SessionRepo) ListStaleConnecting(ctx context.Context, cutoff time.Time) ([]domain.CallSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM call_sessions
		WHERE status = 'connecting' AND created_at < $1`
	return r.list(ctx, query, cutoff)
}

func (r *SessionRepo) ListUpcoming(ctx context.Context, from, to time.Time) ([]domain.CallSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM call_sessions
		WHERE status = 'scheduled' AND scheduled_at >= $1 AND scheduled_at < $2`
	return r.list(ctx, query, from, to)
}

func (r *SessionRepo) list(ctx context.Context, query string, args ...any) ([]domain.CallSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.CallSession
	for rows.Next() {
		var s domain.CallSession
		if err := rows.Scan(
			&s.ID, &s.PartyAID, &s.PartyBID, &s.ScheduledAt, &s.DurationMinutes,
			&s.ConferencingRef, &s.Status, &s.EndReason, &s.StartedAt, &s.EndedAt,
			&s.Transcript, &s.Summary, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
