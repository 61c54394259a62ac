package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrstic/peerlink/internal/domain"
)

type CareLinkRepo struct {
	pool *pgxpool.Pool
}

func NewCareLinkRepo(pool *pgxpool.Pool) *CareLinkRepo {
	return &CareLinkRepo{pool: pool}
}

func (r *CareLinkRepo) CreateLinkToken(ctx context.Context, token *domain.DoctorLinkToken) error {
	query := `
		INSERT INTO doctor_link_tokens (token, doctor_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, token.Token, token.DoctorID, token.CreatedAt, token.ExpiresAt)
	return translateErr(err)
}

func (r *CareLinkRepo) GetLinkToken(ctx context.Context, token string) (*domain.DoctorLinkToken, error) {
	query := `
		SELECT token, doctor_id, created_at, expires_at
		FROM doctor_link_tokens
		WHERE token = $1`
	var t domain.DoctorLinkToken
	err := r.pool.QueryRow(ctx, query, token).Scan(&t.Token, &t.DoctorID, &t.CreatedAt, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &t, err
}

func (r *CareLinkRepo) UpsertLink(ctx context.Context, link *domain.CareLink) error {
	query := `
		INSERT INTO care_links (id, doctor_id, patient_id, linked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id, patient_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, link.ID, link.DoctorID, link.PatientID, link.LinkedAt)
	return err
}

func (r *CareLinkRepo) GetLink(ctx context.Context, doctorID, patientID uuid.UUID) (*domain.CareLink, error) {
	query := `
		SELECT id, doctor_id, patient_id, linked_at
		FROM care_links
		WHERE doctor_id = $1 AND patient_id = $2`
	var l domain.CareLink
	err := r.pool.QueryRow(ctx, query, doctorID, patientID).Scan(&l.ID, &l.DoctorID, &l.PatientID, &l.LinkedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &l, err
}

func (r *CareLinkRepo) ListPatients(ctx context.Context, doctorID uuid.UUID) ([]domain.CareLink, error) {
	query := `
		SELECT cl.id, cl.doctor_id, cl.patient_id, cl.linked_at, u.display_name
		FROM care_links cl
		JOIN users u ON u.id = cl.patient_id
		WHERE cl.doctor_id = $1
		ORDER BY u.display_name ASC`

	rows, err := r.pool.Query(ctx, query, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.CareLink
	for rows.Next() {
		var l domain.CareLink
		if err := rows.Scan(&l.ID, &l.DoctorID, &l.PatientID, &l.LinkedAt, &l.PatientName); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *CareLinkRepo) ListDoctors(ctx context.Context, patientID uuid.UUID) ([]domain.CareLink, error) {
	query := `
		SELECT cl.id, cl.doctor_id, cl.patient_id, cl.linked_at, u.display_name
		FROM care_links cl
		JOIN users u ON u.id = cl.doctor_id
		WHERE cl.patient_id = $1
		ORDER BY u.display_name ASC`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.CareLink
	for rows.Next() {
		var l domain.CareLink
		if err := rows.Scan(&l.ID, &l.DoctorID, &l.PatientID, &l.LinkedAt, &l.DoctorName); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
