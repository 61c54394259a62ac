package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrstic/peerlink/internal/domain"
)

type SurveyRepo struct {
	pool *pgxpool.Pool
}

func NewSurveyRepo(pool *pgxpool.Pool) *SurveyRepo {
	return &SurveyRepo{pool: pool}
}

const surveyColumns = `id, patient_id, doctor_id, occasion, status, sent_at, completed_at, response_data, created_at`

func scanSurvey(row pgx.Row) (*domain.SurveyRequest, error) {
	var sr domain.SurveyRequest
	var raw []byte
	err := row.Scan(
		&sr.ID, &sr.PatientID, &sr.DoctorID, &sr.Occasion, &sr.Status,
		&sr.SentAt, &sr.CompletedAt, &raw, &sr.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &sr.ResponseData); err != nil {
			return nil, err
		}
	}
	return &sr, nil
}

func (r *SurveyRepo) Create(ctx context.Context, sr *domain.SurveyRequest) error {
	query := `
		INSERT INTO survey_requests (id, patient_id, doctor_id, occasion, status, sent_at, completed_at, response_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8)`
	_, err := r.pool.Exec(ctx, query,
		sr.ID, sr.PatientID, sr.DoctorID, sr.Occasion, sr.Status, sr.SentAt, sr.CompletedAt, sr.CreatedAt,
	)
	return translateErr(err)
}

func (r *SurveyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SurveyRequest, error) {
	query := `SELECT ` + surveyColumns + ` FROM survey_requests WHERE id = $1`
	return scanSurvey(r.pool.QueryRow(ctx, query, id))
}

func (r *SurveyRepo) GetActive(ctx context.Context, patientID uuid.UUID, occasion string) (*domain.SurveyRequest, error) {
	query := `
		SELECT ` + surveyColumns + `
		FROM survey_requests
		WHERE patient_id = $1 AND occasion = $2 AND status <> 'completed'`
	return scanSurvey(r.pool.QueryRow(ctx, query, patientID, occasion))
}

func (r *SurveyRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE survey_requests
		SET status = 'sent', sent_at = $1
		WHERE id = $2 AND status <> 'completed'`
	_, err := r.pool.Exec(ctx, query, sentAt, id)
	return err
}

func (r *SurveyRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, responseData map[string]string) (bool, error) {
	raw, err := json.Marshal(responseData)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE survey_requests
		SET status = 'completed', completed_at = $1, response_data = $2
		WHERE id = $3 AND status <> 'completed'`
	tag, err := r.pool.Exec(ctx, query, completedAt, raw, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SurveyRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]domain.SurveyRequest, error) {
	query := `
		SELECT sr.id, sr.patient_id, sr.doctor_id, sr.occasion, sr.status,
		       sr.sent_at, sr.completed_at, sr.response_data, sr.created_at,
		       u.display_name
		FROM survey_requests sr
		JOIN users u ON u.id = sr.patient_id
		WHERE sr.doctor_id = $1
		ORDER BY sr.created_at DESC`

	rows, err := r.pool.Query(ctx, query, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var surveys []domain.SurveyRequest
	for rows.Next() {
		var sr domain.SurveyRequest
		var raw []byte
		if err := rows.Scan(
			&sr.ID, &sr.PatientID, &sr.DoctorID, &sr.Occasion, &sr.Status,
			&sr.SentAt, &sr.CompletedAt, &raw, &sr.CreatedAt,
			&sr.PatientName,
		); err != nil {
			return nil, err
		}
		if raw != nil {
			if err := json.Unmarshal(raw, &sr.ResponseData); err != nil {
				return nil, err
			}
		}
		surveys = append(surveys, sr)
	}
	return surveys, rows.Err()
}

func (r *SurveyRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]domain.SurveyRequest, error) {
	query := `
		SELECT ` + surveyColumns + `
		FROM survey_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var surveys []domain.SurveyRequest
	for rows.Next() {
		var sr domain.SurveyRequest
		var raw []byte
		if err := rows.Scan(
			&sr.ID, &sr.PatientID, &sr.DoctorID, &sr.Occasion, &sr.Status,
			&sr.SentAt, &sr.CompletedAt, &raw, &sr.CreatedAt,
		); err != nil {
			return nil, err
		}
		if raw != nil {
			if err := json.Unmarshal(raw, &sr.ResponseData); err != nil {
				return nil, err
			}
		}
		surveys = append(surveys, sr)
	}
	return surveys, rows.Err()
}
