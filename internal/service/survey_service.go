package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/domain"
	"github.com/dkrstic/peerlink/internal/repository"
)

var (
	ErrNotLinked              = errors.New("no care link exists between doctor and patient")
	ErrInvalidOccasion        = errors.New("occasion must be preop, postop or other")
	ErrSurveyAlreadyActive    = errors.New("an active survey already exists for this patient and occasion")
	ErrSurveyNotFound         = errors.New("survey request not found")
	ErrSurveyAlreadyCompleted = errors.New("survey request is already completed")
	ErrNotSurveyOwner         = errors.New("only the assigning doctor can perform this action")
)

// SurveyService owns the per-patient, per-occasion outcome-survey
// lifecycle: pending → sent → completed. At most one non-completed survey
// exists per (patient, occasion); re-sends refresh the active record in
// place rather than creating a second one.
type SurveyService struct {
	surveyRepo repository.SurveyRepository
	linkRepo   repository.CareLinkRepository
	userRepo   repository.UserRepository
	dispatcher Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

func NewSurveyService(surveyRepo repository.SurveyRepository, linkRepo repository.CareLinkRepository, userRepo repository.UserRepository, dispatcher Dispatcher, notifier Notifier, logger *zap.Logger) *SurveyService {
	return &SurveyService{
		surveyRepo: surveyRepo,
		linkRepo:   linkRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// Send assigns a survey. Fails with ErrSurveyAlreadyActive when an active
// record exists; callers re-trigger delivery through Resend instead.
func (s *SurveyService) Send(ctx context.Context, doctorID, patientID uuid.UUID, occasion string) (*domain.SurveyRequest, error) {
	if occasion != domain.OccasionPreop && occasion != domain.OccasionPostop && occasion != domain.OccasionOther {
		return nil, ErrInvalidOccasion
	}

	link, err := s.linkRepo.GetLink(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotLinked
	}

	active, err := s.surveyRepo.GetActive(ctx, patientID, occasion)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrSurveyAlreadyActive
	}

	sr := &domain.SurveyRequest{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Occasion:  occasion,
		Status:    domain.SurveyPending,
		CreatedAt: time.Now(),
	}
	if err := s.surveyRepo.Create(ctx, sr); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent send for the same slot.
			return nil, ErrSurveyAlreadyActive
		}
		return nil, fmt.Errorf("creating survey request: %w", err)
	}

	if err := s.deliver(ctx, sr); err != nil {
		// The record stays pending; delivery can be retried via Resend.
		s.logger.Warn("survey delivery dispatch failed", zap.String("survey_id", sr.ID.String()), zap.Error(err))
	}

	s.notifier.NotifySurveyAssigned(patientID, sr)
	return sr, nil
}

// Resend re-delivers the active survey for (patient, occasion), refreshing
// sentAt in place. There is never a second active record.
func (s *SurveyService) Resend(ctx context.Context, doctorID, patientID uuid.UUID, occasion string) (*domain.SurveyRequest, error) {
	active, err := s.surveyRepo.GetActive(ctx, patientID, occasion)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrSurveyNotFound
	}
	if active.DoctorID != doctorID {
		return nil, ErrNotSurveyOwner
	}

	if err := s.deliver(ctx, active); err != nil {
		return nil, err
	}
	return active, nil
}

// RecordCompletion is called by the survey-intake boundary when the
// external form submits.
func (s *SurveyService) RecordCompletion(ctx context.Context, surveyID uuid.UUID, responseData map[string]string) (*domain.SurveyRequest, error) {
	sr, err := s.surveyRepo.GetByID(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if sr == nil {
		return nil, ErrSurveyNotFound
	}

	now := time.Now()
	ok, err := s.surveyRepo.Complete(ctx, surveyID, now, responseData)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Already completed; responseData stays untouched.
		return nil, ErrSurveyAlreadyCompleted
	}

	sr.Status = domain.SurveyCompleted
	sr.CompletedAt = &now
	sr.ResponseData = responseData

	s.logger.Info("survey completed", zap.String("survey_id", surveyID.String()))
	return sr, nil
}

// Analytics derives per-occasion completion rate and mean completion
// latency for a doctor. Surveys that were never sent count toward totals
// and pending but are excluded from latency.
func (s *SurveyService) Analytics(ctx context.Context, doctorID uuid.UUID) (*domain.SurveyAnalytics, error) {
	surveys, err := s.surveyRepo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		total, completed, pending int
		latencySum                time.Duration
		latencyN                  int
	}
	buckets := map[string]*bucket{}

	for _, sr := range surveys {
		b := buckets[sr.Occasion]
		if b == nil {
			b = &bucket{}
			buckets[sr.Occasion] = b
		}
		b.total++
		switch sr.Status {
		case domain.SurveyCompleted:
			b.completed++
			if sr.SentAt != nil && sr.CompletedAt != nil {
				b.latencySum += sr.CompletedAt.Sub(*sr.SentAt)
				b.latencyN++
			}
		default:
			b.pending++
		}
	}

	out := &domain.SurveyAnalytics{DoctorID: doctorID, Occasions: []domain.SurveyOccasionStats{}}
	for _, occasion := range []string{domain.OccasionPreop, domain.OccasionPostop, domain.OccasionOther} {
		b := buckets[occasion]
		if b == nil {
			continue
		}
		stats := domain.SurveyOccasionStats{
			Occasion:  occasion,
			Total:     b.total,
			Completed: b.completed,
			Pending:   b.pending,
		}
		if b.total > 0 {
			stats.CompletionRate = float64(b.completed) / float64(b.total)
		}
		if b.latencyN > 0 {
			stats.AvgCompletionSeconds = b.latencySum.Seconds() / float64(b.latencyN)
		}
		out.Occasions = append(out.Occasions, stats)
	}
	return out, nil
}

func (s *SurveyService) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]domain.SurveyRequest, error) {
	surveys, err := s.surveyRepo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if surveys == nil {
		surveys = []domain.SurveyRequest{}
	}
	return surveys, nil
}

func (s *SurveyService) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]domain.SurveyRequest, error) {
	surveys, err := s.surveyRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if surveys == nil {
		surveys = []domain.SurveyRequest{}
	}
	return surveys, nil
}

// deliver enqueues the survey link email and stamps sentAt once the
// dispatcher has accepted it.
func (s *SurveyService) deliver(ctx context.Context, sr *domain.SurveyRequest) error {
	patient, err := s.userRepo.GetByID(ctx, sr.PatientID)
	if err != nil {
		return err
	}
	doctor, err := s.userRepo.GetByID(ctx, sr.DoctorID)
	if err != nil {
		return err
	}
	if patient == nil || doctor == nil {
		return ErrSurveyNotFound
	}

	if !s.dispatcher.SendSurveyLink(patient.Email, doctor.DisplayName, sr.Occasion, sr.ID.String()) {
		return fmt.Errorf("notification dispatcher rejected survey link")
	}

	now := time.Now()
	if err := s.surveyRepo.MarkSent(ctx, sr.ID, now); err != nil {
		return err
	}
	sr.Status = domain.SurveySent
	sr.SentAt = &now
	return nil
}
