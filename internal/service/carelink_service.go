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

const linkTokenWindow = 30 * 24 * time.Hour

var (
	ErrNotDoctor         = errors.New("only doctors can mint link tokens")
	ErrNotPatient        = errors.New("only patients can resolve link tokens")
	ErrLinkTokenNotFound = errors.New("link token not found")
	ErrLinkTokenExpired  = errors.New("link token has expired")
)

// CareLinkService owns the doctor-patient relationship ledger. Doctors
// mint shareable tokens (rendered as QR codes or URLs by the client);
// a patient resolving one creates the link. Resolution is idempotent.
type CareLinkService struct {
	linkRepo repository.CareLinkRepository
	userRepo repository.UserRepository
	logger   *zap.Logger
}

func NewCareLinkService(linkRepo repository.CareLinkRepository, userRepo repository.UserRepository, logger *zap.Logger) *CareLinkService {
	return &CareLinkService{
		linkRepo: linkRepo,
		userRepo: userRepo,
		logger:   logger,
	}
}

func (s *CareLinkService) MintLinkToken(ctx context.Context, doctorID uuid.UUID) (*domain.DoctorLinkToken, error) {
	doctor, err := s.userRepo.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor == nil || doctor.Role != domain.RoleDoctor {
		return nil, ErrNotDoctor
	}

	raw, err := generateToken(24)
	if err != nil {
		return nil, fmt.Errorf("generating link token: %w", err)
	}

	now := time.Now()
	token := &domain.DoctorLinkToken{
		Token:     raw,
		DoctorID:  doctorID,
		CreatedAt: now,
		ExpiresAt: now.Add(linkTokenWindow),
	}

	if err := s.linkRepo.CreateLinkToken(ctx, token); err != nil {
		return nil, fmt.Errorf("storing link token: %w", err)
	}

	return token, nil
}

// ResolveLinkToken upserts the CareLink for (doctor, patient). A second
// resolution by the same patient is a no-op success.
func (s *CareLinkService) ResolveLinkToken(ctx context.Context, token string, patientID uuid.UUID) (*domain.CareLink, error) {
	patient, err := s.userRepo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil || patient.Role != domain.RolePatient {
		return nil, ErrNotPatient
	}

	lt, err := s.linkRepo.GetLinkToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, ErrLinkTokenNotFound
	}
	if time.Now().After(lt.ExpiresAt) {
		return nil, ErrLinkTokenExpired
	}

	link := &domain.CareLink{
		ID:        uuid.New(),
		DoctorID:  lt.DoctorID,
		PatientID: patientID,
		LinkedAt:  time.Now(),
	}
	if err := s.linkRepo.UpsertLink(ctx, link); err != nil {
		return nil, fmt.Errorf("upserting care link: %w", err)
	}

	// The upsert may have hit an existing row; return the stored one.
	stored, err := s.linkRepo.GetLink(ctx, lt.DoctorID, patientID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("care link resolved",
		zap.String("doctor_id", lt.DoctorID.String()),
		zap.String("patient_id", patientID.String()))

	return stored, nil
}

func (s *CareLinkService) ListLinkedPatients(ctx context.Context, doctorID uuid.UUID) ([]domain.CareLink, error) {
	links, err := s.linkRepo.ListPatients(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.CareLink{}
	}
	return links, nil
}

func (s *CareLinkService) ListLinkedDoctors(ctx context.Context, patientID uuid.UUID) ([]domain.CareLink, error) {
	links, err := s.linkRepo.ListDoctors(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.CareLink{}
	}
	return links, nil
}
