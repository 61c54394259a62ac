package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dkrstic/peerlink/internal/domain"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint
// (unique index or partial unique index). Services translate it into
// their own sentinel errors.
var ErrDuplicate = errors.New("duplicate record")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type ConnectionRepository interface {
	Create(ctx context.Context, req *domain.ConnectionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ConnectionRequest, error)
	GetByToken(ctx context.Context, token string) (*domain.ConnectionRequest, error)
	// GetActiveByPair returns the non-terminal (pending or confirmed)
	// request between the two users, in either direction.
	GetActiveByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.ConnectionRequest, error)
	// GetActiveByEmail returns a pending request from requester to a
	// not-yet-registered target email.
	GetActiveByEmail(ctx context.Context, requesterID uuid.UUID, email string) (*domain.ConnectionRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, email string) ([]domain.ConnectionRequest, error)
	// UpdateStatus transitions id from fromStatus to toStatus, binding
	// targetID when non-nil. Returns false when the row was not in
	// fromStatus anymore (a concurrent writer won).
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, targetID *uuid.UUID, cancelledAt *time.Time) (bool, error)
	// ResetExpiry extends a pending request's window; returns false if the
	// request is no longer pending.
	ResetExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error)
	SetScheduledAt(ctx context.Context, id uuid.UUID, at time.Time) error
	// ExpireOverdue persists the expired status on pending rows past their
	// expiry and returns how many were swept.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type CareLinkRepository interface {
	CreateLinkToken(ctx context.Context, token *domain.DoctorLinkToken) error
	GetLinkToken(ctx context.Context, token string) (*domain.DoctorLinkToken, error)
	// UpsertLink is idempotent: resolving the same token twice for the
	// same patient leaves a single row.
	UpsertLink(ctx context.Context, link *domain.CareLink) error
	GetLink(ctx context.Context, doctorID, patientID uuid.UUID) (*domain.CareLink, error)
	ListPatients(ctx context.Context, doctorID uuid.UUID) ([]domain.CareLink, error)
	ListDoctors(ctx context.Context, patientID uuid.UUID) ([]domain.CareLink, error)
}

type SurveyRepository interface {
	Create(ctx context.Context, sr *domain.SurveyRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SurveyRequest, error)
	GetActive(ctx context.Context, patientID uuid.UUID, occasion string) (*domain.SurveyRequest, error)
	// MarkSent stamps sentAt and moves pending→sent. Re-sends refresh the
	// stamp in place, there is never a second active row.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	// Complete transitions to completed; returns false if the row was
	// already completed.
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, responseData map[string]string) (bool, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]domain.SurveyRequest, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]domain.SurveyRequest, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.CallSession) error
	// CreateIfIdle inserts a connecting session only if neither party has
	// a connecting/live session, all inside one transaction. Returns
	// false when a party is busy.
	CreateIfIdle(ctx context.Context, s *domain.CallSession) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CallSession, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.CallSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CallSession, error)
	// UpdateStatus is a CAS transition; returns false when the session was
	// not in fromStatus.
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatus, toStatus string, startedAt, endedAt *time.Time, endReason *string) (bool, error)
	SetConferencingRef(ctx context.Context, id uuid.UUID, ref string) error
	// AttachArtifacts sets transcript/summary but never overwrites a
	// populated column with null.
	AttachArtifacts(ctx context.Context, id uuid.UUID, transcript, summary *string) error
	// ListStaleConnecting returns connecting sessions created before the
	// cutoff, for the sweeper to time out.
	ListStaleConnecting(ctx context.Context, cutoff time.Time) ([]domain.CallSession, error)
	// ListUpcoming returns scheduled sessions starting inside the window,
	// for reminder dispatch.
	ListUpcoming(ctx context.Context, from, to time.Time) ([]domain.CallSession, error)
}
