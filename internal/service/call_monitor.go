package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/domain"
	"github.com/dkrstic/peerlink/internal/repository"
)

var (
	ErrSessionNotActive = errors.New("this action is no longer available")
	ErrNoArtifactTarget = errors.New("artifacts attach only to live or ended sessions")
)

// CallMonitor owns the transient state of one in-progress call:
// connecting → live on the provider pickup callback, live/connecting →
// ended on hang-up, provider timeout or dial failure. Every transition is
// a CAS; the losing writer of a race gets ErrSessionNotActive.
type CallMonitor struct {
	sessionRepo repository.SessionRepository
	callState   CallStateStore
	notifier    Notifier
	logger      *zap.Logger
}

func NewCallMonitor(sessionRepo repository.SessionRepository, callState CallStateStore, notifier Notifier, logger *zap.Logger) *CallMonitor {
	return &CallMonitor{
		sessionRepo: sessionRepo,
		callState:   callState,
		notifier:    notifier,
		logger:      logger,
	}
}

// HandleConnected transitions connecting → live on the provider callback.
func (m *CallMonitor) HandleConnected(ctx context.Context, sessionID uuid.UUID) (*domain.CallSession, error) {
	now := time.Now()
	ok, err := m.sessionRepo.UpdateStatus(ctx, sessionID, domain.SessionConnecting, domain.SessionLive, &now, nil, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotActive
	}

	sess, err := m.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	if m.callState != nil {
		if err := m.callState.MarkActive(ctx, sess.ID, sess.PartyAID, sess.PartyBID); err != nil {
			m.logger.Warn("refreshing call state failed", zap.Error(err))
		}
	}
	m.notifier.NotifyCallConnected(sess)

	m.logger.Info("call connected", zap.String("session_id", sessionID.String()))
	return sess, nil
}

// HandleEnded transitions live or connecting → ended. A session that never
// went live keeps a nil startedAt, which together with the reason code
// records the failed attempt.
func (m *CallMonitor) HandleEnded(ctx context.Context, sessionID uuid.UUID, reason string) (*domain.CallSession, error) {
	now := time.Now()

	ok, err := m.sessionRepo.UpdateStatus(ctx, sessionID, domain.SessionLive, domain.SessionEnded, nil, &now, &reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		ok, err = m.sessionRepo.UpdateStatus(ctx, sessionID, domain.SessionConnecting, domain.SessionEnded, nil, &now, &reason)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSessionNotActive
		}
	}

	sess, err := m.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	if m.callState != nil {
		if err := m.callState.Clear(ctx, sess.PartyAID, sess.PartyBID); err != nil {
			m.logger.Warn("clearing call state failed", zap.Error(err))
		}
	}
	m.notifier.NotifyCallEnded(sess)

	m.logger.Info("call ended",
		zap.String("session_id", sessionID.String()),
		zap.String("reason", reason))
	return sess, nil
}

// HandleDialFailure records a dial-out the provider rejected: terminal
// ended with no startedAt.
func (m *CallMonitor) HandleDialFailure(ctx context.Context, sessionID uuid.UUID) {
	if _, err := m.HandleEnded(ctx, sessionID, domain.EndReasonDialFailed); err != nil {
		m.logger.Warn("recording dial failure failed",
			zap.String("session_id", sessionID.String()), zap.Error(err))
	}
}

// EndCall is the explicit hang-up action from either party.
func (m *CallMonitor) EndCall(ctx context.Context, sessionID, actingUserID uuid.UUID) (*domain.CallSession, error) {
	sess, err := m.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Involves(actingUserID) {
		return nil, ErrNotSessionParty
	}
	return m.HandleEnded(ctx, sessionID, domain.EndReasonHangup)
}

// AttachArtifacts records transcript/summary from the transcription/AI
// boundary. The update is idempotent and attach-if-present: a nil input
// never clobbers a stored value, and artifacts may arrive late or never.
func (m *CallMonitor) AttachArtifacts(ctx context.Context, sessionID uuid.UUID, transcript, summary *string) (*domain.CallSession, error) {
	sess, err := m.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Status != domain.SessionLive && sess.Status != domain.SessionEnded {
		return nil, ErrNoArtifactTarget
	}

	if err := m.sessionRepo.AttachArtifacts(ctx, sessionID, transcript, summary); err != nil {
		return nil, err
	}

	return m.sessionRepo.GetByID(ctx, sessionID)
}
