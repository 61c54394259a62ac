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
	ErrNotConnected         = errors.New("no confirmed connection exists between the parties")
	ErrCannotCallSelf       = errors.New("cannot start a session with yourself")
	ErrPartyNotFound        = errors.New("party not found")
	ErrInvalidTime          = errors.New("scheduled time is in the past")
	ErrPartyBusy            = errors.New("a party already has an active call")
	ErrSessionNotFound      = errors.New("session not found")
	ErrNotSessionParty      = errors.New("only a session party can perform this action")
	ErrSessionNotScheduled  = errors.New("session is not in the scheduled state")
)

// SessionService owns scheduled and ad-hoc call sessions between two
// linked parties. Patient pairs need a confirmed connection; doctor pairs
// need no ledger precondition.
type SessionService struct {
	sessionRepo repository.SessionRepository
	connRepo    repository.ConnectionRepository
	userRepo    repository.UserRepository
	meetings    MeetingCreator
	dialer      Dialer
	callState   CallStateStore
	monitor     *CallMonitor
	notifier    Notifier
	logger      *zap.Logger
}

func NewSessionService(sessionRepo repository.SessionRepository, connRepo repository.ConnectionRepository, userRepo repository.UserRepository, meetings MeetingCreator, dialer Dialer, callState CallStateStore, monitor *CallMonitor, notifier Notifier, logger *zap.Logger) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		connRepo:    connRepo,
		userRepo:    userRepo,
		meetings:    meetings,
		dialer:      dialer,
		callState:   callState,
		monitor:     monitor,
		notifier:    notifier,
		logger:      logger,
	}
}

// Schedule books a future session. A conferencing-backend failure degrades
// gracefully: the session persists without a meeting ref and Degraded is
// set so the caller can surface a warning.
type ScheduleResult struct {
	Session  *domain.CallSession `json:"session"`
	Degraded bool                `json:"conferencing_degraded,omitempty"`
}

func (s *SessionService) Schedule(ctx context.Context, requesterID, targetID uuid.UUID, scheduledAt time.Time, durationMinutes int) (*ScheduleResult, error) {
	if requesterID == targetID {
		return nil, ErrCannotCallSelf
	}
	requester, target, err := s.loadParties(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLedgerPrecondition(ctx, requester, target); err != nil {
		return nil, err
	}
	if scheduledAt.Before(time.Now()) {
		return nil, ErrInvalidTime
	}
	if durationMinutes <= 0 {
		durationMinutes = 30
	}

	now := time.Now()
	at := scheduledAt
	sess := &domain.CallSession{
		ID:              uuid.New(),
		PartyAID:        requesterID,
		PartyBID:        targetID,
		ScheduledAt:     &at,
		DurationMinutes: durationMinutes,
		Status:          domain.SessionScheduled,
		CreatedAt:       now,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	// Record the booking on the relationship for patient pairs.
	if requester.Role == domain.RolePatient && target.Role == domain.RolePatient {
		if conn, err := s.connRepo.GetActiveByPair(ctx, requesterID, targetID); err == nil && conn != nil {
			if err := s.connRepo.SetScheduledAt(ctx, conn.ID, scheduledAt); err != nil {
				s.logger.Warn("recording scheduled_at on connection failed", zap.Error(err))
			}
		}
	}

	result := &ScheduleResult{Session: sess}
	if s.meetings != nil {
		ref, err := s.meetings.CreateMeeting(ctx,
			fmt.Sprintf("Call: %s / %s", requester.DisplayName, target.DisplayName),
			scheduledAt, durationMinutes,
			[]string{requester.Email, target.Email},
		)
		if err != nil {
			// Voice-dial fallback: session survives without a meeting ref.
			s.logger.Warn("conferencing backend failed, session degraded",
				zap.String("session_id", sess.ID.String()), zap.Error(err))
			result.Degraded = true
		} else {
			if err := s.sessionRepo.SetConferencingRef(ctx, sess.ID, ref); err != nil {
				return nil, err
			}
			sess.ConferencingRef = &ref
		}
	}

	s.logger.Info("session scheduled",
		zap.String("session_id", sess.ID.String()),
		zap.Time("scheduled_at", scheduledAt))

	return result, nil
}

// InitiateImmediate creates a connecting session and dispatches the
// dial-out asynchronously. The API call returns once the ledger row is
// durable; a dial failure lands later as ended/dial_failed through the
// monitor, never as an error here.
func (s *SessionService) InitiateImmediate(ctx context.Context, callerID, calleeID uuid.UUID) (*domain.CallSession, error) {
	if callerID == calleeID {
		return nil, ErrCannotCallSelf
	}
	caller, callee, err := s.loadParties(ctx, callerID, calleeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLedgerPrecondition(ctx, caller, callee); err != nil {
		return nil, err
	}

	sess := &domain.CallSession{
		ID:              uuid.New(),
		PartyAID:        callerID,
		PartyBID:        calleeID,
		DurationMinutes: 30,
		Status:          domain.SessionConnecting,
		CreatedAt:       time.Now(),
	}

	ok, err := s.sessionRepo.CreateIfIdle(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if !ok {
		return nil, ErrPartyBusy
	}

	if s.callState != nil {
		if err := s.callState.MarkActive(ctx, sess.ID, callerID, calleeID); err != nil {
			s.logger.Warn("marking call state failed", zap.Error(err))
		}
	}

	s.notifier.NotifyCallIncoming(calleeID, sess)

	// Fire-and-forget dial-out; the provider drives further transitions
	// through the telephony webhook.
	go s.placeDial(sess)

	s.logger.Info("immediate session initiated",
		zap.String("session_id", sess.ID.String()),
		zap.String("caller_id", callerID.String()))

	return sess, nil
}

// Cancel is valid only while scheduled; either party may cancel.
func (s *SessionService) Cancel(ctx context.Context, sessionID, actingUserID uuid.UUID) error {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if !sess.Involves(actingUserID) {
		return ErrNotSessionParty
	}

	ok, err := s.sessionRepo.UpdateStatus(ctx, sessionID, domain.SessionScheduled, domain.SessionCancelled, nil, nil, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotScheduled
	}
	return nil
}

func (s *SessionService) Get(ctx context.Context, sessionID, actingUserID uuid.UUID) (*domain.CallSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Involves(actingUserID) {
		return nil, ErrNotSessionParty
	}
	return sess, nil
}

func (s *SessionService) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CallSession, error) {
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.CallSession{}
	}
	return sessions, nil
}

func (s *SessionService) loadParties(ctx context.Context, aID, bID uuid.UUID) (*domain.User, *domain.User, error) {
	a, err := s.userRepo.GetByID(ctx, aID)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.userRepo.GetByID(ctx, bID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil || b == nil {
		return nil, nil, ErrPartyNotFound
	}
	return a, b, nil
}

// checkLedgerPrecondition allows doctor-doctor pairs unconditionally and
// patient pairs only with a confirmed connection. A pending connection is
// not enough.
func (s *SessionService) checkLedgerPrecondition(ctx context.Context, a, b *domain.User) error {
	if a.Role == domain.RoleDoctor && b.Role == domain.RoleDoctor {
		return nil
	}
	conn, err := s.connRepo.GetActiveByPair(ctx, a.ID, b.ID)
	if err != nil {
		return err
	}
	if conn == nil || conn.Status != domain.ConnectionConfirmed {
		return ErrNotConnected
	}
	return nil
}

func (s *SessionService) placeDial(sess *domain.CallSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.dialer == nil {
		s.logger.Warn("no telephony backend configured, failing dial",
			zap.String("session_id", sess.ID.String()))
		s.monitor.HandleDialFailure(ctx, sess.ID)
		return
	}

	if _, err := s.dialer.Dial(ctx, sess.ID, sess.PartyAID, sess.PartyBID); err != nil {
		s.logger.Warn("dial-out rejected by provider",
			zap.String("session_id", sess.ID.String()), zap.Error(err))
		s.monitor.HandleDialFailure(ctx, sess.ID)
	}
}
