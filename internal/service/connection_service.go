package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/domain"
	"github.com/dkrstic/peerlink/internal/repository"
)

const inviteWindow = 7 * 24 * time.Hour

var (
	ErrCannotInviteSelf      = errors.New("cannot send a connection invite to yourself")
	ErrInviteeNotFound       = errors.New("invitee not found")
	ErrDuplicateRelationship = errors.New("an active relationship already exists for this pair")
	ErrInviteNotFound        = errors.New("connection invite not found")
	ErrInviteExpired         = errors.New("connection invite has expired")
	ErrNotInviteTarget       = errors.New("only the invited user can perform this action")
	ErrNotRequester          = errors.New("only the original requester can perform this action")
	ErrInviteNotPending      = errors.New("connection invite is no longer pending")
)

// ConnectionService owns the patient-to-patient relationship state machine:
// pending → confirmed | declined, with computed expiry on overdue pending
// invites.
type ConnectionService struct {
	connRepo   repository.ConnectionRepository
	userRepo   repository.UserRepository
	dispatcher Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

func NewConnectionService(connRepo repository.ConnectionRepository, userRepo repository.UserRepository, dispatcher Dispatcher, notifier Notifier, logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		connRepo:   connRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// Invite creates a pending request toward a registered user (by id or
// email) or toward a plain email address for someone who has not signed up
// yet. An inbound pending invite from the target is rejected as a
// duplicate rather than silently auto-confirmed; the requester should
// accept the existing invite instead.
func (s *ConnectionService) Invite(ctx context.Context, requesterID uuid.UUID, targetRef string) (*domain.ConnectionRequest, error) {
	requester, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, ErrInviteeNotFound
	}

	target, targetEmail, err := s.resolveTarget(ctx, targetRef)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	req := &domain.ConnectionRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Status:      domain.ConnectionPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(inviteWindow),
	}

	if target != nil {
		if target.ID == requesterID {
			return nil, ErrCannotInviteSelf
		}
		if err := s.checkNoActivePair(ctx, requesterID, target.ID, now); err != nil {
			return nil, err
		}
		req.TargetID = &target.ID
		email := target.Email
		req.TargetEmail = &email
	} else {
		if strings.EqualFold(targetEmail, requester.Email) {
			return nil, ErrCannotInviteSelf
		}
		existing, err := s.connRepo.GetActiveByEmail(ctx, requesterID, targetEmail)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.EffectiveStatus(now) == domain.ConnectionPending {
			return nil, ErrDuplicateRelationship
		}
		req.TargetEmail = &targetEmail
	}

	token, err := generateToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating invite token: %w", err)
	}
	req.InviteToken = token

	if err := s.connRepo.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent invite for the same pair.
			return nil, ErrDuplicateRelationship
		}
		return nil, fmt.Errorf("creating connection request: %w", err)
	}

	s.dispatcher.SendConnectionInvite(*req.TargetEmail, requester.DisplayName, req.InviteToken)
	if req.TargetID != nil {
		s.notifier.NotifyConnectionInvite(*req.TargetID, req)
	}

	s.logger.Info("connection invite created",
		zap.String("request_id", req.ID.String()),
		zap.String("requester_id", requesterID.String()))

	return req, nil
}

// Accept confirms a pending invite. For email-only invites the presenter
// of the token becomes the target: possession of the unguessable token is
// the credential (see DESIGN.md).
func (s *ConnectionService) Accept(ctx context.Context, inviteToken string, actingUserID uuid.UUID) (*domain.ConnectionRequest, error) {
	req, err := s.connRepo.GetByToken(ctx, inviteToken)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrInviteNotFound
	}

	now := time.Now()
	if req.Status == domain.ConnectionPending && now.After(req.ExpiresAt) {
		// Persist the computed transition so later reads agree.
		if _, err := s.connRepo.UpdateStatus(ctx, req.ID, domain.ConnectionPending, domain.ConnectionExpired, nil, nil); err != nil {
			s.logger.Warn("persisting invite expiry failed", zap.Error(err))
		}
		return nil, ErrInviteExpired
	}
	if req.RequesterID == actingUserID {
		return nil, ErrNotInviteTarget
	}
	if req.TargetID != nil && *req.TargetID != actingUserID {
		return nil, ErrNotInviteTarget
	}
	if req.Status != domain.ConnectionPending {
		return nil, ErrInviteNotPending
	}

	var bindTarget *uuid.UUID
	if req.TargetID == nil {
		bindTarget = &actingUserID
		if err := s.checkNoActivePair(ctx, req.RequesterID, actingUserID, now); err != nil {
			return nil, err
		}
	}

	ok, err := s.connRepo.UpdateStatus(ctx, req.ID, domain.ConnectionPending, domain.ConnectionConfirmed, bindTarget, nil)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateRelationship
		}
		return nil, err
	}
	if !ok {
		// A concurrent accept/decline/cancel won.
		return nil, ErrInviteNotPending
	}

	req.Status = domain.ConnectionConfirmed
	if bindTarget != nil {
		req.TargetID = bindTarget
	}

	s.notifier.NotifyConnectionAccepted(req.RequesterID, req)
	s.logger.Info("connection invite accepted",
		zap.String("request_id", req.ID.String()),
		zap.String("acting_user_id", actingUserID.String()))

	return req, nil
}

// Decline rejects a pending invite. Declining an already-declined invite
// is a no-op success.
func (s *ConnectionService) Decline(ctx context.Context, inviteToken string, actingUserID uuid.UUID) error {
	req, err := s.connRepo.GetByToken(ctx, inviteToken)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrInviteNotFound
	}
	if req.Status == domain.ConnectionDeclined {
		return nil
	}

	now := time.Now()
	if req.Status == domain.ConnectionPending && now.After(req.ExpiresAt) {
		return ErrInviteExpired
	}
	if req.RequesterID == actingUserID {
		return ErrNotInviteTarget
	}
	if req.TargetID != nil && *req.TargetID != actingUserID {
		return ErrNotInviteTarget
	}
	if req.Status != domain.ConnectionPending {
		return ErrInviteNotPending
	}

	ok, err := s.connRepo.UpdateStatus(ctx, req.ID, domain.ConnectionPending, domain.ConnectionDeclined, nil, nil)
	if err != nil {
		return err
	}
	if !ok {
		// Re-read to stay idempotent when racing another decline.
		fresh, err := s.connRepo.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}
		if fresh != nil && fresh.Status == domain.ConnectionDeclined {
			return nil
		}
		return ErrInviteNotPending
	}

	return nil
}

// Resend re-triggers the invite notification. Policy: the token stays the
// same and the expiry window is reset, so a previously emailed link keeps
// working.
func (s *ConnectionService) Resend(ctx context.Context, requestID, actingUserID uuid.UUID) (*domain.ConnectionRequest, error) {
	req, err := s.connRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrInviteNotFound
	}
	if req.RequesterID != actingUserID {
		return nil, ErrNotRequester
	}
	if req.Status != domain.ConnectionPending {
		return nil, ErrInviteNotPending
	}

	newExpiry := time.Now().Add(inviteWindow)
	ok, err := s.connRepo.ResetExpiry(ctx, requestID, newExpiry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInviteNotPending
	}
	req.ExpiresAt = newExpiry

	requester, err := s.userRepo.GetByID(ctx, actingUserID)
	if err != nil {
		return nil, err
	}
	s.dispatcher.SendConnectionInvite(*req.TargetEmail, requester.DisplayName, req.InviteToken)

	return req, nil
}

// Cancel withdraws an invite. Requester-only; reuses the declined terminal
// state. Cancelling an already-declined request is a no-op success.
func (s *ConnectionService) Cancel(ctx context.Context, requestID, actingUserID uuid.UUID) error {
	req, err := s.connRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrInviteNotFound
	}
	if req.RequesterID != actingUserID {
		return ErrNotRequester
	}
	if req.Status == domain.ConnectionDeclined {
		return nil
	}
	if req.Status == domain.ConnectionConfirmed {
		return ErrInviteNotPending
	}

	now := time.Now()
	fromStatus := req.Status
	ok, err := s.connRepo.UpdateStatus(ctx, requestID, fromStatus, domain.ConnectionDeclined, nil, &now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInviteNotPending
	}

	return nil
}

// List returns every request where the user is requester or target, with
// expiry derived for overdue pending rows the sweeper has not reached yet.
func (s *ConnectionService) List(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInviteeNotFound
	}

	reqs, err := s.connRepo.ListByUser(ctx, userID, user.Email)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range reqs {
		reqs[i].Status = reqs[i].EffectiveStatus(now)
	}
	if reqs == nil {
		reqs = []domain.ConnectionRequest{}
	}
	return reqs, nil
}

// Confirmed reports whether a confirmed connection exists between the two
// users. Used by the engagement scheduler as its ledger precondition.
func (s *ConnectionService) Confirmed(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	req, err := s.connRepo.GetActiveByPair(ctx, userA, userB)
	if err != nil {
		return false, err
	}
	return req != nil && req.Status == domain.ConnectionConfirmed, nil
}

func (s *ConnectionService) resolveTarget(ctx context.Context, targetRef string) (*domain.User, string, error) {
	if id, err := uuid.Parse(targetRef); err == nil {
		target, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if target == nil {
			return nil, "", ErrInviteeNotFound
		}
		return target, "", nil
	}

	email := strings.ToLower(strings.TrimSpace(targetRef))
	target, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	// Unknown email is fine: the invite waits for them to sign up.
	return target, email, nil
}

// checkNoActivePair enforces "at most one non-terminal request per pair".
// A stored pending row that is past its expiry no longer blocks: it gets
// persisted as expired first so the partial unique index frees the slot.
func (s *ConnectionService) checkNoActivePair(ctx context.Context, userA, userB uuid.UUID, now time.Time) error {
	existing, err := s.connRepo.GetActiveByPair(ctx, userA, userB)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if existing.EffectiveStatus(now) == domain.ConnectionExpired {
		if _, err := s.connRepo.UpdateStatus(ctx, existing.ID, domain.ConnectionPending, domain.ConnectionExpired, nil, nil); err != nil {
			return err
		}
		return nil
	}
	return ErrDuplicateRelationship
}
