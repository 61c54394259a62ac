package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/domain"
	"github.com/dkrstic/peerlink/internal/repository"
	"github.com/dkrstic/peerlink/internal/service"
)

const (
	sweepInterval = 1 * time.Minute
	// connectTimeout bounds how long a session may sit in connecting when
	// the provider never calls back.
	connectTimeout = 2 * time.Minute
	reminderWindow = 15 * time.Minute
)

// Scheduler is the background sweep loop: it persists expiry on overdue
// invites, times out connecting sessions the provider abandoned, and
// mails reminders before scheduled calls.
type Scheduler struct {
	connRepo    repository.ConnectionRepository
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	monitor     *service.CallMonitor
	dispatcher  service.Dispatcher
	logger      *zap.Logger

	remindedSessions map[uuid.UUID]struct{}
}

func New(connRepo repository.ConnectionRepository, sessionRepo repository.SessionRepository, userRepo repository.UserRepository, monitor *service.CallMonitor, dispatcher service.Dispatcher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		connRepo:         connRepo,
		sessionRepo:      sessionRepo,
		userRepo:         userRepo,
		monitor:          monitor,
		dispatcher:       dispatcher,
		logger:           logger,
		remindedSessions: make(map[uuid.UUID]struct{}),
	}
}

// Run ticks until ctx is cancelled. Call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", sweepInterval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpiredInvites(ctx)
			s.sweepStaleConnecting(ctx)
			s.sendSessionReminders(ctx)
		}
	}
}

func (s *Scheduler) sweepExpiredInvites(ctx context.Context) {
	n, err := s.connRepo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		s.logger.Warn("expiring overdue invites failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired overdue invites", zap.Int64("count", n))
	}
}

func (s *Scheduler) sweepStaleConnecting(ctx context.Context) {
	stale, err := s.sessionRepo.ListStaleConnecting(ctx, time.Now().Add(-connectTimeout))
	if err != nil {
		s.logger.Warn("listing stale connecting sessions failed", zap.Error(err))
		return
	}
	for _, sess := range stale {
		if _, err := s.monitor.HandleEnded(ctx, sess.ID, domain.EndReasonTimeout); err != nil {
			s.logger.Warn("timing out connecting session failed",
				zap.String("session_id", sess.ID.String()), zap.Error(err))
		}
	}
}

func (s *Scheduler) sendSessionReminders(ctx context.Context) {
	now := time.Now()
	upcoming, err := s.sessionRepo.ListUpcoming(ctx, now, now.Add(reminderWindow))
	if err != nil {
		s.logger.Warn("listing upcoming sessions failed", zap.Error(err))
		return
	}

	for _, sess := range upcoming {
		if _, done := s.remindedSessions[sess.ID]; done {
			continue
		}

		partyA, err := s.userRepo.GetByID(ctx, sess.PartyAID)
		if err != nil || partyA == nil {
			continue
		}
		partyB, err := s.userRepo.GetByID(ctx, sess.PartyBID)
		if err != nil || partyB == nil {
			continue
		}

		when := sess.ScheduledAt.Format("15:04 MST")
		ref := ""
		if sess.ConferencingRef != nil {
			ref = *sess.ConferencingRef
		}
		s.dispatcher.SendSessionReminder(partyA.Email, partyB.DisplayName, when, ref)
		s.dispatcher.SendSessionReminder(partyB.Email, partyA.DisplayName, when, ref)

		s.remindedSessions[sess.ID] = struct{}{}
	}
}
