package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/domain"
)

type sessionFixture struct {
	svc       *SessionService
	monitor   *CallMonitor
	users     *memUserRepo
	conns     *memConnRepo
	sessions  *memSessionRepo
	meetings  *fakeMeetings
	dialer    *fakeDialer
	callState *fakeCallState
	notifier  *fakeNotifier
}

func newSessionFixture() *sessionFixture {
	users := newMemUserRepo()
	conns := newMemConnRepo()
	sessions := newMemSessionRepo()
	meetings := &fakeMeetings{ref: "https://meet.example.com/room-1"}
	dialer := &fakeDialer{}
	callState := newFakeCallState()
	notifier := &fakeNotifier{}
	logger := zap.NewNop()

	monitor := NewCallMonitor(sessions, callState, notifier, logger)
	svc := NewSessionService(sessions, conns, users, meetings, dialer, callState, monitor, notifier, logger)

	return &sessionFixture{
		svc: svc, monitor: monitor,
		users: users, conns: conns, sessions: sessions,
		meetings: meetings, dialer: dialer, callState: callState, notifier: notifier,
	}
}

func (f *sessionFixture) connectedPatients(t *testing.T) (*domain.User, *domain.User) {
	t.Helper()
	ana := f.users.add("ana@example.com", "Ana", domain.RolePatient)
	marko := f.users.add("marko@example.com", "Marko", domain.RolePatient)
	targetID := marko.ID
	require.NoError(t, f.conns.Create(context.Background(), &domain.ConnectionRequest{
		ID:          uuid.New(),
		RequesterID: ana.ID,
		TargetID:    &targetID,
		Status:      domain.ConnectionConfirmed,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
	return ana, marko
}

func TestSessionSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("books a session for a connected patient pair", func(t *testing.T) {
		f := newSessionFixture()
		ana, marko := f.connectedPatients(t)
		at := time.Now().Add(48 * time.Hour)

		result, err := f.svc.Schedule(ctx, ana.ID, marko.ID, at, 45)
		require.NoError(t, err)
		assert.False(t, result.Degraded)
		assert.Equal(t, domain.SessionScheduled, result.Session.Status)
		assert.Equal(t, 45, result.Session.DurationMinutes)
		require.NotNil(t, result.Session.ConferencingRef)
		assert.Equal(t, "https://meet.example.com/room-1", *result.Session.ConferencingRef)

		// The booking is recorded on the relationship too.
		conn, err := f.conns.GetActiveByPair(ctx, ana.ID, marko.ID)
		require.NoError(t, err)
		require.NotNil(t, conn.ScheduledAt)
		assert.WithinDuration(t, at, *conn.ScheduledAt, time.Second)
	})

	t.Run("pending connection is not enough", func(t *testing.T) {
		f := newSessionFixture()
		ana := f.users.add("ana@example.com", "Ana", domain.RolePatient)
		marko := f.users.add("marko@example.com", "Marko", domain.RolePatient)
		targetID := marko.ID
		require.NoError(t, f.conns.Create(ctx, &domain.ConnectionRequest{
			ID:          uuid.New(),
			RequesterID: ana.ID,
			TargetID:    &targetID,
			Status:      domain.ConnectionPending,
			ExpiresAt:   time.Now().Add(time.Hour),
		}))

		_, err := f.svc.Schedule(ctx, ana.ID, marko.ID, time.Now().Add(time.Hour), 30)
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("doctor pair needs no connection", func(t *testing.T) {
		f := newSessionFixture()
		novak := f.users.add("dr.novak@example.com", "Dr Novak", domain.RoleDoctor)
		horvat := f.users.add("dr.horvat@example.com", "Dr Horvat", domain.RoleDoctor)

		result, err := f.svc.Schedule(ctx, novak.ID, horvat.ID, time.Now().Add(time.Hour), 0)
		require.NoError(t, err)
		// Duration defaults when the caller leaves it out.
		assert.Equal(t, 30, result.Session.DurationMinutes)
	})

	t.Run("rejects past times and self calls", func(t *testing.T) {
		f := newSessionFixture()
		ana, marko := f.connectedPatients(t)

		_, err := f.svc.Schedule(ctx, ana.ID, marko.ID, time.Now().Add(-time.Hour), 30)
		assert.ErrorIs(t, err, ErrInvalidTime)

		_, err = f.svc.Schedule(ctx, ana.ID, ana.ID, time.Now().Add(time.Hour), 30)
		assert.ErrorIs(t, err, ErrCannotCallSelf)
	})

	t.Run("conferencing failure degrades instead of failing", func(t *testing.T) {
		f := newSessionFixture()
		f.meetings.fail = true
		ana, marko := f.connectedPatients(t)

		result, err := f.svc.Schedule(ctx, ana.ID, marko.ID, time.Now().Add(time.Hour), 30)
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Nil(t, result.Session.ConferencingRef)

		stored, err := f.sessions.GetByID(ctx, result.Session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionScheduled, stored.Status)
	})
}

func TestSessionInitiateImmediate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a connecting session and dials out", func(t *testing.T) {
		f := newSessionFixture()
		ana, marko := f.connectedPatients(t)

		sess, err := f.svc.InitiateImmediate(ctx, ana.ID, marko.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionConnecting, sess.Status)
		assert.True(t, f.callState.has(ana.ID))
		assert.Equal(t, 1, f.notifier.incoming)

		require.Eventually(t, func() bool {
			return f.dialer.dialCount() == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("busy party is rejected", func(t *testing.T) {
		f := newSessionFixture()
		ana, marko := f.connectedPatients(t)

		_, err := f.svc.InitiateImmediate(ctx, ana.ID, marko.ID)
		require.NoError(t, err)

		_, err = f.svc.InitiateImmediate(ctx, marko.ID, ana.ID)
		assert.ErrorIs(t, err, ErrPartyBusy)
	})

	t.Run("dial failure lands as ended with dial_failed", func(t *testing.T) {
		f := newSessionFixture()
		f.dialer.fail = true
		ana, marko := f.connectedPatients(t)

		sess, err := f.svc.InitiateImmediate(ctx, ana.ID, marko.ID)
		require.NoError(t, err)

		// The call-state slot is cleared last, so it doubles as the
		// "transition finished" signal.
		require.Eventually(t, func() bool {
			return !f.callState.has(ana.ID)
		}, time.Second, 10*time.Millisecond)

		stored, err := f.sessions.GetByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionEnded, stored.Status)
		require.NotNil(t, stored.EndReason)
		assert.Equal(t, domain.EndReasonDialFailed, *stored.EndReason)
		assert.Nil(t, stored.StartedAt)
	})

	t.Run("unconnected patients cannot call", func(t *testing.T) {
		f := newSessionFixture()
		ana := f.users.add("ana@example.com", "Ana", domain.RolePatient)
		marko := f.users.add("marko@example.com", "Marko", domain.RolePatient)

		_, err := f.svc.InitiateImmediate(ctx, ana.ID, marko.ID)
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestSessionCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("either party cancels while scheduled", func(t *testing.T) {
		f := newSessionFixture()
		ana, marko := f.connectedPatients(t)

		result, err := f.svc.Schedule(ctx, ana.ID, marko.ID, time.Now().Add(time.Hour), 30)
		require.NoError(t, err)

		require.NoError(t, f.svc.Cancel(ctx, result.Session.ID, marko.ID))

		stored, err := f.sessions.GetByID(ctx, result.Session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionCancelled, stored.Status)
	})

	t.Run("outsiders cannot cancel", func(t *testing.T) {
		f := newSessionFixture()
		ana, marko := f.connectedPatients(t)
		iva := f.users.add("iva@example.com", "Iva", domain.RolePatient)

		result, err := f.svc.Schedule(ctx, ana.ID, marko.ID, time.Now().Add(time.Hour), 30)
		require.NoError(t, err)

		err = f.svc.Cancel(ctx, result.Session.ID, iva.ID)
		assert.ErrorIs(t, err, ErrNotSessionParty)
	})

	t.Run("connecting sessions cannot be cancelled", func(t *testing.T) {
		f := newSessionFixture()
		ana, marko := f.connectedPatients(t)

		sess, err := f.svc.InitiateImmediate(ctx, ana.ID, marko.ID)
		require.NoError(t, err)

		err = f.svc.Cancel(ctx, sess.ID, ana.ID)
		assert.ErrorIs(t, err, ErrSessionNotScheduled)
	})
}

func TestSessionGetAndList(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture()
	ana, marko := f.connectedPatients(t)
	iva := f.users.add("iva@example.com", "Iva", domain.RolePatient)

	result, err := f.svc.Schedule(ctx, ana.ID, marko.ID, time.Now().Add(time.Hour), 30)
	require.NoError(t, err)

	sess, err := f.svc.Get(ctx, result.Session.ID, marko.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Session.ID, sess.ID)

	_, err = f.svc.Get(ctx, result.Session.ID, iva.ID)
	assert.ErrorIs(t, err, ErrNotSessionParty)

	_, err = f.svc.Get(ctx, uuid.New(), ana.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sessions, err := f.svc.ListByUser(ctx, ana.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	none, err := f.svc.ListByUser(ctx, iva.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
