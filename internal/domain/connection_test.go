package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Now()
	req := &ConnectionRequest{Status: ConnectionPending, ExpiresAt: now.Add(time.Hour)}

	assert.Equal(t, ConnectionPending, req.EffectiveStatus(now))
	assert.Equal(t, ConnectionExpired, req.EffectiveStatus(now.Add(2*time.Hour)))

	// Only pending derives expiry; terminal and confirmed states stick.
	req.Status = ConnectionConfirmed
	assert.Equal(t, ConnectionConfirmed, req.EffectiveStatus(now.Add(2*time.Hour)))
	req.Status = ConnectionDeclined
	assert.Equal(t, ConnectionDeclined, req.EffectiveStatus(now.Add(2*time.Hour)))
}

func TestConnectionInvolves(t *testing.T) {
	requester := uuid.New()
	target := uuid.New()
	req := &ConnectionRequest{RequesterID: requester, TargetID: &target}

	assert.True(t, req.Involves(requester))
	assert.True(t, req.Involves(target))
	assert.False(t, req.Involves(uuid.New()))

	// Email-only invites have no target side yet.
	req.TargetID = nil
	assert.False(t, req.Involves(target))
}

func TestSessionOtherParty(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	sess := &CallSession{PartyAID: a, PartyBID: b}

	assert.Equal(t, b, sess.OtherParty(a))
	assert.Equal(t, a, sess.OtherParty(b))

	assert.True(t, (&CallSession{Status: SessionConnecting}).Active())
	assert.True(t, (&CallSession{Status: SessionLive}).Active())
	assert.False(t, (&CallSession{Status: SessionEnded}).Active())
	assert.False(t, (&CallSession{Status: SessionScheduled}).Active())
}
