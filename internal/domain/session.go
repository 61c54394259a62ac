package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionScheduled  = "scheduled"
	SessionConnecting = "connecting"
	SessionLive       = "live"
	SessionEnded      = "ended"
	SessionCancelled  = "cancelled"
)

// End reasons recorded when a session transitions to ended.
const (
	EndReasonHangup     = "hangup"
	EndReasonDialFailed = "dial_failed"
	EndReasonTimeout    = "timeout"
	EndReasonDeclined   = "declined"
)

// CallSession is one call between two linked parties, either scheduled for
// a future time (ScheduledAt set) or ad-hoc (ScheduledAt nil).
type CallSession struct {
	ID              uuid.UUID  `json:"id"`
	PartyAID        uuid.UUID  `json:"party_a_id"`
	PartyBID        uuid.UUID  `json:"party_b_id"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	ConferencingRef *string    `json:"conferencing_ref,omitempty"`
	Status          string     `json:"status"`
	EndReason       *string    `json:"end_reason,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Transcript      *string    `json:"transcript,omitempty"`
	Summary         *string    `json:"summary,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Active reports whether the session occupies a party's single
// connecting/live slot.
func (s *CallSession) Active() bool {
	return s.Status == SessionConnecting || s.Status == SessionLive
}

// Involves reports whether userID is either party.
func (s *CallSession) Involves(userID uuid.UUID) bool {
	return s.PartyAID == userID || s.PartyBID == userID
}

// OtherParty returns the counterpart of userID.
func (s *CallSession) OtherParty(userID uuid.UUID) uuid.UUID {
	if s.PartyAID == userID {
		return s.PartyBID
	}
	return s.PartyAID
}
