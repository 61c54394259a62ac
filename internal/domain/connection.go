package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConnectionPending   = "pending"
	ConnectionConfirmed = "confirmed"
	ConnectionDeclined  = "declined"
	ConnectionExpired   = "expired"
)

// ConnectionRequest is a directed patient-to-patient relationship proposal.
// Target is either a known user or, until the invitee signs up, just an
// email address bound to the invite token.
type ConnectionRequest struct {
	ID          uuid.UUID  `json:"id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	TargetID    *uuid.UUID `json:"target_id,omitempty"`
	TargetEmail *string    `json:"target_email,omitempty"`
	Status      string     `json:"status"`
	InviteToken string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	// Joined fields
	RequesterName string `json:"requester_name,omitempty"`
	TargetName    string `json:"target_name,omitempty"`
}

// Terminal reports whether the request can no longer change state.
func (c *ConnectionRequest) Terminal() bool {
	return c.Status == ConnectionDeclined || c.Status == ConnectionExpired
}

// EffectiveStatus derives expiry for display without requiring the stored
// row to have been swept yet.
func (c *ConnectionRequest) EffectiveStatus(now time.Time) string {
	if c.Status == ConnectionPending && now.After(c.ExpiresAt) {
		return ConnectionExpired
	}
	return c.Status
}

// Involves reports whether userID is either side of the request.
func (c *ConnectionRequest) Involves(userID uuid.UUID) bool {
	if c.RequesterID == userID {
		return true
	}
	return c.TargetID != nil && *c.TargetID == userID
}
