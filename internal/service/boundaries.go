package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dkrstic/peerlink/internal/domain"
)

// Dispatcher is the notification boundary. Dispatch is fire-and-forget:
// the bool reports only whether the message was accepted for delivery,
// actual delivery failures are logged by the implementation.
type Dispatcher interface {
	SendConnectionInvite(to, requesterName, inviteToken string) bool
	SendSurveyLink(to, doctorName, occasion, surveyID string) bool
	SendSessionReminder(to, otherName, when, joinRef string) bool
}

// MeetingCreator is the conferencing backend boundary.
type MeetingCreator interface {
	CreateMeeting(ctx context.Context, title string, start time.Time, durationMinutes int, attendees []string) (string, error)
}

// Dialer is the telephony boundary. The provider reports call progress
// asynchronously through the telephony webhook.
type Dialer interface {
	Dial(ctx context.Context, sessionID, fromParty, toParty uuid.UUID) (string, error)
}

// CallStateStore mirrors transient call state for fast busy/presence reads.
type CallStateStore interface {
	MarkActive(ctx context.Context, sessionID, partyA, partyB uuid.UUID) error
	Clear(ctx context.Context, partyA, partyB uuid.UUID) error
}

// Notifier pushes real-time events to connected clients.
type Notifier interface {
	NotifyConnectionInvite(targetID uuid.UUID, req *domain.ConnectionRequest)
	NotifyConnectionAccepted(requesterID uuid.UUID, req *domain.ConnectionRequest)
	NotifySurveyAssigned(patientID uuid.UUID, sr *domain.SurveyRequest)
	NotifyCallIncoming(calleeID uuid.UUID, sess *domain.CallSession)
	NotifyCallConnected(sess *domain.CallSession)
	NotifyCallEnded(sess *domain.CallSession)
}
