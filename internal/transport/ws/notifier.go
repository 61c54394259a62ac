package ws

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHubNotifier(hub *Hub, logger *zap.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) NotifyConnectionInvite(targetID uuid.UUID, req *domain.ConnectionRequest) {
	n.send(targetID, EventTypeConnectionInvite, ConnectionPayload{ConnectionRequest: *req})
}

func (n *HubNotifier) NotifyConnectionAccepted(requesterID uuid.UUID, req *domain.ConnectionRequest) {
	n.send(requesterID, EventTypeConnectionAccepted, ConnectionPayload{ConnectionRequest: *req})
}

func (n *HubNotifier) NotifySurveyAssigned(patientID uuid.UUID, sr *domain.SurveyRequest) {
	n.send(patientID, EventTypeSurveyAssigned, SurveyPayload{SurveyRequest: *sr})
}

func (n *HubNotifier) NotifyCallIncoming(calleeID uuid.UUID, sess *domain.CallSession) {
	n.send(calleeID, EventTypeCallIncoming, CallPayload{CallSession: *sess})
}

func (n *HubNotifier) NotifyCallConnected(sess *domain.CallSession) {
	n.send(sess.PartyAID, EventTypeCallConnected, CallPayload{CallSession: *sess})
	n.send(sess.PartyBID, EventTypeCallConnected, CallPayload{CallSession: *sess})
}

func (n *HubNotifier) NotifyCallEnded(sess *domain.CallSession) {
	n.send(sess.PartyAID, EventTypeCallEnded, CallPayload{CallSession: *sess})
	n.send(sess.PartyBID, EventTypeCallEnded, CallPayload{CallSession: *sess})
}

func (n *HubNotifier) send(userID uuid.UUID, eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		n.logger.Warn("ws notifier marshal error", zap.Error(err))
		return
	}
	n.hub.SendToUser(userID, evt)
}
