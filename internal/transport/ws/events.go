package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dkrstic/peerlink/internal/domain"
)

// Event types - Client → Server
const (
	EventTypePing = "ping"
)

// Event types - Server → Client
const (
	EventTypeConnectionInvite   = "connection.invite"
	EventTypeConnectionAccepted = "connection.accepted"
	EventTypeSurveyAssigned     = "survey.assigned"
	EventTypeCallIncoming       = "call.incoming"
	EventTypeCallConnected      = "call.connected"
	EventTypeCallEnded          = "call.ended"
	EventTypePresence           = "presence"
	EventTypePong               = "pong"
	EventTypeError              = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Server → Client payloads ---

type ConnectionPayload struct {
	domain.ConnectionRequest
}

type SurveyPayload struct {
	domain.SurveyRequest
}

type CallPayload struct {
	domain.CallSession
}

type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"` // "online" | "offline"
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
