package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/service"
	"github.com/dkrstic/peerlink/internal/telephony"
)

// TelephonyHandler receives call-progress callbacks from the telephony
// provider. It authenticates with the shared provider key rather than a
// user JWT, so it lives outside the auth middleware.
type TelephonyHandler struct {
	monitor *service.CallMonitor
	apiKey  string
	logger  *zap.Logger
}

func NewTelephonyHandler(monitor *service.CallMonitor, apiKey string, logger *zap.Logger) *TelephonyHandler {
	return &TelephonyHandler{monitor: monitor, apiKey: apiKey, logger: logger}
}

func (h *TelephonyHandler) Events(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid provider credentials")
		return
	}

	var event telephony.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	var err error
	switch event.Kind {
	case "connected":
		_, err = h.monitor.HandleConnected(r.Context(), event.SessionID)
	case "ended":
		reason := event.Reason
		if reason == "" {
			reason = "hangup"
		}
		_, err = h.monitor.HandleEnded(r.Context(), event.SessionID, reason)
	default:
		writeError(w, http.StatusBadRequest, "INVALID_EVENT", "Unknown event kind")
		return
	}

	if err != nil {
		// The provider retries on 5xx. A session that already moved past
		// the expected state gets a 200 so retries stop.
		if errors.Is(err, service.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Session not found")
			return
		}
		if errors.Is(err, service.ErrSessionNotActive) {
			h.logger.Debug("stale telephony event ignored",
				zap.String("session_id", event.SessionID.String()),
				zap.String("kind", event.Kind))
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		h.logger.Error("telephony event failed", zap.Error(err),
			zap.String("session_id", event.SessionID.String()))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TelephonyHandler) authorized(r *http.Request) bool {
	if h.apiKey == "" {
		return false
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) == 1
}
