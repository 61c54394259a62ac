package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/service"
	"github.com/dkrstic/peerlink/internal/transport/http/middleware"
)

type SessionHandler struct {
	sessionService *service.SessionService
	monitor        *service.CallMonitor
	logger         *zap.Logger
}

func NewSessionHandler(sessionService *service.SessionService, monitor *service.CallMonitor, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, monitor: monitor, logger: logger}
}

type scheduleSessionInput struct {
	TargetID        uuid.UUID `json:"target_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (h *SessionHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input scheduleSessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.sessionService.Schedule(r.Context(), userID, input.TargetID, input.ScheduledAt, input.DurationMinutes)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session":  result.Session,
		"degraded": result.Degraded,
	})
}

func (h *SessionHandler) Call(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		CalleeID uuid.UUID `json:"callee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	sess, err := h.sessionService.InitiateImmediate(r.Context(), userID, input.CalleeID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid session ID")
		return
	}

	if err := h.sessionService.Cancel(r.Context(), sessionID, userID); err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid session ID")
		return
	}

	sess, err := h.sessionService.Get(r.Context(), sessionID, userID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessions, err := h.sessionService.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("session list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// End hangs up an in-flight call on behalf of either party.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid session ID")
		return
	}

	sess, err := h.monitor.EndCall(r.Context(), sessionID, userID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

type attachArtifactsInput struct {
	Transcript *string `json:"transcript"`
	Summary    *string `json:"summary"`
}

func (h *SessionHandler) AttachArtifacts(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid session ID")
		return
	}

	var input attachArtifactsInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.Transcript == nil && input.Summary == nil {
		writeError(w, http.StatusBadRequest, "EMPTY_PAYLOAD", "At least one of transcript or summary is required")
		return
	}

	sess, err := h.monitor.AttachArtifacts(r.Context(), sessionID, input.Transcript, input.Summary)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Session not found")
		case errors.Is(err, service.ErrNoArtifactTarget):
			writeError(w, http.StatusConflict, "INVALID_STATE", "Artifacts attach only to live or ended sessions")
		default:
			h.logger.Error("artifact attach failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPartyNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Party not found")
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Session not found")
	case errors.Is(err, service.ErrCannotCallSelf):
		writeError(w, http.StatusBadRequest, "CANNOT_CALL_SELF", "Cannot start a session with yourself")
	case errors.Is(err, service.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "Scheduled time must be in the future")
	case errors.Is(err, service.ErrNotConnected):
		writeError(w, http.StatusConflict, "NOT_CONNECTED", "No confirmed connection exists between the parties")
	case errors.Is(err, service.ErrPartyBusy):
		writeError(w, http.StatusConflict, "PARTY_BUSY", "A party already has an active call")
	case errors.Is(err, service.ErrNotSessionParty):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only a session party can perform this action")
	case errors.Is(err, service.ErrSessionNotScheduled):
		writeError(w, http.StatusConflict, "INVALID_STATE", "This action is no longer available")
	case errors.Is(err, service.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "INVALID_STATE", "This action is no longer available")
	default:
		h.logger.Error("session request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
