package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/service"
	"github.com/dkrstic/peerlink/internal/transport/http/middleware"
)

type ConnectionHandler struct {
	connService *service.ConnectionService
	logger      *zap.Logger
}

func NewConnectionHandler(connService *service.ConnectionService, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connService: connService, logger: logger}
}

func (h *ConnectionHandler) Invite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		Target string `json:"target"` // user id or email
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.Target == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TARGET", "Target user id or email is required")
		return
	}

	req, err := h.connService.Invite(r.Context(), userID, input.Target)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCannotInviteSelf):
			writeError(w, http.StatusBadRequest, "CANNOT_INVITE_SELF", "Cannot send an invite to yourself")
		case errors.Is(err, service.ErrInviteeNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrDuplicateRelationship):
			writeError(w, http.StatusConflict, "DUPLICATE_ACTIVE_RELATIONSHIP", "An active relationship already exists for this pair")
		default:
			h.logger.Error("connection invite failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

func (h *ConnectionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := r.PathValue("token")

	req, err := h.connService.Accept(r.Context(), token, userID)
	if err != nil {
		h.writeTokenActionError(w, err, "accept")
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (h *ConnectionHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := r.PathValue("token")

	if err := h.connService.Decline(r.Context(), token, userID); err != nil {
		h.writeTokenActionError(w, err, "decline")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionHandler) Resend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid request ID")
		return
	}

	req, err := h.connService.Resend(r.Context(), requestID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInviteNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Invite not found")
		case errors.Is(err, service.ErrNotRequester):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the requester can resend this invite")
		case errors.Is(err, service.ErrInviteNotPending):
			writeError(w, http.StatusConflict, "INVALID_STATE", "This action is no longer available")
		default:
			h.logger.Error("connection resend failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (h *ConnectionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid request ID")
		return
	}

	if err := h.connService.Cancel(r.Context(), requestID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrInviteNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Invite not found")
		case errors.Is(err, service.ErrNotRequester):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the requester can cancel this invite")
		case errors.Is(err, service.ErrInviteNotPending):
			writeError(w, http.StatusConflict, "INVALID_STATE", "This action is no longer available")
		default:
			h.logger.Error("connection cancel failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	reqs, err := h.connService.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("connection list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, reqs)
}

func (h *ConnectionHandler) writeTokenActionError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, service.ErrInviteNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Invite not found")
	case errors.Is(err, service.ErrInviteExpired):
		writeError(w, http.StatusGone, "EXPIRED", "This invite has expired; ask for a new one")
	case errors.Is(err, service.ErrNotInviteTarget):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the invited user can do this")
	case errors.Is(err, service.ErrInviteNotPending):
		writeError(w, http.StatusConflict, "INVALID_STATE", "This action is no longer available")
	case errors.Is(err, service.ErrDuplicateRelationship):
		writeError(w, http.StatusConflict, "DUPLICATE_ACTIVE_RELATIONSHIP", "An active relationship already exists for this pair")
	default:
		h.logger.Error("connection action failed", zap.String("action", action), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
