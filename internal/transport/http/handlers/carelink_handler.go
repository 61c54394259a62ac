package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dkrstic/peerlink/internal/service"
	"github.com/dkrstic/peerlink/internal/transport/http/middleware"
)

type CareLinkHandler struct {
	linkService *service.CareLinkService
	logger      *zap.Logger
}

func NewCareLinkHandler(linkService *service.CareLinkService, logger *zap.Logger) *CareLinkHandler {
	return &CareLinkHandler{linkService: linkService, logger: logger}
}

func (h *CareLinkHandler) MintToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	token, err := h.linkService.MintLinkToken(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNotDoctor) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only doctors can mint link tokens")
		} else {
			h.logger.Error("mint link token failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

func (h *CareLinkHandler) ResolveToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.Token == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TOKEN", "Token is required")
		return
	}

	link, err := h.linkService.ResolveLinkToken(r.Context(), input.Token, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotPatient):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only patients can resolve link tokens")
		case errors.Is(err, service.ErrLinkTokenNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Link token not found")
		case errors.Is(err, service.ErrLinkTokenExpired):
			writeError(w, http.StatusGone, "EXPIRED", "This link has expired; ask your doctor for a new one")
		default:
			h.logger.Error("resolve link token failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, link)
}

func (h *CareLinkHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	links, err := h.linkService.ListLinkedPatients(r.Context(), userID)
	if err != nil {
		h.logger.Error("list linked patients failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, links)
}

func (h *CareLinkHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	links, err := h.linkService.ListLinkedDoctors(r.Context(), userID)
	if err != nil {
		h.logger.Error("list linked doctors failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, links)
}
