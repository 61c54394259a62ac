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

type SurveyHandler struct {
	surveyService *service.SurveyService
	logger        *zap.Logger
}

func NewSurveyHandler(surveyService *service.SurveyService, logger *zap.Logger) *SurveyHandler {
	return &SurveyHandler{surveyService: surveyService, logger: logger}
}

type sendSurveyInput struct {
	PatientID uuid.UUID `json:"patient_id"`
	Occasion  string    `json:"occasion"`
}

func (h *SurveyHandler) Send(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetUserID(r.Context())

	var input sendSurveyInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	sr, err := h.surveyService.Send(r.Context(), doctorID, input.PatientID, input.Occasion)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOccasion):
			writeError(w, http.StatusBadRequest, "INVALID_OCCASION", "Occasion must be preop, postop or other")
		case errors.Is(err, service.ErrNotLinked):
			writeError(w, http.StatusConflict, "NOT_LINKED", "No care link exists with this patient")
		case errors.Is(err, service.ErrSurveyAlreadyActive):
			writeError(w, http.StatusConflict, "ALREADY_ACTIVE", "An active survey already exists; use resend")
		default:
			h.logger.Error("survey send failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, sr)
}

func (h *SurveyHandler) Resend(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetUserID(r.Context())

	var input sendSurveyInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	sr, err := h.surveyService.Resend(r.Context(), doctorID, input.PatientID, input.Occasion)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSurveyNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No active survey for this patient and occasion")
		case errors.Is(err, service.ErrNotSurveyOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the assigning doctor can resend")
		default:
			h.logger.Error("survey resend failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, sr)
}

// Complete is the survey-intake boundary: the external form posts the
// response payload here when the patient submits.
func (h *SurveyHandler) Complete(w http.ResponseWriter, r *http.Request) {
	surveyID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid survey ID")
		return
	}

	var input struct {
		ResponseData map[string]string `json:"response_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	sr, err := h.surveyService.RecordCompletion(r.Context(), surveyID, input.ResponseData)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSurveyNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Survey not found")
		case errors.Is(err, service.ErrSurveyAlreadyCompleted):
			writeError(w, http.StatusConflict, "INVALID_STATE", "This survey was already completed")
		default:
			h.logger.Error("survey completion failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, sr)
}

func (h *SurveyHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	doctorID := middleware.GetUserID(r.Context())

	stats, err := h.surveyService.Analytics(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("survey analytics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *SurveyHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetRole(r.Context())

	var (
		surveys any
		err     error
	)
	if role == "doctor" {
		surveys, err = h.surveyService.ListByDoctor(r.Context(), userID)
	} else {
		surveys, err = h.surveyService.ListByPatient(r.Context(), userID)
	}
	if err != nil {
		h.logger.Error("survey list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, surveys)
}
