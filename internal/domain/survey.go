package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	OccasionPreop  = "preop"
	OccasionPostop = "postop"
	OccasionOther  = "other"
)

const (
	SurveyPending   = "pending"
	SurveySent      = "sent"
	SurveyCompleted = "completed"
)

// SurveyRequest is one outcome-survey assignment tied to a care link and a
// clinical occasion.
type SurveyRequest struct {
	ID           uuid.UUID         `json:"id"`
	PatientID    uuid.UUID         `json:"patient_id"`
	DoctorID     uuid.UUID         `json:"doctor_id"`
	Occasion     string            `json:"occasion"`
	Status       string            `json:"status"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	ResponseData map[string]string `json:"response_data,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	// Joined fields
	PatientName string `json:"patient_name,omitempty"`
}

// SurveyOccasionStats is the per-occasion slice of a doctor's analytics.
type SurveyOccasionStats struct {
	Occasion       string  `json:"occasion"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completion_rate"`
	// Mean of completedAt-sentAt over completed records, in seconds.
	AvgCompletionSeconds float64 `json:"avg_completion_seconds"`
}

type SurveyAnalytics struct {
	DoctorID  uuid.UUID             `json:"doctor_id"`
	Occasions []SurveyOccasionStats `json:"occasions"`
}
