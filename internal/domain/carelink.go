package domain

import (
	"time"

	"github.com/google/uuid"
)

// CareLink is a confirmed doctor-patient relationship, created when a
// patient resolves the doctor's link token (QR code or URL).
type CareLink struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	LinkedAt  time.Time `json:"linked_at"`
	// Joined fields
	DoctorName  string `json:"doctor_name,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// DoctorLinkToken is the shareable credential a doctor hands out to
// patients. Resolving it creates the CareLink.
type DoctorLinkToken struct {
	Token     string    `json:"token"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
