package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Specialties offered by the hospital.
const (
	SpecialtyGeneralMedicine = "General Medicine"
	SpecialtyOrthopedics     = "Orthopedics"
	SpecialtyCardiology      = "Cardiology"
	SpecialtyNeurology       = "Neurology"
	SpecialtyPsychiatry      = "Psychiatry"
)

// Claim statuses.
const (
	ClaimStatusPending  = "Pending"
	ClaimStatusApproved = "Approved"
)

// Patient is a registered patient, keyed by phone and e-mail.
type Patient struct {
	ID                int64   `json:"id" db:"id"`
	Name              string  `json:"name" db:"name"`
	Phone             string  `json:"phone" db:"phone"`
	Email             string  `json:"email" db:"email"`
	InsuranceProvider *string `json:"insurance_provider,omitempty" db:"insurance_provider"`
	InsuranceNumber   *string `json:"insurance_number,omitempty" db:"insurance_number"`
}

// HasInsurance reports whether both insurance fields are set.
func (p *Patient) HasInsurance() bool {
	return p.InsuranceProvider != nil && *p.InsuranceProvider != "" &&
		p.InsuranceNumber != nil && *p.InsuranceNumber != ""
}

type Doctor struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Specialty string `json:"specialty" db:"specialty"`
}

// Appointment dates and times are kept as YYYY-MM-DD and HH:MM strings.
type Appointment struct {
	ID            int64  `json:"id" db:"id"`
	PatientID     int64  `json:"patient_id" db:"patient_id"`
	DoctorID      int64  `json:"doctor_id" db:"doctor_id"`
	DoctorName    string `json:"doctor_name,omitempty" db:"doctor_name"`
	Specialty     string `json:"specialty" db:"specialty"`
	PreferredDate string `json:"preferred_date" db:"preferred_date"`
	PreferredTime string `json:"preferred_time" db:"preferred_time"`
}

type InsuranceClaim struct {
	ID                int64           `json:"id" db:"id"`
	PatientID         int64           `json:"patient_id" db:"patient_id"`
	InsuranceProvider string          `json:"insurance_provider" db:"insurance_provider"`
	InsuranceNumber   string          `json:"insurance_number" db:"insurance_number"`
	ClaimAmount       decimal.Decimal `json:"claim_amount" db:"claim_amount"`
	Status            string          `json:"status" db:"status"`
	ClaimDate         time.Time       `json:"claim_date" db:"claim_date"`
}

type Medicine struct {
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	SideEffects string `json:"side_effects" db:"side_effects"`
}

// InjuryReport records one injury-related assistant exchange.
type InjuryReport struct {
	ID         int64     `json:"id,omitempty" db:"id"`
	Timestamp  time.Time `json:"timestamp" db:"created_at"`
	Sender     string    `json:"sender" db:"sender"`
	UserInput  string    `json:"user_input" db:"user_input"`
	AIResponse string    `json:"ai_response" db:"ai_response"`
	HasImage   bool      `json:"has_image" db:"has_image"`
}

// ToolResponse is the body returned by every clinic tool endpoint.
type ToolResponse struct {
	Tool    string      `json:"tool"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
