package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/telemetry"
	"github.com/irfndi/tanya-ai-go/internal/utils"
)

// Tool names, also used as endpoint suffixes.
const (
	ToolIdentifyPatient     = "identify_patient"
	ToolAssessInjury        = "assess_injury"
	ToolAssessMentalHealth  = "assess_mental_health"
	ToolBookAppointment     = "book_appointment"
	ToolViewAppointments    = "view_appointments"
	ToolUpdateAppointment   = "update_appointment"
	ToolCancelAppointment   = "cancel_appointment"
	ToolCheckInsurance      = "check_insurance"
	ToolSubmitClaim         = "submit_insurance_claim"
	ToolGetMedicineInfo     = "get_medicine_info"
	maxSuggestedDoctors     = 10
	appointmentDateLayout   = "2006-01-02"
	appointmentTimeLayout   = "15:04"
	appointmentFormatReply  = "Please provide date in YYYY-MM-DD format and time in HH:MM format."
	appointmentMissingReply = "Appointment not found. Please check the booking ID."
	patientMissingReply     = "No patient found with this phone number."
)

var (
	indianPhone  = regexp.MustCompile(`^(?:\+91[-\s]?)?[6789]\d{9}$`)
	emailAddress = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// First match wins, so the order matters.
	injurySpecialties = []struct {
		symptom   string
		specialty string
	}{
		{"pain in arm", models.SpecialtyOrthopedics},
		{"leg pain", models.SpecialtyOrthopedics},
		{"back pain", models.SpecialtyOrthopedics},
		{"sports injury", models.SpecialtyOrthopedics},
		{"fracture", models.SpecialtyOrthopedics},
		{"chest pain", models.SpecialtyCardiology},
		{"heart", models.SpecialtyCardiology},
		{"headache", models.SpecialtyNeurology},
		{"seizure", models.SpecialtyNeurology},
		{"fever", models.SpecialtyGeneralMedicine},
		{"cough", models.SpecialtyGeneralMedicine},
		{"fall", models.SpecialtyOrthopedics},
		{"accident", models.SpecialtyOrthopedics},
	}

	mentalHealthKeywords = []string{"anxiety", "depression", "stress", "mood", "sleep"}
)

// ClinicStore is the persistence the clinic tools need.
type ClinicStore interface {
	CreatePatient(ctx context.Context, p *models.Patient) error
	GetPatientByPhone(ctx context.Context, phone string) (*models.Patient, error)
	UpdatePatientInsurance(ctx context.Context, patientID int64, provider, number string) error
	ListDoctorsBySpecialty(ctx context.Context, specialty string, limit int) ([]models.Doctor, error)
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	ListAppointmentsByPhone(ctx context.Context, phone string) ([]models.Appointment, error)
	UpdateAppointment(ctx context.Context, a *models.Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
	CreateClaim(ctx context.Context, c *models.InsuranceClaim) error
	GetMedicine(ctx context.Context, name string) (*models.Medicine, error)
}

// AppointmentNotifier tells staff about new bookings.
type AppointmentNotifier interface {
	NotifyAppointmentBooked(ctx context.Context, patient models.Patient, appt models.Appointment) error
}

type IdentifyPatientRequest struct {
	Name              string `json:"name" binding:"required"`
	Phone             string `json:"phone" binding:"required"`
	Email             string `json:"email" binding:"required"`
	InsuranceProvider string `json:"insurance_provider"`
	InsuranceNumber   string `json:"insurance_number"`
}

type BookAppointmentRequest struct {
	Phone             string `json:"phone" binding:"required"`
	Specialty         string `json:"specialty" binding:"required"`
	PreferredDate     string `json:"preferred_date" binding:"required"`
	PreferredTime     string `json:"preferred_time" binding:"required"`
	InsuranceProvider string `json:"insurance_provider"`
	InsuranceNumber   string `json:"insurance_number"`
}

type UpdateAppointmentRequest struct {
	BookingID    int64  `json:"booking_id" binding:"required"`
	NewDate      string `json:"new_date"`
	NewTime      string `json:"new_time"`
	NewSpecialty string `json:"new_specialty"`
}

type InsuranceClaimRequest struct {
	Phone       string          `json:"phone" binding:"required"`
	ClaimAmount decimal.Decimal `json:"claim_amount"`
}

// ClinicService implements the voice agent's clinic tools. Every method
// returns a ToolResponse whose Message is spoken to the caller; the error is
// reserved for infrastructure failures.
type ClinicService struct {
	store    ClinicStore
	mailer   Mailer
	notifier AppointmentNotifier
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
	now      func() time.Time
}

// NewClinicService builds the service. mailer and notifier may be nil.
func NewClinicService(store ClinicStore, mailer Mailer, notifier AppointmentNotifier, logger *logrus.Logger) *ClinicService {
	return &ClinicService{
		store:    store,
		mailer:   mailer,
		notifier: notifier,
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ClinicService) IdentifyPatient(ctx context.Context, req IdentifyPatientRequest) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolIdentifyPatient)
	defer span.End()

	phone := strings.TrimSpace(req.Phone)
	email := strings.TrimSpace(req.Email)
	if !indianPhone.MatchString(phone) {
		return reply(ToolIdentifyPatient, "Please provide a valid phone number (e.g., +919876543210)."), nil
	}
	if !emailAddress.MatchString(email) {
		return reply(ToolIdentifyPatient, "Please provide a valid email address (e.g., example@domain.com)."), nil
	}

	p := &models.Patient{
		Name:              strings.TrimSpace(req.Name),
		Phone:             phone,
		Email:             email,
		InsuranceProvider: optional(req.InsuranceProvider),
		InsuranceNumber:   optional(req.InsuranceNumber),
	}
	if err := s.store.CreatePatient(ctx, p); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return reply(ToolIdentifyPatient, "This phone number or email is already registered. Please provide unique details."), nil
		}
		return s.fail(span, ToolIdentifyPatient, err)
	}

	s.logger.WithField("patient_id", p.ID).Info("Patient registered")
	resp := reply(ToolIdentifyPatient, fmt.Sprintf("Thank you, %s. I've registered your details.", p.Name))
	resp.Data = p
	return resp, nil
}

func (s *ClinicService) AssessInjury(ctx context.Context, symptoms string) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolAssessInjury)
	defer span.End()

	specialty := models.SpecialtyGeneralMedicine
	lower := strings.ToLower(symptoms)
	for _, m := range injurySpecialties {
		if strings.Contains(lower, m.symptom) {
			specialty = m.specialty
			break
		}
	}
	return s.recommend(ctx, span, ToolAssessInjury, symptoms, specialty)
}

func (s *ClinicService) AssessMentalHealth(ctx context.Context, symptoms string) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolAssessMentalHealth)
	defer span.End()

	specialty := models.SpecialtyGeneralMedicine
	lower := strings.ToLower(symptoms)
	for _, kw := range mentalHealthKeywords {
		if strings.Contains(lower, kw) {
			specialty = models.SpecialtyPsychiatry
			break
		}
	}
	return s.recommend(ctx, span, ToolAssessMentalHealth, symptoms, specialty)
}

func (s *ClinicService) recommend(ctx context.Context, span trace.Span, tool, symptoms, specialty string) (models.ToolResponse, error) {
	doctors, err := s.store.ListDoctorsBySpecialty(ctx, specialty, maxSuggestedDoctors)
	if err != nil {
		return s.fail(span, tool, err)
	}

	list := "No doctors available."
	if len(doctors) > 0 {
		names := make([]string, len(doctors))
		for i, d := range doctors {
			names[i] = d.Name
		}
		list = strings.Join(names, ", ")
	}

	resp := reply(tool, fmt.Sprintf(
		"Based on your symptoms ('%s'), I recommend seeing a %s specialist. Available doctors: %s. Would you like to book an appointment?",
		symptoms, specialty, list))
	resp.Data = recommendation{Specialty: specialty, Doctors: doctors}
	return resp, nil
}

func (s *ClinicService) BookAppointment(ctx context.Context, req BookAppointmentRequest) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolBookAppointment)
	defer span.End()

	patient, err := s.store.GetPatientByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return reply(ToolBookAppointment, "Please identify yourself first using name, phone, and email."), nil
		}
		return s.fail(span, ToolBookAppointment, err)
	}

	if !validSlot(req.PreferredDate, req.PreferredTime) {
		return reply(ToolBookAppointment, appointmentFormatReply), nil
	}

	specialty := normalizeSpecialty(req.Specialty)
	doctor, ok, err := s.firstDoctor(ctx, specialty)
	if err != nil {
		return s.fail(span, ToolBookAppointment, err)
	}
	if !ok {
		return reply(ToolBookAppointment, unavailableSpecialty(specialty)), nil
	}

	if req.InsuranceProvider != "" && req.InsuranceNumber != "" {
		if err := s.store.UpdatePatientInsurance(ctx, patient.ID, req.InsuranceProvider, req.InsuranceNumber); err != nil {
			return s.fail(span, ToolBookAppointment, err)
		}
		patient.InsuranceProvider = optional(req.InsuranceProvider)
		patient.InsuranceNumber = optional(req.InsuranceNumber)
	}

	appt := &models.Appointment{
		PatientID:     patient.ID,
		DoctorID:      doctor.ID,
		DoctorName:    doctor.Name,
		Specialty:     specialty,
		PreferredDate: req.PreferredDate,
		PreferredTime: req.PreferredTime,
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return s.fail(span, ToolBookAppointment, err)
	}

	confirmed := fmt.Sprintf("Great! Your appointment (#%d) has been confirmed for %s at %s with %s (%s).",
		appt.ID, appt.PreferredDate, appt.PreferredTime, doctor.Name, specialty)
	msg := confirmed + " You'll receive a confirmation email."
	if !s.sendConfirmation(ctx, *patient, *appt) {
		msg = confirmed + " However, there was an issue sending the confirmation email. " +
			"Please check your email later or contact us if you don’t receive it."
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyAppointmentBooked(ctx, *patient, *appt); err != nil {
			s.logger.WithError(err).Warn("Failed to notify staff about booking")
		}
	}

	s.logger.WithFields(logrus.Fields{"appointment_id": appt.ID, "specialty": specialty}).Info("Appointment booked")
	resp := reply(ToolBookAppointment, msg)
	resp.Data = appt
	return resp, nil
}

func (s *ClinicService) sendConfirmation(ctx context.Context, patient models.Patient, appt models.Appointment) bool {
	if s.mailer == nil {
		return false
	}
	if err := s.mailer.SendAppointmentConfirmation(ctx, patient, appt); err != nil {
		s.logger.WithError(err).WithField("appointment_id", appt.ID).Error("Failed to send confirmation email")
		return false
	}
	return true
}

func (s *ClinicService) ViewAppointments(ctx context.Context, phone string) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolViewAppointments)
	defer span.End()

	appts, err := s.store.ListAppointmentsByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return s.fail(span, ToolViewAppointments, err)
	}
	if len(appts) == 0 {
		return reply(ToolViewAppointments, "You have no upcoming appointments."), nil
	}

	lines := make([]string, len(appts))
	for i, a := range appts {
		lines[i] = fmt.Sprintf("- Appointment #%d with %s (%s) on %s at %s",
			a.ID, a.DoctorName, a.Specialty, a.PreferredDate, a.PreferredTime)
	}
	resp := reply(ToolViewAppointments, "You have the following upcoming appointments:\n"+strings.Join(lines, "\n"))
	resp.Data = appts
	return resp, nil
}

// UpdateAppointment changes any of date, time and specialty; empty fields
// keep their current value.
func (s *ClinicService) UpdateAppointment(ctx context.Context, req UpdateAppointmentRequest) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolUpdateAppointment)
	defer span.End()

	appt, err := s.store.GetAppointment(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return reply(ToolUpdateAppointment, appointmentMissingReply), nil
		}
		return s.fail(span, ToolUpdateAppointment, err)
	}

	if req.NewSpecialty != "" {
		appt.Specialty = normalizeSpecialty(req.NewSpecialty)
	}
	if req.NewDate != "" {
		appt.PreferredDate = req.NewDate
	}
	if req.NewTime != "" {
		appt.PreferredTime = req.NewTime
	}

	doctor, ok, err := s.firstDoctor(ctx, appt.Specialty)
	if err != nil {
		return s.fail(span, ToolUpdateAppointment, err)
	}
	if !ok {
		return reply(ToolUpdateAppointment, unavailableSpecialty(appt.Specialty)), nil
	}
	if !validSlot(appt.PreferredDate, appt.PreferredTime) {
		return reply(ToolUpdateAppointment, appointmentFormatReply), nil
	}

	appt.DoctorID = doctor.ID
	appt.DoctorName = doctor.Name
	if err := s.store.UpdateAppointment(ctx, appt); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return reply(ToolUpdateAppointment, appointmentMissingReply), nil
		}
		return s.fail(span, ToolUpdateAppointment, err)
	}

	resp := reply(ToolUpdateAppointment, "Appointment updated successfully.")
	resp.Data = appt
	return resp, nil
}

func (s *ClinicService) CancelAppointment(ctx context.Context, bookingID int64) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolCancelAppointment)
	defer span.End()

	if err := s.store.DeleteAppointment(ctx, bookingID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return reply(ToolCancelAppointment, appointmentMissingReply), nil
		}
		return s.fail(span, ToolCancelAppointment, err)
	}
	s.logger.WithField("appointment_id", bookingID).Info("Appointment canceled")
	return reply(ToolCancelAppointment, "Appointment canceled successfully."), nil
}

func (s *ClinicService) CheckInsurance(ctx context.Context, phone string) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolCheckInsurance)
	defer span.End()

	patient, err := s.store.GetPatientByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return reply(ToolCheckInsurance, patientMissingReply), nil
		}
		return s.fail(span, ToolCheckInsurance, err)
	}
	if !patient.HasInsurance() {
		return reply(ToolCheckInsurance, "No insurance details found for this patient."), nil
	}
	return reply(ToolCheckInsurance, fmt.Sprintf("Insurance found: Provider=%s, Policy Number=%s.",
		*patient.InsuranceProvider, *patient.InsuranceNumber)), nil
}

func (s *ClinicService) SubmitInsuranceClaim(ctx context.Context, req InsuranceClaimRequest) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolSubmitClaim)
	defer span.End()

	if !req.ClaimAmount.IsPositive() {
		return models.ToolResponse{}, utils.NewValidationError("claim_amount must be greater than zero")
	}

	patient, err := s.store.GetPatientByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return reply(ToolSubmitClaim, patientMissingReply), nil
		}
		return s.fail(span, ToolSubmitClaim, err)
	}
	if !patient.HasInsurance() {
		return reply(ToolSubmitClaim, "No insurance details found. Please provide insurance information first."), nil
	}

	claim := &models.InsuranceClaim{
		PatientID:         patient.ID,
		InsuranceProvider: *patient.InsuranceProvider,
		InsuranceNumber:   *patient.InsuranceNumber,
		ClaimAmount:       req.ClaimAmount.Round(2),
		Status:            models.ClaimStatusPending,
		ClaimDate:         s.now().UTC(),
	}
	if err := s.store.CreateClaim(ctx, claim); err != nil {
		return s.fail(span, ToolSubmitClaim, err)
	}

	resp := reply(ToolSubmitClaim, fmt.Sprintf("Insurance claim #%d submitted for %s INR. Status: %s.",
		claim.ID, claim.ClaimAmount.StringFixed(2), claim.Status))
	resp.Data = claim
	return resp, nil
}

func (s *ClinicService) GetMedicineInfo(ctx context.Context, name string) (models.ToolResponse, error) {
	ctx, span := s.tracer.TraceToolCall(ctx, ToolGetMedicineInfo)
	defer span.End()

	name = strings.TrimSpace(name)
	med, err := s.store.GetMedicine(ctx, name)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return reply(ToolGetMedicineInfo, "No information found for medicine: "+name), nil
		}
		return s.fail(span, ToolGetMedicineInfo, err)
	}
	resp := reply(ToolGetMedicineInfo, fmt.Sprintf("Medicine: %s\nDescription: %s\nSide Effects: %s",
		med.Name, med.Description, med.SideEffects))
	resp.Data = med
	return resp, nil
}

func (s *ClinicService) firstDoctor(ctx context.Context, specialty string) (models.Doctor, bool, error) {
	doctors, err := s.store.ListDoctorsBySpecialty(ctx, specialty, 1)
	if err != nil {
		return models.Doctor{}, false, err
	}
	if len(doctors) == 0 {
		return models.Doctor{}, false, nil
	}
	return doctors[0], true, nil
}

func (s *ClinicService) fail(span trace.Span, tool string, err error) (models.ToolResponse, error) {
	s.tracer.RecordFailure(span, err)
	s.logger.WithError(err).WithField("tool", tool).Error("Clinic tool failed")
	return models.ToolResponse{}, fmt.Errorf("%s: %w", tool, err)
}

type recommendation struct {
	Specialty string          `json:"specialty"`
	Doctors   []models.Doctor `json:"doctors"`
}

func reply(tool, msg string) models.ToolResponse {
	return models.ToolResponse{Tool: tool, Message: msg}
}

func unavailableSpecialty(specialty string) string {
	return fmt.Sprintf("Specialty '%s' is not available. Please choose another specialty.", specialty)
}

func validSlot(date, clock string) bool {
	if _, err := time.Parse(appointmentDateLayout, date); err != nil {
		return false
	}
	_, err := time.Parse(appointmentTimeLayout, clock)
	return err == nil
}

// normalizeSpecialty maps "general medicine" to "General Medicine".
func normalizeSpecialty(s string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
