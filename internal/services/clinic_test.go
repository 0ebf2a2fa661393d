package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/utils"
)

// memoryClinic is an in-process ClinicStore.
type memoryClinic struct {
	patients     map[string]*models.Patient
	doctors      []models.Doctor
	appointments map[int64]*models.Appointment
	claims       []models.InsuranceClaim
	medicines    map[string]models.Medicine
	nextID       int64
	err          error
}

func newMemoryClinic() *memoryClinic {
	return &memoryClinic{
		patients: map[string]*models.Patient{},
		doctors: []models.Doctor{
			{ID: 1, Name: "Dr. Anil Sharma", Specialty: models.SpecialtyGeneralMedicine},
			{ID: 2, Name: "Dr. Priya Gupta", Specialty: models.SpecialtyGeneralMedicine},
			{ID: 11, Name: "Dr. Amit Choudhary", Specialty: models.SpecialtyOrthopedics},
			{ID: 21, Name: "Dr. Sameer Khan", Specialty: models.SpecialtyPsychiatry},
			{ID: 31, Name: "Dr. Rahul Mehra", Specialty: models.SpecialtyCardiology},
		},
		appointments: map[int64]*models.Appointment{},
		medicines: map[string]models.Medicine{
			"paracetamol": {Name: "Paracetamol", Description: "Pain reliever and fever reducer", SideEffects: "Nausea"},
		},
		nextID: 100,
	}
}

func (m *memoryClinic) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryClinic) CreatePatient(_ context.Context, p *models.Patient) error {
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.patients {
		if existing.Phone == p.Phone || existing.Email == p.Email {
			return fmt.Errorf("patient %s: %w", p.Phone, utils.ErrConflict)
		}
	}
	p.ID = m.id()
	cp := *p
	m.patients[p.Phone] = &cp
	return nil
}

func (m *memoryClinic) GetPatientByPhone(_ context.Context, phone string) (*models.Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.patients[phone]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryClinic) UpdatePatientInsurance(_ context.Context, id int64, provider, number string) error {
	for _, p := range m.patients {
		if p.ID == id {
			p.InsuranceProvider, p.InsuranceNumber = &provider, &number
			return nil
		}
	}
	return utils.ErrNotFound
}

func (m *memoryClinic) ListDoctorsBySpecialty(_ context.Context, specialty string, limit int) ([]models.Doctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Doctor
	for _, d := range m.doctors {
		if d.Specialty == specialty && len(out) < limit {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryClinic) CreateAppointment(_ context.Context, a *models.Appointment) error {
	a.ID = m.id()
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *memoryClinic) GetAppointment(_ context.Context, id int64) (*models.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryClinic) ListAppointmentsByPhone(_ context.Context, phone string) ([]models.Appointment, error) {
	p, ok := m.patients[phone]
	if !ok {
		return nil, nil
	}
	var out []models.Appointment
	for id := int64(0); id <= m.nextID; id++ {
		if a, ok := m.appointments[id]; ok && a.PatientID == p.ID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memoryClinic) UpdateAppointment(_ context.Context, a *models.Appointment) error {
	if _, ok := m.appointments[a.ID]; !ok {
		return utils.ErrNotFound
	}
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *memoryClinic) DeleteAppointment(_ context.Context, id int64) error {
	if _, ok := m.appointments[id]; !ok {
		return utils.ErrNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *memoryClinic) CreateClaim(_ context.Context, c *models.InsuranceClaim) error {
	c.ID = m.id()
	m.claims = append(m.claims, *c)
	return nil
}

func (m *memoryClinic) GetMedicine(_ context.Context, name string) (*models.Medicine, error) {
	med, ok := m.medicines[strings.ToLower(name)]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &med, nil
}

type fakeMailer struct {
	sent []models.Appointment
	err  error
}

func (f *fakeMailer) SendAppointmentConfirmation(_ context.Context, _ models.Patient, appt models.Appointment) error {
	f.sent = append(f.sent, appt)
	return f.err
}

type fakeBookingNotifier struct {
	booked []int64
}

func (f *fakeBookingNotifier) NotifyAppointmentBooked(_ context.Context, _ models.Patient, appt models.Appointment) error {
	f.booked = append(f.booked, appt.ID)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type clinicFixture struct {
	svc      *ClinicService
	store    *memoryClinic
	mailer   *fakeMailer
	notifier *fakeBookingNotifier
}

func newClinicFixture() *clinicFixture {
	f := &clinicFixture{store: newMemoryClinic(), mailer: &fakeMailer{}, notifier: &fakeBookingNotifier{}}
	f.svc = NewClinicService(f.store, f.mailer, f.notifier, quietLogger())
	f.svc.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

const testPhone = "+919876543210"

func (f *clinicFixture) register(t *testing.T, insured bool) {
	t.Helper()
	req := IdentifyPatientRequest{Name: "priya sharma", Phone: testPhone, Email: "priya@example.com"}
	if insured {
		req.InsuranceProvider, req.InsuranceNumber = "Star Health", "SH-42"
	}
	resp, err := f.svc.IdentifyPatient(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "Thank you, priya sharma. I've registered your details.", resp.Message)
}

func TestIdentifyPatient(t *testing.T) {
	tests := []struct {
		name string
		req  IdentifyPatientRequest
		want string
	}{
		{
			name: "valid",
			req:  IdentifyPatientRequest{Name: "  Ravi McDonald ", Phone: "9876543210", Email: "ravi@example.com"},
			want: "Thank you, Ravi McDonald. I've registered your details.",
		},
		{
			name: "email with header injection",
			req:  IdentifyPatientRequest{Name: "Ravi", Phone: "9876543210", Email: "a@b.com\r\nBcc: x@y.z"},
			want: "Please provide a valid email address (e.g., example@domain.com).",
		},
		{
			name: "email with space in local part",
			req:  IdentifyPatientRequest{Name: "Ravi", Phone: "9876543210", Email: "a b@c.d"},
			want: "Please provide a valid email address (e.g., example@domain.com).",
		},
		{
			name: "email with leading words",
			req:  IdentifyPatientRequest{Name: "Ravi", Phone: "9876543210", Email: "x a@b.co"},
			want: "Please provide a valid email address (e.g., example@domain.com).",
		},
		{
			name: "bad phone",
			req:  IdentifyPatientRequest{Name: "Ravi", Phone: "12345", Email: "ravi@example.com"},
			want: "Please provide a valid phone number (e.g., +919876543210).",
		},
		{
			name: "bad email",
			req:  IdentifyPatientRequest{Name: "Ravi", Phone: "+91-9876543210", Email: "ravi-at-example"},
			want: "Please provide a valid email address (e.g., example@domain.com).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClinicFixture()
			resp, err := f.svc.IdentifyPatient(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, ToolIdentifyPatient, resp.Tool)
			assert.Equal(t, tt.want, resp.Message)
		})
	}
}

func TestIdentifyPatient_StoresNameAsGiven(t *testing.T) {
	f := newClinicFixture()

	resp, err := f.svc.IdentifyPatient(context.Background(), IdentifyPatientRequest{
		Name: " priya SHARMA ", Phone: testPhone, Email: "priya@example.com",
	})
	require.NoError(t, err)

	stored, err := f.store.GetPatientByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, "priya SHARMA", stored.Name)
	assert.Equal(t, "Thank you, priya SHARMA. I've registered your details.", resp.Message)
}

func TestIdentifyPatient_Duplicate(t *testing.T) {
	f := newClinicFixture()
	f.register(t, false)

	resp, err := f.svc.IdentifyPatient(context.Background(), IdentifyPatientRequest{
		Name: "Someone Else", Phone: testPhone, Email: "other@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "This phone number or email is already registered. Please provide unique details.", resp.Message)
}

func TestIdentifyPatient_StoreError(t *testing.T) {
	f := newClinicFixture()
	f.store.err = errors.New("connection reset")

	_, err := f.svc.IdentifyPatient(context.Background(), IdentifyPatientRequest{
		Name: "Ravi", Phone: testPhone, Email: "ravi@example.com",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ToolIdentifyPatient)
}

func TestAssessInjury(t *testing.T) {
	tests := []struct {
		symptoms string
		want     string
	}{
		{"Sharp pain in arm after lifting", models.SpecialtyOrthopedics},
		{"chest pain and sweating", models.SpecialtyCardiology},
		{"I had a fall and my heart races", models.SpecialtyCardiology},
		{"bad headache", "Neurology"},
		{"mild fever", models.SpecialtyGeneralMedicine},
		{"itchy eyes", models.SpecialtyGeneralMedicine},
	}

	for _, tt := range tests {
		t.Run(tt.symptoms, func(t *testing.T) {
			f := newClinicFixture()
			resp, err := f.svc.AssessInjury(context.Background(), tt.symptoms)
			require.NoError(t, err)
			assert.Contains(t, resp.Message, fmt.Sprintf("Based on your symptoms ('%s'), I recommend seeing a %s specialist.", tt.symptoms, tt.want))
		})
	}
}

func TestAssessInjury_DoctorList(t *testing.T) {
	f := newClinicFixture()

	resp, err := f.svc.AssessInjury(context.Background(), "cough")
	require.NoError(t, err)
	assert.Equal(t, "Based on your symptoms ('cough'), I recommend seeing a General Medicine specialist. "+
		"Available doctors: Dr. Anil Sharma, Dr. Priya Gupta. Would you like to book an appointment?", resp.Message)

	resp, err = f.svc.AssessInjury(context.Background(), "seizure")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Available doctors: No doctors available.")
}

func TestAssessMentalHealth(t *testing.T) {
	f := newClinicFixture()

	resp, err := f.svc.AssessMentalHealth(context.Background(), "I can't SLEEP at night")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Psychiatry specialist. Available doctors: Dr. Sameer Khan.")

	resp, err = f.svc.AssessMentalHealth(context.Background(), "feeling tired")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "General Medicine specialist")
}

func TestBookAppointment(t *testing.T) {
	f := newClinicFixture()
	f.register(t, false)

	resp, err := f.svc.BookAppointment(context.Background(), BookAppointmentRequest{
		Phone: testPhone, Specialty: "orthopedics", PreferredDate: "2025-03-10", PreferredTime: "10:30",
		InsuranceProvider: "Star Health", InsuranceNumber: "SH-42",
	})
	require.NoError(t, err)

	appt, ok := resp.Data.(*models.Appointment)
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("Great! Your appointment (#%d) has been confirmed for 2025-03-10 at 10:30 "+
		"with Dr. Amit Choudhary (Orthopedics). You'll receive a confirmation email.", appt.ID), resp.Message)
	assert.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []int64{appt.ID}, f.notifier.booked)

	p, err := f.store.GetPatientByPhone(context.Background(), testPhone)
	require.NoError(t, err)
	assert.True(t, p.HasInsurance())
}

func TestBookAppointment_EmailFailure(t *testing.T) {
	f := newClinicFixture()
	f.register(t, false)
	f.mailer.err = ErrMailerNotConfigured

	resp, err := f.svc.BookAppointment(context.Background(), BookAppointmentRequest{
		Phone: testPhone, Specialty: "Cardiology", PreferredDate: "2025-03-10", PreferredTime: "09:00",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "However, there was an issue sending the confirmation email.")
	assert.True(t, strings.HasSuffix(resp.Message, "contact us if you don’t receive it."))
}

func TestBookAppointment_Rejections(t *testing.T) {
	f := newClinicFixture()
	f.register(t, false)

	tests := []struct {
		name string
		req  BookAppointmentRequest
		want string
	}{
		{
			name: "unknown patient",
			req:  BookAppointmentRequest{Phone: "+919999999999", Specialty: "Cardiology", PreferredDate: "2025-03-10", PreferredTime: "09:00"},
			want: "Please identify yourself first using name, phone, and email.",
		},
		{
			name: "bad date",
			req:  BookAppointmentRequest{Phone: testPhone, Specialty: "Cardiology", PreferredDate: "10/03/2025", PreferredTime: "09:00"},
			want: appointmentFormatReply,
		},
		{
			name: "bad time",
			req:  BookAppointmentRequest{Phone: testPhone, Specialty: "Cardiology", PreferredDate: "2025-03-10", PreferredTime: "9am"},
			want: appointmentFormatReply,
		},
		{
			name: "unknown specialty",
			req:  BookAppointmentRequest{Phone: testPhone, Specialty: "dermatology", PreferredDate: "2025-03-10", PreferredTime: "09:00"},
			want: "Specialty 'Dermatology' is not available. Please choose another specialty.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.svc.BookAppointment(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Message)
		})
	}
	assert.Empty(t, f.store.appointments)
}

func TestViewAppointments(t *testing.T) {
	f := newClinicFixture()
	ctx := context.Background()

	resp, err := f.svc.ViewAppointments(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, "You have no upcoming appointments.", resp.Message)

	f.register(t, false)
	booked, err := f.svc.BookAppointment(ctx, BookAppointmentRequest{
		Phone: testPhone, Specialty: "General Medicine", PreferredDate: "2025-03-10", PreferredTime: "09:00",
	})
	require.NoError(t, err)
	id := booked.Data.(*models.Appointment).ID

	resp, err = f.svc.ViewAppointments(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("You have the following upcoming appointments:\n"+
		"- Appointment #%d with Dr. Anil Sharma (General Medicine) on 2025-03-10 at 09:00", id), resp.Message)
}

func TestUpdateAndCancelAppointment(t *testing.T) {
	f := newClinicFixture()
	ctx := context.Background()
	f.register(t, false)
	booked, err := f.svc.BookAppointment(ctx, BookAppointmentRequest{
		Phone: testPhone, Specialty: "General Medicine", PreferredDate: "2025-03-10", PreferredTime: "09:00",
	})
	require.NoError(t, err)
	id := booked.Data.(*models.Appointment).ID

	resp, err := f.svc.UpdateAppointment(ctx, UpdateAppointmentRequest{BookingID: id, NewTime: "14:15", NewSpecialty: "cardiology"})
	require.NoError(t, err)
	assert.Equal(t, "Appointment updated successfully.", resp.Message)
	updated := f.store.appointments[id]
	assert.Equal(t, "2025-03-10", updated.PreferredDate)
	assert.Equal(t, "14:15", updated.PreferredTime)
	assert.Equal(t, models.SpecialtyCardiology, updated.Specialty)
	assert.Equal(t, int64(31), updated.DoctorID)

	resp, err = f.svc.UpdateAppointment(ctx, UpdateAppointmentRequest{BookingID: id, NewSpecialty: "Oncology"})
	require.NoError(t, err)
	assert.Equal(t, "Specialty 'Oncology' is not available. Please choose another specialty.", resp.Message)

	resp, err = f.svc.UpdateAppointment(ctx, UpdateAppointmentRequest{BookingID: id, NewDate: "tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, appointmentFormatReply, resp.Message)

	resp, err = f.svc.UpdateAppointment(ctx, UpdateAppointmentRequest{BookingID: 9999})
	require.NoError(t, err)
	assert.Equal(t, "Appointment not found. Please check the booking ID.", resp.Message)

	resp, err = f.svc.CancelAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Appointment canceled successfully.", resp.Message)

	resp, err = f.svc.CancelAppointment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Appointment not found. Please check the booking ID.", resp.Message)
}

func TestCheckInsurance(t *testing.T) {
	ctx := context.Background()

	f := newClinicFixture()
	resp, err := f.svc.CheckInsurance(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, "No patient found with this phone number.", resp.Message)

	f.register(t, false)
	resp, err = f.svc.CheckInsurance(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, "No insurance details found for this patient.", resp.Message)

	insured := newClinicFixture()
	insured.register(t, true)
	resp, err = insured.svc.CheckInsurance(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, "Insurance found: Provider=Star Health, Policy Number=SH-42.", resp.Message)
}

func TestSubmitInsuranceClaim(t *testing.T) {
	ctx := context.Background()

	f := newClinicFixture()
	f.register(t, false)
	resp, err := f.svc.SubmitInsuranceClaim(ctx, InsuranceClaimRequest{Phone: testPhone, ClaimAmount: decimal.NewFromInt(1500)})
	require.NoError(t, err)
	assert.Equal(t, "No insurance details found. Please provide insurance information first.", resp.Message)

	insured := newClinicFixture()
	insured.register(t, true)
	resp, err = insured.svc.SubmitInsuranceClaim(ctx, InsuranceClaimRequest{
		Phone:       testPhone,
		ClaimAmount: decimal.RequireFromString("2500.456"),
	})
	require.NoError(t, err)
	require.Len(t, insured.store.claims, 1)
	claim := insured.store.claims[0]
	assert.Equal(t, fmt.Sprintf("Insurance claim #%d submitted for 2500.46 INR. Status: Pending.", claim.ID), resp.Message)
	assert.Equal(t, models.ClaimStatusPending, claim.Status)
	assert.Equal(t, "Star Health", claim.InsuranceProvider)
	assert.True(t, claim.ClaimAmount.Equal(decimal.RequireFromString("2500.46")))
	assert.Equal(t, 2025, claim.ClaimDate.Year())

	_, err = insured.svc.SubmitInsuranceClaim(ctx, InsuranceClaimRequest{Phone: testPhone, ClaimAmount: decimal.Zero})
	assert.True(t, utils.IsValidationError(err))

	resp, err = insured.svc.SubmitInsuranceClaim(ctx, InsuranceClaimRequest{Phone: "+910000000000", ClaimAmount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "No patient found with this phone number.", resp.Message)
}

func TestGetMedicineInfo(t *testing.T) {
	f := newClinicFixture()

	resp, err := f.svc.GetMedicineInfo(context.Background(), " PARACETAMOL ")
	require.NoError(t, err)
	assert.Equal(t, "Medicine: Paracetamol\nDescription: Pain reliever and fever reducer\nSide Effects: Nausea", resp.Message)

	resp, err = f.svc.GetMedicineInfo(context.Background(), "Unobtainium")
	require.NoError(t, err)
	assert.Equal(t, "No information found for medicine: Unobtainium", resp.Message)
}
