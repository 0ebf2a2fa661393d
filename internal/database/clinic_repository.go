package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/utils"
)

// DatabasePool is the subset of pgxpool.Pool the repositories use, so that
// pgxmock can stand in during tests.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

const uniqueViolation = "23505"

// ClinicRepository handles persistence for patients, doctors, appointments,
// insurance claims, medicines and injury reports.
type ClinicRepository struct {
	pool DatabasePool
}

func NewClinicRepository(pool DatabasePool) *ClinicRepository {
	return &ClinicRepository{pool: pool}
}

// CreatePatient inserts p and fills in its ID. A duplicate phone or e-mail
// yields utils.ErrConflict.
func (r *ClinicRepository) CreatePatient(ctx context.Context, p *models.Patient) error {
	query := `
		INSERT INTO patients (name, phone, email, insurance_provider, insurance_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query, p.Name, p.Phone, p.Email, p.InsuranceProvider, p.InsuranceNumber).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("patient %s: %w", p.Phone, utils.ErrConflict)
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *ClinicRepository) GetPatientByPhone(ctx context.Context, phone string) (*models.Patient, error) {
	query := `
		SELECT id, name, phone, email, insurance_provider, insurance_number
		FROM patients
		WHERE phone = $1
	`
	var p models.Patient
	err := r.pool.QueryRow(ctx, query, phone).Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Email,
		&p.InsuranceProvider,
		&p.InsuranceNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient %s: %w", phone, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &p, nil
}

func (r *ClinicRepository) UpdatePatientInsurance(ctx context.Context, patientID int64, provider, number string) error {
	query := `
		UPDATE patients
		SET insurance_provider = $1, insurance_number = $2
		WHERE id = $3
	`
	result, err := r.pool.Exec(ctx, query, provider, number, patientID)
	if err != nil {
		return fmt.Errorf("failed to update insurance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("patient %d: %w", patientID, utils.ErrNotFound)
	}
	return nil
}

// ListDoctorsBySpecialty returns at most limit doctors ordered by id.
func (r *ClinicRepository) ListDoctorsBySpecialty(ctx context.Context, specialty string, limit int) ([]models.Doctor, error) {
	query := `
		SELECT id, name, specialty
		FROM doctors
		WHERE specialty = $1
		ORDER BY id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, specialty, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []models.Doctor
	for rows.Next() {
		var d models.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty); err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating doctors: %w", err)
	}
	return doctors, nil
}

// CreateAppointment inserts a and fills in its ID.
func (r *ClinicRepository) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	query := `
		INSERT INTO appointments (patient_id, doctor_id, specialty, preferred_date, preferred_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query, a.PatientID, a.DoctorID, a.Specialty, a.PreferredDate, a.PreferredTime).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *ClinicRepository) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	query := `
		SELECT a.id, a.patient_id, a.doctor_id, d.name, a.specialty, a.preferred_date, a.preferred_time
		FROM appointments a
		JOIN doctors d ON a.doctor_id = d.id
		WHERE a.id = $1
	`
	var a models.Appointment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.DoctorName,
		&a.Specialty,
		&a.PreferredDate,
		&a.PreferredTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("appointment %d: %w", id, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &a, nil
}

// ListAppointmentsByPhone returns the bookings of the patient with phone.
func (r *ClinicRepository) ListAppointmentsByPhone(ctx context.Context, phone string) ([]models.Appointment, error) {
	query := `
		SELECT a.id, a.patient_id, a.doctor_id, d.name, a.specialty, a.preferred_date, a.preferred_time
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		JOIN doctors d ON a.doctor_id = d.id
		WHERE p.phone = $1
		ORDER BY a.preferred_date, a.preferred_time
	`
	rows, err := r.pool.Query(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		var a models.Appointment
		err := rows.Scan(
			&a.ID,
			&a.PatientID,
			&a.DoctorID,
			&a.DoctorName,
			&a.Specialty,
			&a.PreferredDate,
			&a.PreferredTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointments: %w", err)
	}
	return out, nil
}

func (r *ClinicRepository) UpdateAppointment(ctx context.Context, a *models.Appointment) error {
	query := `
		UPDATE appointments
		SET doctor_id = $1, specialty = $2, preferred_date = $3, preferred_time = $4
		WHERE id = $5
	`
	result, err := r.pool.Exec(ctx, query, a.DoctorID, a.Specialty, a.PreferredDate, a.PreferredTime, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("appointment %d: %w", a.ID, utils.ErrNotFound)
	}
	return nil
}

func (r *ClinicRepository) DeleteAppointment(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("appointment %d: %w", id, utils.ErrNotFound)
	}
	return nil
}

// CreateClaim inserts c and fills in its ID.
func (r *ClinicRepository) CreateClaim(ctx context.Context, c *models.InsuranceClaim) error {
	query := `
		INSERT INTO insurance_claims (patient_id, insurance_provider, insurance_number, claim_amount, status, claim_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		c.PatientID,
		c.InsuranceProvider,
		c.InsuranceNumber,
		c.ClaimAmount,
		c.Status,
		c.ClaimDate,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to submit claim: %w", err)
	}
	return nil
}

// GetMedicine matches the name case-insensitively.
func (r *ClinicRepository) GetMedicine(ctx context.Context, name string) (*models.Medicine, error) {
	query := `
		SELECT name, description, side_effects
		FROM medicines
		WHERE lower(name) = lower($1)
	`
	var m models.Medicine
	err := r.pool.QueryRow(ctx, query, name).Scan(&m.Name, &m.Description, &m.SideEffects)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("medicine %s: %w", name, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}
	return &m, nil
}

// SaveInjuryReport persists one injury consultation.
func (r *ClinicRepository) SaveInjuryReport(ctx context.Context, report models.InjuryReport) error {
	query := `
		INSERT INTO injury_reports (sender, user_input, ai_response, has_image, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, report.Sender, report.UserInput, report.AIResponse, report.HasImage, report.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save injury report: %w", err)
	}
	return nil
}

// DeleteInjuryReportsBefore removes reports created before cutoff and returns
// how many were deleted.
func (r *ClinicRepository) DeleteInjuryReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM injury_reports WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old injury reports: %w", err)
	}
	return result.RowsAffected(), nil
}
