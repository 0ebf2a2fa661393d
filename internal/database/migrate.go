package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		insurance_provider TEXT,
		insurance_number TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		specialty TEXT NOT NULL,
		UNIQUE (name, specialty)
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id BIGSERIAL PRIMARY KEY,
		patient_id BIGINT REFERENCES patients(id),
		doctor_id BIGINT REFERENCES doctors(id),
		specialty TEXT NOT NULL,
		preferred_date TEXT NOT NULL,
		preferred_time TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS insurance_claims (
		id BIGSERIAL PRIMARY KEY,
		patient_id BIGINT REFERENCES patients(id),
		insurance_provider TEXT,
		insurance_number TEXT,
		claim_amount NUMERIC(12, 2),
		status TEXT,
		claim_date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS medicines (
		name TEXT PRIMARY KEY,
		description TEXT,
		side_effects TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS injury_reports (
		id BIGSERIAL PRIMARY KEY,
		sender TEXT NOT NULL,
		user_input TEXT NOT NULL,
		ai_response TEXT NOT NULL,
		has_image BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

const seedDoctorsQuery = `
	INSERT INTO doctors (name, specialty)
	SELECT * FROM unnest($1::text[], $2::text[])
	ON CONFLICT (name, specialty) DO NOTHING
`

const seedMedicinesQuery = `
	INSERT INTO medicines (name, description, side_effects)
	SELECT * FROM unnest($1::text[], $2::text[], $3::text[])
	ON CONFLICT (name) DO NOTHING
`

// seedDoctors lists ten doctors for each specialty.
var seedDoctors = map[string][]string{
	models.SpecialtyGeneralMedicine: {
		"Dr. Anil Sharma", "Dr. Priya Gupta", "Dr. Rajesh Kumar", "Dr. Neha Patel", "Dr. Sanjay Desai",
		"Dr. Anjali Mehta", "Dr. Vikram Singh", "Dr. Pooja Shah", "Dr. Rakesh Verma", "Dr. Sunita Joshi",
	},
	models.SpecialtyOrthopedics: {
		"Dr. Amit Choudhary", "Dr. Shalini Kapoor", "Dr. Manoj Patil", "Dr. Kavita Rana", "Dr. Deepak Malhotra",
		"Dr. Meera Nair", "Dr. Rohan Kulkarni", "Dr. Swati Thakur", "Dr. Vinod Agarwal", "Dr. Lakshmi Iyer",
	},
	models.SpecialtyPsychiatry: {
		"Dr. Sameer Khan", "Dr. Ritu Saxena", "Dr. Arjun Menon", "Dr. Nisha Varghese", "Dr. Siddharth Bose",
		"Dr. Ananya Das", "Dr. Karan Oberoi", "Dr. Preeti Malhotra", "Dr. Vivek Sharma", "Dr. Smriti Jain",
	},
	models.SpecialtyCardiology: {
		"Dr. Rahul Mehra", "Dr. Suman Gupta", "Dr. Ashok Reddy", "Dr. Divya Sharma", "Dr. Kunal Desai",
		"Dr. Rekha Pillai", "Dr. Manish Thakur", "Dr. Seema Kapoor", "Dr. Ajay Bhatt", "Dr. Lakshmi Nair",
	},
	models.SpecialtyNeurology: {
		"Dr. Vikrant Singh", "Dr. Anjali Rao", "Dr. Sanjay Gupta", "Dr. Priyanka Shah", "Dr. Rohit Kumar",
		"Dr. Neeta Patel", "Dr. Aravind Menon", "Dr. Shalini Desai", "Dr. Rajiv Malhotra", "Dr. Meena Iyer",
	},
}

var seedMedicines = []models.Medicine{
	{Name: "Paracetamol", Description: "Pain reliever and fever reducer", SideEffects: "Nausea, rash, liver damage (rare)"},
	{Name: "Ibuprofen", Description: "Nonsteroidal anti-inflammatory drug", SideEffects: "Stomach pain, dizziness, headache"},
	{Name: "Aspirin", Description: "Pain reliever and blood thinner", SideEffects: "Stomach upset, bleeding risk"},
	{Name: "Amoxicillin", Description: "Antibiotic for bacterial infections", SideEffects: "Diarrhea, rash, allergic reactions"},
}

var specialtyOrder = []string{
	models.SpecialtyGeneralMedicine,
	models.SpecialtyOrthopedics,
	models.SpecialtyPsychiatry,
	models.SpecialtyCardiology,
	models.SpecialtyNeurology,
}

// Migrate creates the clinic tables and seeds doctors and medicines. It is
// idempotent.
func Migrate(ctx context.Context, pool DatabasePool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	var names, specialties []string
	for _, specialty := range specialtyOrder {
		for _, name := range seedDoctors[specialty] {
			names = append(names, name)
			specialties = append(specialties, specialty)
		}
	}
	if _, err := pool.Exec(ctx, seedDoctorsQuery, names, specialties); err != nil {
		return fmt.Errorf("failed to seed doctors: %w", err)
	}

	medNames := make([]string, len(seedMedicines))
	descriptions := make([]string, len(seedMedicines))
	sideEffects := make([]string, len(seedMedicines))
	for i, m := range seedMedicines {
		medNames[i] = m.Name
		descriptions[i] = m.Description
		sideEffects[i] = m.SideEffects
	}
	if _, err := pool.Exec(ctx, seedMedicinesQuery, medNames, descriptions, sideEffects); err != nil {
		return fmt.Errorf("failed to seed medicines: %w", err)
	}

	logrus.WithField("tables", len(schema)).Info("Clinic schema migrated")
	return nil
}
