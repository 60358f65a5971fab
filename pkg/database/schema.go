package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for case and profile storage
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	tables := []string{
		createProfilesTable,
		createMedicalCasesTable,
		createCaseMessagesTable,
		createAnalysisResultsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createMedicalCasesIndexes,
		createCaseMessagesIndexes,
		createAnalysisResultsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// SQL DDL statements for table creation
const (
	createProfilesTable = `
		CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR(32) PRIMARY KEY,
			role VARCHAR(16) NOT NULL CHECK (role IN ('DOCTOR', 'PATIENT')),
			name VARCHAR(100) NOT NULL,
			password_hash VARCHAR(128) NOT NULL,
			gender VARCHAR(8),
			age INTEGER,
			phone VARCHAR(16),
			department VARCHAR(100),
			title VARCHAR(100),
			hospital VARCHAR(200),
			specialties TEXT,
			registration_date VARCHAR(16) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createMedicalCasesTable = `
		CREATE TABLE IF NOT EXISTS medical_cases (
			id VARCHAR(64) PRIMARY KEY,
			patient_id VARCHAR(32) NOT NULL REFERENCES profiles(id),
			patient_name VARCHAR(100) NOT NULL,
			image_url TEXT,
			description TEXT NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed')),
			doctor_feedback TEXT,
			doctor_name VARCHAR(100),
			reply_timestamp VARCHAR(32),
			has_unread_for_doctor BOOLEAN NOT NULL DEFAULT TRUE,
			has_unread_for_patient BOOLEAN NOT NULL DEFAULT FALSE,
			modality VARCHAR(16),
			tags TEXT[],
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createCaseMessagesTable = `
		CREATE TABLE IF NOT EXISTS case_messages (
			id VARCHAR(64) PRIMARY KEY,
			case_id VARCHAR(64) NOT NULL REFERENCES medical_cases(id) ON DELETE CASCADE,
			sender_id VARCHAR(32) NOT NULL,
			sender_name VARCHAR(100) NOT NULL,
			sender_role VARCHAR(16) NOT NULL CHECK (sender_role IN ('DOCTOR', 'PATIENT')),
			text TEXT NOT NULL,
			timestamp VARCHAR(16) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createAnalysisResultsTable = `
		CREATE TABLE IF NOT EXISTS analysis_results (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(32) NOT NULL REFERENCES profiles(id),
			result_json JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	createMedicalCasesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_medical_cases_patient_id ON medical_cases(patient_id);
		CREATE INDEX IF NOT EXISTS idx_medical_cases_status ON medical_cases(status);
		CREATE INDEX IF NOT EXISTS idx_medical_cases_created_at ON medical_cases(created_at DESC);`

	createCaseMessagesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_case_messages_case_id ON case_messages(case_id);
		CREATE INDEX IF NOT EXISTS idx_case_messages_created_at ON case_messages(created_at);`

	createAnalysisResultsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_analysis_results_user_id ON analysis_results(user_id);`
)
