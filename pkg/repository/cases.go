package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// Display timestamp formats used by the web client
const (
	caseTimeLayout  = "2006/01/02 15:04"
	shortTimeLayout = "15:04"
)

// CaseRepository handles medical case data operations
type CaseRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB, log *logger.Logger) *CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: log,
	}
}

// List retrieves medical cases ordered newest first. An empty patientID
// returns all cases (doctor view); otherwise only that patient's cases.
func (r *CaseRepository) List(ctx context.Context, patientID string) ([]*types.MedicalCase, error) {
	query := `
		SELECT id, patient_id, patient_name, image_url, description, status,
			   doctor_feedback, doctor_name, reply_timestamp,
			   has_unread_for_doctor, has_unread_for_patient, modality, tags, created_at
		FROM medical_cases`
	args := []interface{}{}

	if patientID != "" {
		query += ` WHERE patient_id = $1`
		args = append(args, patientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list cases")
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*types.MedicalCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cases: %w", err)
	}

	for _, c := range cases {
		msgs, err := r.listMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Messages = msgs
	}

	return cases, nil
}

// GetByID retrieves a single case with its message thread
func (r *CaseRepository) GetByID(ctx context.Context, caseID string) (*types.MedicalCase, error) {
	query := `
		SELECT id, patient_id, patient_name, image_url, description, status,
			   doctor_feedback, doctor_name, reply_timestamp,
			   has_unread_for_doctor, has_unread_for_patient, modality, tags, created_at
		FROM medical_cases
		WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, caseID)
	c, err := scanCase(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, "病例不存在")
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	msgs, err := r.listMessages(ctx, caseID)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs

	return c, nil
}

// Create inserts a new medical case
func (r *CaseRepository) Create(ctx context.Context, c *types.MedicalCase) error {
	query := `
		INSERT INTO medical_cases (
			id, patient_id, patient_name, image_url, description, status,
			has_unread_for_doctor, has_unread_for_patient, modality, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		c.ID,
		c.PatientID,
		c.PatientName,
		nullable(c.ImageURL),
		c.Description,
		c.Status,
		c.HasUnreadForDoctor,
		c.HasUnreadForPatient,
		nullable(string(c.Modality)),
		pq.Array(c.Tags),
	).Scan(&createdAt)

	if err != nil {
		r.logger.WithError(err).Error("Failed to create case")
		return fmt.Errorf("failed to create case: %w", err)
	}

	c.Timestamp = createdAt.Format(caseTimeLayout)
	r.logger.CaseAccess(c.PatientID, c.ID, "create_case", true)
	return nil
}

// AddMessage appends a message to a case thread and flips the opposite
// role's unread flag
func (r *CaseRepository) AddMessage(ctx context.Context, caseID string, msg *types.CaseMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO case_messages (id, case_id, sender_id, sender_name, sender_role, text, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := tx.ExecContext(ctx, query,
		msg.ID, caseID, msg.SenderID, msg.SenderName, msg.SenderRole, msg.Text, msg.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	isPatient := msg.SenderRole == types.RolePatient
	if _, err := tx.ExecContext(ctx,
		`UPDATE medical_cases SET has_unread_for_doctor = $1, has_unread_for_patient = $2 WHERE id = $3`,
		isPatient, !isPatient, caseID,
	); err != nil {
		return fmt.Errorf("failed to update unread flags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	return nil
}

// SetUnread sets the unread flag for the given role on a case. Clearing
// an already-clear flag is a no-op, which keeps the operation idempotent.
func (r *CaseRepository) SetUnread(ctx context.Context, caseID string, role types.UserRole, unread bool) error {
	column := "has_unread_for_patient"
	if role == types.RoleDoctor {
		column = "has_unread_for_doctor"
	}

	query := fmt.Sprintf(`UPDATE medical_cases SET %s = $1 WHERE id = $2`, column)
	result, err := r.db.ExecContext(ctx, query, unread, caseID)
	if err != nil {
		return fmt.Errorf("failed to update unread flag: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "病例不存在")
	}

	return nil
}

// SetDiagnosis transitions a case to completed with the doctor's
// feedback. A completed case never reverts to pending, so the update is
// guarded on the current status.
func (r *CaseRepository) SetDiagnosis(ctx context.Context, caseID, feedback, doctorName, replyTimestamp string) error {
	query := `
		UPDATE medical_cases
		SET status = 'completed',
			doctor_feedback = $1,
			doctor_name = $2,
			reply_timestamp = $3,
			has_unread_for_patient = TRUE
		WHERE id = $4 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, feedback, doctorName, replyTimestamp, caseID)
	if err != nil {
		return fmt.Errorf("failed to set diagnosis: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return types.NewConflictError("CASE_NOT_PENDING", "病例不存在或已完成诊断")
	}

	return nil
}

// listMessages retrieves the ordered message thread for a case
func (r *CaseRepository) listMessages(ctx context.Context, caseID string) ([]types.CaseMessage, error) {
	query := `
		SELECT id, sender_id, sender_name, sender_role, text, timestamp
		FROM case_messages
		WHERE case_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []types.CaseMessage{}
	for rows.Next() {
		var m types.CaseMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.SenderRole, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SyncState = types.SyncStateSynced
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for case scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanCase scans a medical case row into a MedicalCase
func scanCase(s scanner) (*types.MedicalCase, error) {
	c := &types.MedicalCase{}
	var imageURL, feedback, doctorName, replyTS, modality sql.NullString
	var tags pq.StringArray
	var createdAt time.Time

	err := s.Scan(
		&c.ID,
		&c.PatientID,
		&c.PatientName,
		&imageURL,
		&c.Description,
		&c.Status,
		&feedback,
		&doctorName,
		&replyTS,
		&c.HasUnreadForDoctor,
		&c.HasUnreadForPatient,
		&modality,
		&tags,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	c.ImageURL = imageURL.String
	c.DoctorFeedback = feedback.String
	c.DoctorName = doctorName.String
	c.ReplyTimestamp = replyTS.String
	c.Modality = types.Modality(modality.String)
	c.Tags = tags
	c.Timestamp = createdAt.Format(caseTimeLayout)
	c.SyncState = types.SyncStateSynced

	return c, nil
}
