package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// UserRepository handles user profile data operations
type UserRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, log *logger.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: log,
	}
}

// Create creates a new user profile record
func (r *UserRepository) Create(ctx context.Context, profile *types.UserProfile, passwordHash string) error {
	query := `
		INSERT INTO profiles (
			id, role, name, password_hash, gender, age, phone,
			department, title, hospital, specialties, registration_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.Role,
		profile.Name,
		passwordHash,
		nullable(string(profile.Gender)),
		profile.Age,
		nullable(profile.Phone),
		nullable(profile.Department),
		nullable(profile.Title),
		nullable(profile.Hospital),
		nullable(profile.Specialties),
		profile.RegistrationDate,
	)

	if err != nil {
		r.logger.WithError(err).Error("Failed to create user profile")
		return fmt.Errorf("failed to create user profile: %w", err)
	}

	r.logger.WithUserID(profile.ID).Info("Created user profile")
	return nil
}

// GetByID retrieves a user profile and its password hash by ID
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*types.UserProfile, string, error) {
	query := `
		SELECT id, role, name, password_hash, gender, age, phone,
			   department, title, hospital, specialties, registration_date
		FROM profiles
		WHERE id = $1`

	profile := &types.UserProfile{}
	var passwordHash string
	var gender, phone, department, title, hospital, specialties sql.NullString
	var age sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.Role,
		&profile.Name,
		&passwordHash,
		&gender,
		&age,
		&phone,
		&department,
		&title,
		&hospital,
		&specialties,
		&profile.RegistrationDate,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", types.NewNotFoundError(types.ErrCodeNotFound, "用户不存在")
		}
		return nil, "", fmt.Errorf("failed to get user profile: %w", err)
	}

	profile.Gender = types.Gender(gender.String)
	profile.Age = int(age.Int64)
	profile.Phone = phone.String
	profile.Department = department.String
	profile.Title = title.String
	profile.Hospital = hospital.String
	profile.Specialties = specialties.String

	return profile, passwordHash, nil
}

// Exists reports whether a user with the given ID is already registered
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles WHERE id = $1`, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

// nullable converts an empty string to a NULL-able database value
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
