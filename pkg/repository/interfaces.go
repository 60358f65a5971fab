package repository

import (
	"context"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// UserRepositoryInterface defines the interface for user profile operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, profile *types.UserProfile, passwordHash string) error
	GetByID(ctx context.Context, userID string) (*types.UserProfile, string, error)
	Exists(ctx context.Context, userID string) (bool, error)
}

// CaseRepositoryInterface defines the interface for medical case operations
type CaseRepositoryInterface interface {
	List(ctx context.Context, patientID string) ([]*types.MedicalCase, error)
	GetByID(ctx context.Context, caseID string) (*types.MedicalCase, error)
	Create(ctx context.Context, c *types.MedicalCase) error
	AddMessage(ctx context.Context, caseID string, msg *types.CaseMessage) error
	SetUnread(ctx context.Context, caseID string, role types.UserRole, unread bool) error
	SetDiagnosis(ctx context.Context, caseID, feedback, doctorName, replyTimestamp string) error
}

// AnalysisRepositoryInterface defines the interface for AI analysis result storage
type AnalysisRepositoryInterface interface {
	SaveResult(ctx context.Context, userID string, report *types.AnalysisReport) (string, error)
}
