package interfaces

import (
	"context"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// CaseService defines the interface for server-side case management
type CaseService interface {
	ListCases(ctx context.Context, user *types.UserProfile) ([]*types.MedicalCase, error)
	GetCase(ctx context.Context, user *types.UserProfile, caseID string) (*types.MedicalCase, error)
	CreateCase(ctx context.Context, user *types.UserProfile, input *types.CreateCaseInput) (*types.MedicalCase, error)
	SendMessage(ctx context.Context, user *types.UserProfile, caseID, text string) (*types.CaseMessage, error)
	SubmitDiagnosis(ctx context.Context, user *types.UserProfile, caseID, feedback string) (*types.MedicalCase, error)
	MarkAsRead(ctx context.Context, user *types.UserProfile, caseID string) error
}

// ImageStore defines the interface for case image storage
type ImageStore interface {
	Save(ctx context.Context, caseID, filename string, data []byte) (string, error)
}
