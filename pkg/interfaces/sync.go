package interfaces

import (
	"context"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// RemoteCaseService defines the client-side contract for the case API.
// Each operation is a plain request/response mapping with no retry
// logic; unreachable-backend failures surface as *types.NetworkError
// and non-2xx responses as *types.ServerError.
type RemoteCaseService interface {
	ListCases(ctx context.Context) ([]*types.MedicalCase, error)
	CreateCase(ctx context.Context, input *types.CreateCaseInput) (*types.MedicalCase, error)
	SendMessage(ctx context.Context, caseID, text string) (*types.CaseMessage, error)
	SubmitDiagnosis(ctx context.Context, caseID, feedback string) (*types.MedicalCase, error)
	MarkAsRead(ctx context.Context, caseID string) error
}

// LocalStore defines the contract for the persisted local cache. Values
// are serialized text; a failed deserialization is reported as absent,
// never as an error.
type LocalStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Remove(key string) error
}
