package interfaces

import (
	"context"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// AnalysisService defines the interface for AI-assisted analysis
type AnalysisService interface {
	AnalyzeMultimodal(ctx context.Context, userID string, imageName string, imageData []byte, geneName string, geneData []byte) (*types.AnalysisReport, error)
	Chat(ctx context.Context, req *types.ChatRequest) (string, error)
}
