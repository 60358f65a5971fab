package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// AnalysisRepository stores AI analysis reports
type AnalysisRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sql.DB, log *logger.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:     db,
		logger: log,
	}
}

// SaveResult persists an analysis report and returns its ID
func (r *AnalysisRepository) SaveResult(ctx context.Context, userID string, report *types.AnalysisReport) (string, error) {
	resultJSON, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis report: %w", err)
	}

	id := uuid.New().String()
	query := `INSERT INTO analysis_results (id, user_id, result_json) VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, id, userID, resultJSON); err != nil {
		r.logger.WithError(err).Error("Failed to save analysis result")
		return "", fmt.Errorf("failed to save analysis result: %w", err)
	}

	return id, nil
}
