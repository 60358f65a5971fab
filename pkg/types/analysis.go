package types

// RiskLevel represents a qualitative risk classification for a brain region
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High Risk"
)

// RegionRisk represents an AI risk assessment for a single brain region
type RegionRisk struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Score       float64   `json:"score"`
	Level       RiskLevel `json:"level"`
}

// AnalysisReport represents the full structured output of a multimodal
// AI analysis run. The AI outputs are illustrative, not medically
// validated.
type AnalysisReport struct {
	Summary             string                   `json:"summary"`
	DetailedFindings    string                   `json:"detailedFindings"`
	Regions             []RegionRisk             `json:"regions"`
	Recommendation      string                   `json:"recommendation"`
	DiseaseRisks        []map[string]interface{} `json:"diseaseRisks,omitempty"`
	GwasAnalysis        []map[string]interface{} `json:"gwasAnalysis,omitempty"`
	ModelConfidence     []map[string]interface{} `json:"modelConfidence,omitempty"`
	LifecycleProjection []map[string]interface{} `json:"lifecycleProjection,omitempty"`
}

// ChatMessage represents a single turn in an AI assistant conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents an AI assistant chat request
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	JSONMode bool          `json:"json_mode"`
}
