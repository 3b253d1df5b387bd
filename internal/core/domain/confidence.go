package domain

import "time"

// ConfidenceAnalysis is the diagnostic breakdown produced once per pipeline
// invocation. Read-only once returned.
type ConfidenceAnalysis struct {
	Query        string        `json:"query"`
	ResultsCount int           `json:"results_count"`
	ResponseTime time.Duration `json:"response_time"`

	Confidence         float64 `json:"confidence_score"`
	SemanticCoverage   float64 `json:"semantic_coverage"`
	KeywordCoverage    float64 `json:"keyword_coverage"`
	DiversityScore     float64 `json:"diversity_score"`
	UncertaintyPenalty float64 `json:"uncertainty_penalty"`

	RerankUsed bool `json:"rerank_used"`
	Cancelled  bool `json:"cancelled,omitempty"`

	QualityIndicators map[string]float64 `json:"quality_indicators,omitempty"`
}
