package domain

type QueryType string

const (
	QueryInstallation    QueryType = "installation"
	QueryIntegration     QueryType = "integration"
	QuerySecurity        QueryType = "security"
	QueryTroubleshooting QueryType = "troubleshooting"
	QueryVersion         QueryType = "version"
	QueryConfiguration   QueryType = "configuration"
	QueryGeneral         QueryType = "general"
)

// SearchFilter narrows retrieval to documents matching the analyzed query.
type SearchFilter struct {
	DocumentType string `json:"document_type,omitempty"`
	Version      string `json:"version,omitempty"`
	HighPriority bool   `json:"high_priority,omitempty"`
}

// QueryAnalysis is produced once per incoming query and is read-only for
// every downstream stage.
type QueryAnalysis struct {
	Original         string       `json:"original_query"`
	Enhanced         string       `json:"enhanced_query"`
	Type             QueryType    `json:"query_type"`
	IntentConfidence float64      `json:"intent_confidence"`
	TechnicalTerms   []string     `json:"technical_terms"`
	ExpansionTerms   []string     `json:"expansion_terms"`
	Filters          SearchFilter `json:"suggested_filters"`
}
