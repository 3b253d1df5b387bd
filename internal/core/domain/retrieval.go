package domain

// Candidate is a passage flowing through the retrieval stages. Each stage
// attaches its own score field; scores set by an earlier stage are never
// cleared or overwritten.
type Candidate struct {
	Content      string         `json:"content"`
	DocumentName string         `json:"document_name"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	VectorScore    float64 `json:"vector_score"`
	RerankScore    float64 `json:"rerank_score"`
	HasRerankScore bool    `json:"-"`
	DomainScore    float64 `json:"domain_score"`
	FinalScore     float64 `json:"final_score"`

	Stage string `json:"stage"`
}

// SearchResult is what a pipeline invocation returns to its caller: a ranked
// result list plus the confidence analysis for that run.
type SearchResult struct {
	RequestID  string             `json:"request_id"`
	Query      string             `json:"query"`
	Analysis   QueryAnalysis      `json:"analysis"`
	Results    []Candidate        `json:"results"`
	Confidence ConfidenceAnalysis `json:"confidence"`
}
