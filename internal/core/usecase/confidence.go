package usecase

import (
	"strings"
	"time"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

const (
	confidenceCap        = 0.99
	intentWeight         = 0.4
	keywordBonusWeight   = 0.3
	agreementBonusWeight = 0.2
	hedgePenaltyStep     = 0.05
	topInspected         = 5
	topKeyword           = 3
)

var hedgingWords = []string{"maybe", "possibly", "might", "perhaps", "unclear"}

// ConfidenceScorer turns the final result list plus the query analysis into a
// single [0, 0.99] confidence value with a diagnostic breakdown.
type ConfidenceScorer struct {
	keywordsByType map[domain.QueryType][]string
}

func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{
		keywordsByType: map[domain.QueryType][]string{
			domain.QueryInstallation:    {"install", "setup", "requirement", "prerequisite"},
			domain.QueryIntegration:     {"integration", "api", "interface", "endpoint"},
			domain.QuerySecurity:        {"security", "auth", "certificate", "encryption"},
			domain.QueryTroubleshooting: {"error", "troubleshoot", "issue", "resolution"},
			domain.QueryVersion:         {"version", "release", "upgrade", "migration"},
			domain.QueryConfiguration:   {"configuration", "config", "parameter", "setting"},
		},
	}
}

// Score inspects at most the top five results.
func (s *ConfidenceScorer) Score(analysis domain.QueryAnalysis, results []domain.Candidate, elapsed time.Duration, rerankUsed bool) domain.ConfidenceAnalysis {
	out := domain.ConfidenceAnalysis{
		Query:             analysis.Original,
		ResultsCount:      len(results),
		ResponseTime:      elapsed,
		RerankUsed:        rerankUsed,
		QualityIndicators: make(map[string]float64, 6),
	}
	if len(results) == 0 {
		return out
	}

	top := results
	if len(top) > topInspected {
		top = top[:topInspected]
	}

	keywordCoverage := s.keywordCoverage(analysis.Type, top)
	agreement := scoreAgreement(top)
	semantic := semanticCoverage(analysis, top)
	diversity := documentDiversity(top)
	penalty := hedgePenalty(top)

	confidence := intentWeight*analysis.IntentConfidence +
		keywordBonusWeight*keywordCoverage +
		agreementBonusWeight*agreement -
		penalty
	if confidence > confidenceCap {
		confidence = confidenceCap
	}
	if confidence < 0 {
		confidence = 0
	}

	out.Confidence = confidence
	out.KeywordCoverage = keywordCoverage
	out.SemanticCoverage = semantic
	out.DiversityScore = diversity
	out.UncertaintyPenalty = penalty
	out.QualityIndicators["intent_confidence"] = analysis.IntentConfidence
	out.QualityIndicators["score_agreement"] = agreement
	out.QualityIndicators["top_final_score"] = top[0].FinalScore
	return out
}

// keywordCoverage is the fraction of the top three results whose document
// name or content mentions a keyword relevant to the classified query type.
func (s *ConfidenceScorer) keywordCoverage(queryType domain.QueryType, top []domain.Candidate) float64 {
	keywords := s.keywordsByType[queryType]
	if len(keywords) == 0 {
		return 0
	}
	inspected := top
	if len(inspected) > topKeyword {
		inspected = inspected[:topKeyword]
	}
	hits := 0
	for _, c := range inspected {
		haystack := strings.ToLower(c.DocumentName + " " + c.Content)
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(inspected))
}

// scoreAgreement measures internal consistency of the top-3 final scores:
// low spread means the stages agree on what is relevant.
func scoreAgreement(top []domain.Candidate) float64 {
	inspected := top
	if len(inspected) > topKeyword {
		inspected = inspected[:topKeyword]
	}
	minScore := inspected[0].FinalScore
	maxScore := inspected[0].FinalScore
	for _, c := range inspected[1:] {
		if c.FinalScore < minScore {
			minScore = c.FinalScore
		}
		if c.FinalScore > maxScore {
			maxScore = c.FinalScore
		}
	}
	if minScore <= 0 || maxScore <= 0 {
		return 0
	}
	return minScore / maxScore
}

func semanticCoverage(analysis domain.QueryAnalysis, top []domain.Candidate) float64 {
	queryTokens := toTokenSet(analysis.Original)
	if len(queryTokens) == 0 {
		return 0
	}
	covered := make(map[string]struct{}, len(queryTokens))
	for _, c := range top {
		for token := range toTokenSet(c.Content) {
			if _, ok := queryTokens[token]; ok {
				covered[token] = struct{}{}
			}
		}
	}
	return float64(len(covered)) / float64(len(queryTokens))
}

func documentDiversity(top []domain.Candidate) float64 {
	if len(top) == 0 {
		return 0
	}
	names := make(map[string]struct{}, len(top))
	for _, c := range top {
		names[c.DocumentName] = struct{}{}
	}
	return float64(len(names)) / float64(len(top))
}

// hedgePenalty accumulates a small penalty for each top result that hedges
// ("maybe", "possibly", "might").
func hedgePenalty(top []domain.Candidate) float64 {
	penalty := 0.0
	for _, c := range top {
		content := strings.ToLower(c.Content)
		for _, hedge := range hedgingWords {
			if containsWord(content, hedge) {
				penalty += hedgePenaltyStep
				break
			}
		}
	}
	return penalty
}
