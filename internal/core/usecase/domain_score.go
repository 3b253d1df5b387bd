package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

const (
	glossaryContentPoints  = 1.0
	glossaryFilenamePoints = 0.5
	versionMatchPoints     = 2.0
	domainScoreDivisor     = 10.0
)

// scoreDomain is stage 3: a rescoring pass that boosts candidates matching
// the query's domain vocabulary, shared version tokens and document-type
// naming, then keeps the top K by domain score.
func (p *RetrievalPipeline) scoreDomain(analysis domain.QueryAnalysis, candidates []domain.Candidate, limit int) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	loweredQuery := strings.ToLower(analysis.Original)
	activeTerms := p.activeGlossaryTerms(loweredQuery)
	queryVersions := versionPattern.FindAllString(loweredQuery, -1)
	docType := strings.ReplaceAll(p.docTypeName(analysis.Type), "_", " ")

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		content := strings.ToLower(out[i].Content)
		name := strings.ToLower(out[i].DocumentName)

		score := 0.0
		for _, term := range activeTerms {
			if strings.Contains(content, term) {
				score += glossaryContentPoints
			}
			if strings.Contains(name, term) {
				score += glossaryFilenamePoints
			}
		}
		for _, v := range queryVersions {
			if strings.Contains(content, v) {
				score += versionMatchPoints
				break
			}
		}
		if docType != "" && filenameMatchesDocType(name, docType) {
			score += p.cfg.DocTypeBonus
		}

		score /= domainScoreDivisor
		if score > 1.0 {
			score = 1.0
		}
		out[i].DomainScore = score
		out[i].Stage = stageDomain
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DomainScore != out[j].DomainScore {
			return out[i].DomainScore > out[j].DomainScore
		}
		if out[i].VectorScore != out[j].VectorScore {
			return out[i].VectorScore > out[j].VectorScore
		}
		return out[i].DocumentName < out[j].DocumentName
	})

	return trimCandidates(out, limit)
}

// activeGlossaryTerms returns the terms of every glossary category that is
// itself represented in the query.
func (p *RetrievalPipeline) activeGlossaryTerms(loweredQuery string) []string {
	out := make([]string, 0, 16)
	seen := make(map[string]struct{}, 16)
	for _, terms := range p.glossary {
		active := false
		for _, term := range terms {
			if containsWord(loweredQuery, term) {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		for _, term := range terms {
			term = strings.ToLower(term)
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}

func (p *RetrievalPipeline) docTypeName(queryType domain.QueryType) string {
	return p.analyzer.docTypes[queryType]
}

// filenameMatchesDocType accepts both "installation guide" and file names
// like RNI_Installation_Guide_4.16.pdf.
func filenameMatchesDocType(loweredName, docType string) bool {
	if loweredName == "" {
		return false
	}
	normalized := strings.NewReplacer("_", " ", "-", " ").Replace(loweredName)
	return strings.Contains(normalized, docType)
}
