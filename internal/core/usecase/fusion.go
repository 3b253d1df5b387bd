package usecase

import (
	"sort"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

type fusedCandidate struct {
	candidate domain.Candidate
	score     float64
}

// fuseCandidatesRRF merges the dense and lexical result lists with reciprocal
// rank fusion. The fused rank score lands in VectorScore (stage 1 owns that
// field) and is min-max normalized afterwards so downstream weighting sees
// comparable magnitudes.
func fuseCandidatesRRF(semantic, lexical []domain.Candidate, rrfK int) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(semantic)+len(lexical))
	addList := func(candidates []domain.Candidate) {
		for rank, c := range candidates {
			key := candidateKey(c)
			fused := acc[key]
			fused.candidate = preferRicherCandidate(fused.candidate, c)
			fused.score += 1.0 / float64(rrfK+rank+1)
			acc[key] = fused
		}
	}

	addList(semantic)
	addList(lexical)

	out := make([]domain.Candidate, 0, len(acc))
	for _, fc := range acc {
		c := fc.candidate
		c.VectorScore = fc.score
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VectorScore != out[j].VectorScore {
			return out[i].VectorScore > out[j].VectorScore
		}
		if out[i].DocumentName != out[j].DocumentName {
			return out[i].DocumentName < out[j].DocumentName
		}
		return out[i].Content < out[j].Content
	})

	normalizeVectorScores(out)
	return out
}

// normalizeVectorScores rescales VectorScore to [0,1] in place. A flat list
// maps positive scores to 1.
func normalizeVectorScores(candidates []domain.Candidate) {
	if len(candidates) == 0 {
		return
	}
	minScore := candidates[0].VectorScore
	maxScore := candidates[0].VectorScore
	for _, c := range candidates[1:] {
		if c.VectorScore < minScore {
			minScore = c.VectorScore
		}
		if c.VectorScore > maxScore {
			maxScore = c.VectorScore
		}
	}
	spread := maxScore - minScore
	for i := range candidates {
		if spread <= 0 {
			if candidates[i].VectorScore > 0 {
				candidates[i].VectorScore = 1
			} else {
				candidates[i].VectorScore = 0
			}
			continue
		}
		candidates[i].VectorScore = (candidates[i].VectorScore - minScore) / spread
	}
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

func candidateKey(c domain.Candidate) string {
	return c.DocumentName + "\x00" + c.Content
}

func preferRicherCandidate(current, candidate domain.Candidate) domain.Candidate {
	if current.DocumentName == "" && current.Content == "" {
		return candidate
	}
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.DocumentName == "" && candidate.DocumentName != "" {
		current.DocumentName = candidate.DocumentName
	}
	if current.Metadata == nil && candidate.Metadata != nil {
		current.Metadata = candidate.Metadata
	}
	return current
}
