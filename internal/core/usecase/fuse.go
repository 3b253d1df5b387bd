package usecase

import (
	"sort"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

// FusionWeights combine the three stage scores into the final ranking. They
// are a configuration surface, not constants.
type FusionWeights struct {
	Vector float64
	Rerank float64
	Domain float64
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Vector: 0.4, Rerank: 0.4, Domain: 0.2}
}

// fuseFinal is stage 4: a deterministic weighted sum over the scores the
// earlier stages attached. A missing rerank score counts as zero. Ties break
// by vector score, then document name, so re-running on identical input
// yields an identical order.
func fuseFinal(candidates []domain.Candidate, weights FusionWeights, topK int) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		rerank := 0.0
		if out[i].HasRerankScore {
			rerank = out[i].RerankScore
		}
		out[i].FinalScore = weights.Vector*out[i].VectorScore +
			weights.Rerank*rerank +
			weights.Domain*out[i].DomainScore
		out[i].Stage = stageFinal
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		if out[i].VectorScore != out[j].VectorScore {
			return out[i].VectorScore > out[j].VectorScore
		}
		return out[i].DocumentName < out[j].DocumentName
	})

	return out[:topK]
}
