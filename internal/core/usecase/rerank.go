package usecase

import (
	"context"
	"sort"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

// rerankCandidates is stage 2: cross-encoder refinement of the stage-1 pool.
// It returns the narrowed pool and whether the rerank capability was
// actually used. Any reranker failure falls back to the incoming ordering;
// this stage is never a hard failure point.
func (p *RetrievalPipeline) rerankCandidates(ctx context.Context, query string, candidates []domain.Candidate, limit int) ([]domain.Candidate, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	if p.reranker == nil {
		return trimCandidates(candidates, limit), false
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Content
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RerankTimeout)
	defer cancel()

	reranked, scores, err := p.reranker.Rerank(callCtx, query, passages, limit)
	if err != nil || len(reranked) != len(scores) {
		p.obs.RerankFallback()
		p.logger.Warn("rerank_fallback", "error", err, "pool", len(candidates))
		return trimCandidates(candidates, limit), false
	}

	// Map returned passages back by exact content. A passage the reranker
	// rewrote cannot be matched and keeps no rerank score.
	scoreByContent := make(map[string]float64, len(reranked))
	for i, passage := range reranked {
		if _, dup := scoreByContent[passage]; !dup {
			scoreByContent[passage] = scores[i]
		}
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		if score, ok := scoreByContent[out[i].Content]; ok {
			out[i].RerankScore = score
			out[i].HasRerankScore = true
		}
		out[i].Stage = stageRerank
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HasRerankScore != out[j].HasRerankScore {
			return out[i].HasRerankScore
		}
		if out[i].RerankScore != out[j].RerankScore {
			return out[i].RerankScore > out[j].RerankScore
		}
		if out[i].VectorScore != out[j].VectorScore {
			return out[i].VectorScore > out[j].VectorScore
		}
		return out[i].DocumentName < out[j].DocumentName
	})

	return trimCandidates(out, limit), true
}
