package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
	"github.com/kirillkom/docqa-retrieval/internal/core/ports"
)

const (
	technicalSpecBoost = 1.5
	generalSpecBoost   = 1.2
	domainSpecBoost    = 2.0
)

// EnsembleEmbedder fans a query out to every configured embedding model,
// weights the answers by query characteristics and fuses them into one
// vector. Partial model failure is normal; only total failure is an error.
type EnsembleEmbedder struct {
	models  []ports.EmbeddingModel
	configs map[string]domain.EmbeddingModelConfig
	cache   ports.EmbeddingCache
	timeout time.Duration
	logger  *slog.Logger
	obs     StageObserver
}

func NewEnsembleEmbedder(
	models []ports.EmbeddingModel,
	configs []domain.EmbeddingModelConfig,
	cache ports.EmbeddingCache,
	timeout time.Duration,
	logger *slog.Logger,
	obs StageObserver,
) *EnsembleEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = NopObserver{}
	}
	cfgByID := make(map[string]domain.EmbeddingModelConfig, len(configs))
	for _, c := range configs {
		cfgByID[c.ID] = c
	}
	return &EnsembleEmbedder{
		models:  models,
		configs: cfgByID,
		cache:   cache,
		timeout: timeout,
		logger:  logger,
		obs:     obs,
	}
}

type modelResult struct {
	embedding domain.ModelEmbedding
	err       error
}

// EmbedQuery runs all model calls concurrently with independent timeouts and
// fuses whichever succeed. The bounded wait is the per-model timeout, not the
// sum across models.
func (e *EnsembleEmbedder) EmbedQuery(ctx context.Context, analysis domain.QueryAnalysis) (domain.FusedEmbedding, error) {
	if len(e.models) == 0 {
		return domain.FusedEmbedding{}, fmt.Errorf("embed query: no models configured: %w", domain.ErrEmbeddingFailed)
	}

	weights := e.adaptiveWeights(analysis)
	results := make(chan modelResult, len(e.models))

	var wg sync.WaitGroup
	for _, model := range e.models {
		wg.Add(1)
		go func(m ports.EmbeddingModel) {
			defer wg.Done()
			results <- e.embedOne(ctx, m, analysis.Enhanced, weights[m.ID()])
		}(model)
	}
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return domain.FusedEmbedding{}, fmt.Errorf("embed query: %w", err)
	}

	ok := make([]domain.ModelEmbedding, 0, len(e.models))
	var lastErr error
	for res := range results {
		if res.err != nil {
			lastErr = res.err
			e.obs.ModelFailure(res.embedding.ModelID)
			e.logger.Warn("embed_model_failed", "model", res.embedding.ModelID, "error", res.err)
			continue
		}
		ok = append(ok, res.embedding)
	}

	if len(ok) == 0 {
		return domain.FusedEmbedding{}, domain.WrapError(domain.ErrEmbeddingFailed, "embed query", lastErr)
	}

	return fuseEmbeddings(ok), nil
}

func (e *EnsembleEmbedder) embedOne(ctx context.Context, model ports.EmbeddingModel, text string, weight float64) modelResult {
	embedding := domain.ModelEmbedding{ModelID: model.ID(), Weight: weight}

	key := model.ID() + "|" + normalizeCacheKey(text)
	if e.cache != nil {
		if vec, hit := e.cache.Get(key); hit {
			e.obs.CacheLookup(true)
			embedding.Values = vec
			return modelResult{embedding: embedding}
		}
		e.obs.CacheLookup(false)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	values, err := model.Embed(callCtx, text)
	if err != nil {
		return modelResult{embedding: embedding, err: err}
	}
	if len(values) == 0 {
		return modelResult{embedding: embedding, err: fmt.Errorf("model %s returned empty vector", model.ID())}
	}
	if e.cache != nil {
		e.cache.Set(key, values)
	}
	embedding.Values = values
	return modelResult{embedding: embedding}
}

// adaptiveWeights starts from each model's configured base weight and shifts
// mass toward the specializations that fit the analyzed query.
func (e *EnsembleEmbedder) adaptiveWeights(analysis domain.QueryAnalysis) map[string]float64 {
	technical := isTechnicalQuery(analysis)
	domainHeavy := hasDomainToken(analysis)

	out := make(map[string]float64, len(e.models))
	for _, model := range e.models {
		cfg, known := e.configs[model.ID()]
		weight := 1.0
		spec := domain.SpecializationGeneral
		if known {
			weight = cfg.BaseWeight
			spec = cfg.Specialization
		}
		if technical {
			switch spec {
			case domain.SpecializationTechnical:
				weight *= technicalSpecBoost
			case domain.SpecializationGeneral:
				weight *= generalSpecBoost
			}
		}
		if domainHeavy && spec == domain.SpecializationDomain {
			weight *= domainSpecBoost
		}
		out[model.ID()] = weight
	}
	return out
}

// fuseEmbeddings fuses only models sharing the dimension of the
// highest-weight responder. Zero-padding mismatched dimensions conflates
// unrelated axes across model families, so mismatched models are left out
// and their weight is redistributed.
func fuseEmbeddings(results []domain.ModelEmbedding) domain.FusedEmbedding {
	best := results[0]
	for _, r := range results[1:] {
		if r.Weight > best.Weight {
			best = r
		}
	}

	group := make([]domain.ModelEmbedding, 0, len(results))
	totalWeight := 0.0
	for _, r := range results {
		if len(r.Values) == len(best.Values) {
			group = append(group, r)
			totalWeight += r.Weight
		}
	}
	if totalWeight <= 0 {
		// Degenerate weights; fall back to the single best responder.
		group = []domain.ModelEmbedding{best}
		totalWeight = 1.0
		group[0].Weight = 1.0
	}

	fusedWeights := make(map[string]float64, len(group))
	values := make([]float32, len(best.Values))
	for _, r := range group {
		norm := r.Weight / totalWeight
		fusedWeights[r.ModelID] = norm
		for i, v := range r.Values {
			values[i] += float32(norm) * v
		}
	}

	return domain.FusedEmbedding{
		Values:       values,
		ModelWeights: fusedWeights,
	}
}

func isTechnicalQuery(analysis domain.QueryAnalysis) bool {
	switch analysis.Type {
	case domain.QueryInstallation, domain.QueryConfiguration, domain.QueryIntegration:
		return true
	}
	lowered := strings.ToLower(analysis.Original)
	for _, term := range []string{"install", "configur", "integrat", "api"} {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

func hasDomainToken(analysis domain.QueryAnalysis) bool {
	if analysis.Filters.Version != "" {
		return true
	}
	for _, term := range analysis.TechnicalTerms {
		// Product names surface as acronyms or title-cased sequences.
		if acronymPattern.MatchString(term) || titleCasePattern.MatchString(term) {
			return true
		}
	}
	return false
}

func normalizeCacheKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
