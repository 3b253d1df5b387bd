package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
	"github.com/kirillkom/docqa-retrieval/internal/core/ports"
)

const (
	stageRetrieval = "retrieval"
	stageRerank    = "rerank"
	stageDomain    = "domain"
	stageFinal     = "final"
)

type PipelineConfig struct {
	PoolCandidates int
	PoolRerank     int
	PoolDomain     int
	TopK           int

	RerankTimeout time.Duration
	Weights       FusionWeights

	Hybrid bool
	RRFK   int

	DocTypeBonus float64
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PoolCandidates: 100,
		PoolRerank:     50,
		PoolDomain:     20,
		TopK:           10,
		RerankTimeout:  30 * time.Second,
		Weights:        DefaultFusionWeights(),
		RRFK:           60,
		DocTypeBonus:   1.5,
	}
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	def := DefaultPipelineConfig()
	if out.PoolCandidates <= 0 {
		out.PoolCandidates = def.PoolCandidates
	}
	if out.PoolRerank <= 0 || out.PoolRerank > out.PoolCandidates {
		out.PoolRerank = min(def.PoolRerank, out.PoolCandidates)
	}
	if out.PoolDomain <= 0 || out.PoolDomain > out.PoolRerank {
		out.PoolDomain = min(def.PoolDomain, out.PoolRerank)
	}
	if out.TopK <= 0 || out.TopK > out.PoolDomain {
		out.TopK = min(def.TopK, out.PoolDomain)
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = def.RerankTimeout
	}
	if out.Weights == (FusionWeights{}) {
		out.Weights = def.Weights
	}
	if out.RRFK <= 0 {
		out.RRFK = def.RRFK
	}
	if out.DocTypeBonus <= 0 {
		out.DocTypeBonus = def.DocTypeBonus
	}
	return out
}

// RetrievalPipeline turns a natural-language question into a ranked,
// confidence-scored list of passages. Stages narrow the candidate pool
// monotonically: retrieval → rerank → domain scoring → final fusion.
type RetrievalPipeline struct {
	analyzer   *QueryAnalyzer
	ensemble   *EnsembleEmbedder
	vector     ports.VectorIndex
	lexical    ports.LexicalIndex
	reranker   ports.Reranker
	confidence *ConfidenceScorer
	glossary   domain.Glossary
	cfg        PipelineConfig
	logger     *slog.Logger
	obs        StageObserver
}

func NewRetrievalPipeline(
	analyzer *QueryAnalyzer,
	ensemble *EnsembleEmbedder,
	vector ports.VectorIndex,
	lexical ports.LexicalIndex,
	reranker ports.Reranker,
	glossary domain.Glossary,
	cfg PipelineConfig,
	logger *slog.Logger,
	obs StageObserver,
) *RetrievalPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &RetrievalPipeline{
		analyzer:   analyzer,
		ensemble:   ensemble,
		vector:     vector,
		lexical:    lexical,
		reranker:   reranker,
		confidence: NewConfidenceScorer(),
		glossary:   glossary,
		cfg:        cfg.normalize(),
		logger:     logger,
		obs:        obs,
	}
}

// Search runs the full pipeline for one query. The caller always gets either
// a (possibly empty) ranked result list with a confidence score, or a typed
// error: domain.ErrInvalidInput, domain.ErrEmbeddingFailed, or the ctx error
// when cancellation strikes before any candidates exist. Cancellation after
// retrieval yields the partial ranking with Confidence.Cancelled set instead
// of an error.
func (p *RetrievalPipeline) Search(ctx context.Context, query string, topK int) (*domain.SearchResult, error) {
	started := time.Now()
	requestID := uuid.NewString()
	log := p.logger.With("request_id", requestID)

	if topK <= 0 || topK > p.cfg.TopK {
		topK = p.cfg.TopK
	}

	analysis, err := p.analyzer.Analyze(query)
	if err != nil {
		p.obs.ObservePipeline(time.Since(started), "invalid")
		return nil, err
	}
	log.Info("query_analyzed",
		"query_type", analysis.Type,
		"intent_confidence", analysis.IntentConfidence,
		"technical_terms", len(analysis.TechnicalTerms),
	)

	fused, err := p.ensemble.EmbedQuery(ctx, analysis)
	if err != nil {
		status := "embed_failed"
		if ctx.Err() != nil {
			status = "cancelled"
		}
		p.obs.ObservePipeline(time.Since(started), status)
		return nil, err
	}

	candidates, err := p.retrieveCandidates(ctx, fused, analysis)
	if err != nil {
		status := "retrieval_failed"
		if ctx.Err() != nil {
			status = "cancelled"
		}
		p.obs.ObservePipeline(time.Since(started), status)
		return nil, err
	}

	if len(candidates) == 0 {
		// Valid outcome: nothing indexed matches. Stages 2-4 are skipped.
		p.obs.ObservePipeline(time.Since(started), "empty")
		return &domain.SearchResult{
			RequestID: requestID,
			Query:     query,
			Analysis:  analysis,
			Results:   []domain.Candidate{},
			Confidence: domain.ConfidenceAnalysis{
				Query:             analysis.Original,
				ResponseTime:      time.Since(started),
				QualityIndicators: map[string]float64{"intent_confidence": analysis.IntentConfidence},
			},
		}, nil
	}

	stageStart := time.Now()
	reranked, rerankUsed := p.rerankCandidates(ctx, analysis.Enhanced, candidates, p.cfg.PoolRerank)
	p.obs.ObserveStage(stageRerank, time.Since(stageStart), len(reranked))

	// Cancellation from here on is reported as an explicit cancelled result,
	// not an error: stages 3 and 4 make no external calls, so the candidates
	// fetched so far can still be ranked deterministically.
	cancelled := ctx.Err() != nil

	stageStart = time.Now()
	scored := p.scoreDomain(analysis, reranked, p.cfg.PoolDomain)
	p.obs.ObserveStage(stageDomain, time.Since(stageStart), len(scored))

	stageStart = time.Now()
	final := fuseFinal(scored, p.cfg.Weights, topK)
	p.obs.ObserveStage(stageFinal, time.Since(stageStart), len(final))

	confidence := p.confidence.Score(analysis, final, time.Since(started), rerankUsed)
	confidence.Cancelled = cancelled

	status := "ok"
	if cancelled {
		status = "cancelled"
	}
	p.obs.ObservePipeline(time.Since(started), status)
	log.Info("pipeline_complete",
		"results", len(final),
		"confidence", confidence.Confidence,
		"rerank_used", rerankUsed,
		"cancelled", cancelled,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	return &domain.SearchResult{
		RequestID:  requestID,
		Query:      query,
		Analysis:   analysis,
		Results:    final,
		Confidence: confidence,
	}, nil
}

// retrieveCandidates is stage 1: one wide nearest-neighbor query, optionally
// fused with a lexical search in hybrid mode. A lexical failure degrades to
// semantic-only; a vector index failure has no fallback and propagates.
func (p *RetrievalPipeline) retrieveCandidates(ctx context.Context, fused domain.FusedEmbedding, analysis domain.QueryAnalysis) ([]domain.Candidate, error) {
	stageStart := time.Now()

	// Only the version filter constrains the index. The document-type
	// suggestion stays soft: the domain scorer boosts matching documents
	// instead of excluding everything else.
	filter := domain.SearchFilter{Version: analysis.Filters.Version}

	semantic, err := p.vector.Search(ctx, fused.Values, p.cfg.PoolCandidates, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "vector search", err)
	}
	for i := range semantic {
		semantic[i].Stage = stageRetrieval
	}

	candidates := semantic
	if p.cfg.Hybrid && p.lexical != nil {
		lexical, lexErr := p.lexical.SearchTerms(ctx, p.lexicalTerms(analysis), p.cfg.PoolCandidates, filter)
		if lexErr != nil {
			p.logger.Warn("lexical_search_degraded", "error", lexErr)
		} else {
			for i := range lexical {
				lexical[i].Stage = stageRetrieval
			}
			candidates = trimCandidates(fuseCandidatesRRF(semantic, lexical, p.cfg.RRFK), p.cfg.PoolCandidates)
		}
	}

	p.obs.ObserveStage(stageRetrieval, time.Since(stageStart), len(candidates))
	return candidates, nil
}

func (p *RetrievalPipeline) lexicalTerms(analysis domain.QueryAnalysis) []string {
	seen := make(map[string]struct{}, 16)
	out := make([]string, 0, 16)
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	for _, token := range splitAlphaNumLower(analysis.Original) {
		add(token)
	}
	for _, term := range analysis.TechnicalTerms {
		add(term)
	}
	for _, term := range analysis.ExpansionTerms {
		add(term)
	}
	return out
}
