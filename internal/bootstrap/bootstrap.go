// Package bootstrap wires configuration into a runnable search service.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/kirillkom/docqa-retrieval/internal/config"
	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
	"github.com/kirillkom/docqa-retrieval/internal/core/ports"
	"github.com/kirillkom/docqa-retrieval/internal/core/usecase"
	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/cache"
	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/glossary"
	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/lexical/postgres"
	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/docqa-retrieval/internal/observability/metrics"
)

const serviceName = "retrievald"

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.PipelineMetrics
	Pipeline *usecase.RetrievalPipeline

	closeFn func()
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pipelineMetrics := metrics.NewPipelineMetrics(serviceName)
	observer := pipelineMetrics.Observer(serviceName)

	gloss, err := glossary.Load(cfg.GlossaryPath)
	if err != nil {
		logger.Warn("glossary_fallback", "path", cfg.GlossaryPath, "error", err)
		gloss = domain.DefaultGlossary()
	}
	logger.Info("glossary_loaded", "categories", gloss.Categories())

	modelConfigs := cfg.Models()
	if len(modelConfigs) == 0 {
		return nil, fmt.Errorf("no embedding models configured")
	}
	executor := resilience.NewExecutor(resilience.DefaultConfig())
	models := make([]ports.EmbeddingModel, 0, len(modelConfigs))
	for _, mc := range modelConfigs {
		models = append(models, ollama.NewModel(cfg.OllamaURL, mc.ID, executor, cfg.EmbedRateLimit))
	}

	embedCache := cache.NewEmbeddingCache(cfg.EmbedCacheSize, cfg.EmbedCacheTTL)
	ensemble := usecase.NewEnsembleEmbedder(models, modelConfigs, embedCache, cfg.EmbedTimeout, logger, observer)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	// Hybrid mode prefers Postgres full-text search when a DSN is set and
	// falls back to the sparse vector on the Qdrant collection.
	var lexicalIndex ports.LexicalIndex
	closeFn := func() {}
	if cfg.Hybrid() {
		if cfg.PostgresDSN != "" {
			db, err := postgres.OpenDB(cfg.PostgresDSN)
			if err != nil {
				return nil, fmt.Errorf("open postgres: %w", err)
			}
			lexicalIndex = postgres.NewIndex(db)
			closeFn = func() { _ = db.Close() }
		} else {
			lexicalIndex = vectorIndex
		}
	}

	reranker := tei.New(cfg.RerankURL)
	analyzer := usecase.NewQueryAnalyzer(gloss, logger)

	pipeline := usecase.NewRetrievalPipeline(
		analyzer,
		ensemble,
		vectorIndex,
		lexicalIndex,
		reranker,
		gloss,
		usecase.PipelineConfig{
			PoolCandidates: cfg.PoolCandidates,
			PoolRerank:     cfg.PoolRerank,
			PoolDomain:     cfg.PoolDomain,
			TopK:           cfg.TopK,
			RerankTimeout:  cfg.RerankTimeout,
			Weights: usecase.FusionWeights{
				Vector: cfg.FusionVectorWeight,
				Rerank: cfg.FusionRerankWeight,
				Domain: cfg.FusionDomainWeight,
			},
			Hybrid:       cfg.Hybrid(),
			RRFK:         cfg.FusionRRFK,
			DocTypeBonus: cfg.DomainDocTypeBonus,
		},
		logger,
		observer,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  pipelineMetrics,
		Pipeline: pipeline,
		closeFn:  closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
