package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

type Config struct {
	APIPort  string
	LogLevel string

	// Embedding ensemble: comma-separated "model_id:base_weight:specialization".
	OllamaURL      string
	EmbedModels    string
	EmbedTimeout   time.Duration
	EmbedRateLimit float64
	EmbedCacheSize int
	EmbedCacheTTL  time.Duration

	QdrantURL        string
	QdrantCollection string

	// Optional lexical index for hybrid retrieval.
	PostgresDSN   string
	RetrievalMode string
	FusionRRFK    int

	RerankURL     string
	RerankTimeout time.Duration

	PoolCandidates int
	PoolRerank     int
	PoolDomain     int
	TopK           int

	FusionVectorWeight float64
	FusionRerankWeight float64
	FusionDomainWeight float64

	DomainDocTypeBonus float64

	GlossaryPath string

	// Threshold callers use to gate answer-vs-decline decisions.
	ConfidenceThreshold float64
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		OllamaURL:      mustEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbedModels:    mustEnv("EMBED_MODELS", "nomic-embed-text:0.4:technical,mxbai-embed-large:0.35:general,all-minilm:0.25:domain"),
		EmbedTimeout:   mustEnvDuration("EMBED_TIMEOUT", 15*time.Second),
		EmbedRateLimit: mustEnvFloat("EMBED_RATE_LIMIT", 10),
		EmbedCacheSize: mustEnvInt("EMBED_CACHE_SIZE", 512),
		EmbedCacheTTL:  mustEnvDuration("EMBED_CACHE_TTL", 10*time.Minute),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "passages"),

		PostgresDSN:   mustEnv("POSTGRES_DSN", ""),
		RetrievalMode: mustEnv("RETRIEVAL_MODE", "semantic"),
		FusionRRFK:    mustEnvInt("FUSION_RRF_K", 60),

		RerankURL:     mustEnv("RERANK_URL", "http://localhost:8787"),
		RerankTimeout: mustEnvDuration("RERANK_TIMEOUT", 30*time.Second),

		PoolCandidates: mustEnvInt("POOL_CANDIDATES", 100),
		PoolRerank:     mustEnvInt("POOL_RERANK", 50),
		PoolDomain:     mustEnvInt("POOL_DOMAIN", 20),
		TopK:           mustEnvInt("TOP_K", 10),

		FusionVectorWeight: mustEnvFloat("FUSION_VECTOR_WEIGHT", 0.4),
		FusionRerankWeight: mustEnvFloat("FUSION_RERANK_WEIGHT", 0.4),
		FusionDomainWeight: mustEnvFloat("FUSION_DOMAIN_WEIGHT", 0.2),

		DomainDocTypeBonus: mustEnvFloat("DOMAIN_DOCTYPE_BONUS", 1.5),

		GlossaryPath: mustEnv("GLOSSARY_PATH", ""),

		ConfidenceThreshold: mustEnvFloat("CONFIDENCE_THRESHOLD", 0.35),
	}
}

// Models parses EMBED_MODELS. Malformed entries are skipped so a single bad
// entry cannot take the whole ensemble down.
func (c Config) Models() []domain.EmbeddingModelConfig {
	out := make([]domain.EmbeddingModelConfig, 0, 4)
	for _, entry := range strings.Split(c.EmbedModels, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if parts[0] == "" {
			continue
		}
		cfg := domain.EmbeddingModelConfig{
			ID:             parts[0],
			BaseWeight:     1.0,
			Specialization: domain.SpecializationGeneral,
		}
		if len(parts) > 1 {
			if w, err := strconv.ParseFloat(parts[1], 64); err == nil && w > 0 {
				cfg.BaseWeight = w
			}
		}
		if len(parts) > 2 {
			switch domain.ModelSpecialization(parts[2]) {
			case domain.SpecializationTechnical, domain.SpecializationGeneral, domain.SpecializationDomain:
				cfg.Specialization = domain.ModelSpecialization(parts[2])
			}
		}
		out = append(out, cfg)
	}
	return out
}

// Hybrid reports whether lexical retrieval should run alongside vector search.
func (c Config) Hybrid() bool {
	return strings.EqualFold(strings.TrimSpace(c.RetrievalMode), "hybrid")
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
