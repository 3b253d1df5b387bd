package ports

import (
	"context"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

// EmbeddingModel is one embedding capability of the ensemble. Implementations
// must honor ctx deadlines; the ensemble applies a per-model timeout.
type EmbeddingModel interface {
	ID() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex performs nearest-neighbor search over the pre-indexed corpus.
// An empty result slice is a valid outcome, not an error.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// LexicalIndex performs keyword search over the corpus; used only in hybrid
// retrieval mode.
type LexicalIndex interface {
	SearchTerms(ctx context.Context, terms []string, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// Reranker scores query/passage pairs jointly. Returned passages and scores
// are parallel slices in rerank order.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string, topK int) ([]string, []float64, error)
}

// EmbeddingCache stores per-model query vectors. Writes are insert-if-absent
// in spirit; last-writer-wins is acceptable because values for the same key
// are computed identically.
type EmbeddingCache interface {
	Get(key string) ([]float32, bool)
	Set(key string, vector []float32)
}
