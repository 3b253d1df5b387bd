package ports

import (
	"context"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

// PassageSearchService is the inbound contract for the retrieval pipeline.
type PassageSearchService interface {
	Search(ctx context.Context, query string, topK int) (*domain.SearchResult, error)
}
