// Package ollama implements the embedding capability against an
// Ollama-compatible server. Each configured ensemble model gets its own
// Model value; they can share one base URL.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/docqa-retrieval/internal/infrastructure/resilience"
)

type Model struct {
	baseURL    string
	modelID    string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

// NewModel builds one embedding model client. ratePerSecond bounds the
// request rate toward the model server; the ensemble fans out one request
// per model per query, so bursts equal the ensemble size.
func NewModel(baseURL, modelID string, executor *resilience.Executor, ratePerSecond float64) *Model {
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return &Model{
		baseURL:    strings.TrimRight(baseURL, "/"),
		modelID:    modelID,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
	}
}

func (m *Model) ID() string { return m.modelID }

// Embed returns the model's vector for text. The caller owns the timeout via
// ctx; retries and the circuit breaker sit below it.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate limit: %w", err)
	}

	request := map[string]any{
		"model": m.modelID,
		"input": []string{text},
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	call := func(callCtx context.Context) error {
		return m.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}
	if m.executor != nil {
		if err := m.executor.Execute(ctx, "embed_"+m.modelID, call, classifyTransportError); err != nil {
			return nil, err
		}
	} else if err := call(ctx); err != nil {
		return nil, err
	}

	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("model %s returned no embedding", m.modelID)
	}
	return response.Embeddings[0], nil
}
