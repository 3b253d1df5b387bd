package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

type searchFake struct {
	err    error
	result *domain.SearchResult
}

func (f searchFake) Search(_ context.Context, query string, topK int) (*domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.SearchResult{
		RequestID: "req-1",
		Query:     query,
		Results:   []domain.Candidate{{Content: "passage", DocumentName: "Guide.pdf", FinalScore: 0.8}},
	}, nil
}

func postSearch(t *testing.T, handler http.Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestSearchReturnsRankedResults(t *testing.T) {
	handler := NewRouter(searchFake{}, nil, 0.35).Handler()

	res := postSearch(t, handler, map[string]any{"query": "RNI installation", "top_k": 5})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var result domain.SearchResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].DocumentName != "Guide.pdf" {
		t.Errorf("results = %+v", result.Results)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Error("response should carry a request id")
	}
}

func TestSearchReportsAnswerable(t *testing.T) {
	confident := &domain.SearchResult{
		Query:      "install",
		Results:    []domain.Candidate{{Content: "passage", FinalScore: 0.9}},
		Confidence: domain.ConfidenceAnalysis{Confidence: 0.8},
	}
	handler := NewRouter(searchFake{result: confident}, nil, 0.35).Handler()

	res := postSearch(t, handler, map[string]any{"query": "install"})
	var body struct {
		Answerable bool `json:"answerable"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Answerable {
		t.Error("confidence above threshold should be answerable")
	}

	hesitant := &domain.SearchResult{
		Query:      "install",
		Results:    []domain.Candidate{{Content: "passage"}},
		Confidence: domain.ConfidenceAnalysis{Confidence: 0.1},
	}
	handler = NewRouter(searchFake{result: hesitant}, nil, 0.35).Handler()
	res = postSearch(t, handler, map[string]any{"query": "install"})
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Answerable {
		t.Error("confidence below threshold should not be answerable")
	}
}

func TestSearchEmptyQueryReturns400(t *testing.T) {
	handler := NewRouter(searchFake{}, nil, 0.35).Handler()

	res := postSearch(t, handler, map[string]any{"query": "   "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchInvalidJSONReturns400(t *testing.T) {
	handler := NewRouter(searchFake{}, nil, 0.35).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte("{")))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchGetMethodNotAllowed(t *testing.T) {
	handler := NewRouter(searchFake{}, nil, 0.35).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestSearchMapsEmbeddingFailureTo502(t *testing.T) {
	handler := NewRouter(
		searchFake{err: domain.WrapError(domain.ErrEmbeddingFailed, "embed query", errors.New("all models down"))},
		nil,
		0.35,
	).Handler()

	res := postSearch(t, handler, map[string]any{"query": "test"})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestSearchMapsInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		searchFake{err: domain.WrapError(domain.ErrInvalidInput, "analyze", errors.New("empty query"))},
		nil,
		0.35,
	).Handler()

	res := postSearch(t, handler, map[string]any{"query": "x"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchMapsTemporaryFailureTo503(t *testing.T) {
	handler := NewRouter(
		searchFake{err: domain.WrapError(domain.ErrTemporary, "vector search", errors.New("qdrant down"))},
		nil,
		0.35,
	).Handler()

	res := postSearch(t, handler, map[string]any{"query": "x"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := NewRouter(searchFake{}, nil, 0.35).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}
