package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

func TestRerankAttachesScoresAndNarrows(t *testing.T) {
	reranker := &fakeReranker{
		passages: []string{"beta", "alpha"},
		scores:   []float64{0.95, 0.40},
	}
	p := newTestPipeline(&fakeVectorIndex{}, nil, reranker, DefaultPipelineConfig())

	candidates := []domain.Candidate{
		{Content: "alpha", DocumentName: "a.pdf", VectorScore: 0.9},
		{Content: "beta", DocumentName: "b.pdf", VectorScore: 0.8},
		{Content: "gamma", DocumentName: "c.pdf", VectorScore: 0.7},
	}

	out, used := p.rerankCandidates(context.Background(), "q", candidates, 2)
	if !used {
		t.Fatalf("expected rerank to be used")
	}
	if len(out) != 2 {
		t.Fatalf("stage 2 kept %d, want 2", len(out))
	}
	if out[0].Content != "beta" || out[0].RerankScore != 0.95 || !out[0].HasRerankScore {
		t.Fatalf("unexpected top candidate: %+v", out[0])
	}
	if out[0].VectorScore != 0.8 {
		t.Fatalf("vector score must be preserved, got %v", out[0].VectorScore)
	}
}

func TestRerankUnmatchedPassageKeepsNoScore(t *testing.T) {
	reranker := &fakeReranker{
		passages: []string{"rewritten text the service returned"},
		scores:   []float64{0.9},
	}
	p := newTestPipeline(&fakeVectorIndex{}, nil, reranker, DefaultPipelineConfig())

	candidates := []domain.Candidate{
		{Content: "alpha", DocumentName: "a.pdf", VectorScore: 0.9},
	}

	out, used := p.rerankCandidates(context.Background(), "q", candidates, 1)
	if !used {
		t.Fatalf("expected rerank to be used")
	}
	if out[0].HasRerankScore {
		t.Fatalf("unmatched passage must keep no rerank score: %+v", out[0])
	}
}

func TestRerankFallbackOnError(t *testing.T) {
	reranker := &fakeReranker{err: errors.New("503 service unavailable")}
	p := newTestPipeline(&fakeVectorIndex{}, nil, reranker, DefaultPipelineConfig())

	candidates := []domain.Candidate{
		{Content: "alpha", DocumentName: "a.pdf", VectorScore: 0.9},
		{Content: "beta", DocumentName: "b.pdf", VectorScore: 0.8},
		{Content: "gamma", DocumentName: "c.pdf", VectorScore: 0.7},
	}

	out, used := p.rerankCandidates(context.Background(), "q", candidates, 2)
	if used {
		t.Fatalf("fallback must report rerank unused")
	}
	if len(out) != 2 || out[0].Content != "alpha" || out[1].Content != "beta" {
		t.Fatalf("fallback must keep top candidates by vector score: %+v", out)
	}
}

func TestRerankNilRerankerTrimsOnly(t *testing.T) {
	p := newTestPipeline(&fakeVectorIndex{}, nil, nil, DefaultPipelineConfig())
	candidates := corpusCandidates(10)

	out, used := p.rerankCandidates(context.Background(), "q", candidates, 4)
	if used {
		t.Fatalf("no reranker configured, used must be false")
	}
	if len(out) != 4 {
		t.Fatalf("expected trim to 4, got %d", len(out))
	}
}

func TestRerankMismatchedArraysFallsBack(t *testing.T) {
	reranker := &fakeReranker{
		passages: []string{"alpha", "beta"},
		scores:   []float64{0.9},
	}
	p := newTestPipeline(&fakeVectorIndex{}, nil, reranker, DefaultPipelineConfig())

	candidates := []domain.Candidate{
		{Content: "alpha", DocumentName: "a.pdf", VectorScore: 0.9},
		{Content: "beta", DocumentName: "b.pdf", VectorScore: 0.8},
	}

	_, used := p.rerankCandidates(context.Background(), "q", candidates, 2)
	if used {
		t.Fatalf("mismatched parallel arrays must trigger fallback")
	}
}
