package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
	"github.com/kirillkom/docqa-retrieval/internal/core/ports"
)

type fakeVectorIndex struct {
	results  []domain.Candidate
	err      error
	gotLimit int
	calls    int
}

func (f *fakeVectorIndex) Search(_ context.Context, _ []float32, limit int, _ domain.SearchFilter) ([]domain.Candidate, error) {
	f.calls++
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeLexicalIndex struct {
	results []domain.Candidate
	err     error
	calls   int
}

func (f *fakeLexicalIndex) SearchTerms(_ context.Context, _ []string, _ int, _ domain.SearchFilter) ([]domain.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeReranker struct {
	passages []string
	scores   []float64
	err      error
	calls    int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, passages []string, topK int) ([]string, []float64, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	if f.passages != nil {
		return f.passages, f.scores, nil
	}
	// Identity rerank: score passages in reverse input order.
	out := make([]string, len(passages))
	scores := make([]float64, len(passages))
	copy(out, passages)
	for i := range scores {
		scores[i] = float64(len(passages)-i) / float64(len(passages))
	}
	return out, scores, nil
}

func newTestPipeline(vector ports.VectorIndex, lexical ports.LexicalIndex, reranker ports.Reranker, cfg PipelineConfig) *RetrievalPipeline {
	glossary := domain.DefaultGlossary()
	analyzer := NewQueryAnalyzer(glossary, nil)
	models := asModels([]*fakeModel{{id: "m", vector: []float32{0.1, 0.2, 0.3}}})
	ensemble := NewEnsembleEmbedder(models, nil, nil, time.Second, nil, nil)
	return NewRetrievalPipeline(analyzer, ensemble, vector, lexical, reranker, glossary, cfg, nil, nil)
}

func corpusCandidates(n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Candidate{
			Content:      fmt.Sprintf("passage %03d about metering", i),
			DocumentName: fmt.Sprintf("doc_%03d.pdf", i),
			VectorScore:  1.0 - float64(i)/float64(n),
		})
	}
	return out
}

func TestPipelineEmptyRetrievalShortCircuits(t *testing.T) {
	vector := &fakeVectorIndex{}
	reranker := &fakeReranker{}
	p := newTestPipeline(vector, nil, reranker, DefaultPipelineConfig())

	result, err := p.Search(context.Background(), "RNI installation", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Results) != 0 {
		t.Fatalf("expected empty results, got %d", len(result.Results))
	}
	if result.Confidence.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want 0.0", result.Confidence.Confidence)
	}
	if reranker.calls != 0 {
		t.Fatalf("stage 2 must not run on empty stage-1 pool")
	}
}

func TestPipelinePoolSizesNonIncreasing(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.PoolCandidates = 40
	cfg.PoolRerank = 20
	cfg.PoolDomain = 8
	cfg.TopK = 5

	vector := &fakeVectorIndex{results: corpusCandidates(40)}
	p := newTestPipeline(vector, nil, &fakeReranker{}, cfg)

	result, err := p.Search(context.Background(), "installation requirements for the collector", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if vector.gotLimit != 40 {
		t.Fatalf("stage-1 pool = %d, want 40", vector.gotLimit)
	}
	if len(result.Results) != 5 {
		t.Fatalf("final results = %d, want 5", len(result.Results))
	}
}

func TestPipelineRerankFallbackKeepsVectorOrder(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.PoolRerank = 3
	cfg.PoolDomain = 3
	cfg.TopK = 3

	// Identical domain scores keep the vector ordering decisive.
	vector := &fakeVectorIndex{results: []domain.Candidate{
		{Content: "first", DocumentName: "a.pdf", VectorScore: 0.9},
		{Content: "second", DocumentName: "b.pdf", VectorScore: 0.8},
		{Content: "third", DocumentName: "c.pdf", VectorScore: 0.7},
	}}
	reranker := &fakeReranker{err: errors.New("rerank service down")}
	p := newTestPipeline(vector, nil, reranker, cfg)

	result, err := p.Search(context.Background(), "what are the main features", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Confidence.RerankUsed {
		t.Fatalf("diagnostics must flag rerank_used=false on fallback")
	}
	want := []string{"first", "second", "third"}
	for i, c := range result.Results {
		if c.Content != want[i] {
			t.Fatalf("fallback order[%d] = %q, want %q", i, c.Content, want[i])
		}
		if c.HasRerankScore {
			t.Fatalf("no rerank score may be attached on fallback")
		}
	}
}

func TestPipelineTotalEmbeddingFailure(t *testing.T) {
	glossary := domain.DefaultGlossary()
	analyzer := NewQueryAnalyzer(glossary, nil)
	models := asModels([]*fakeModel{
		{id: "a", err: errors.New("down")},
		{id: "b", err: errors.New("down")},
	})
	ensemble := NewEnsembleEmbedder(models, nil, nil, time.Second, nil, nil)
	vector := &fakeVectorIndex{results: corpusCandidates(5)}
	p := NewRetrievalPipeline(analyzer, ensemble, vector, nil, &fakeReranker{}, glossary, DefaultPipelineConfig(), nil, nil)

	_, err := p.Search(context.Background(), "anything at all", 5)
	if !errors.Is(err, domain.ErrEmbeddingFailed) {
		t.Fatalf("error = %v, want ErrEmbeddingFailed", err)
	}
	if vector.calls != 0 {
		t.Fatalf("vector index must not be queried after total embedding failure")
	}
}

func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vector := &fakeVectorIndex{results: corpusCandidates(5)}
	p := newTestPipeline(vector, nil, &fakeReranker{}, DefaultPipelineConfig())

	_, err := p.Search(ctx, "installation requirements", 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

type cancellingReranker struct {
	cancel context.CancelFunc
}

func (r *cancellingReranker) Rerank(context.Context, string, []string, int) ([]string, []float64, error) {
	r.cancel()
	return nil, nil, context.Canceled
}

func TestPipelineCancelledAfterRetrievalReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vector := &fakeVectorIndex{results: corpusCandidates(10)}
	p := newTestPipeline(vector, nil, &cancellingReranker{cancel: cancel}, DefaultPipelineConfig())

	result, err := p.Search(ctx, "installation requirements", 5)
	if err != nil {
		t.Fatalf("Search() error = %v, want a partial result once candidates exist", err)
	}
	if !result.Confidence.Cancelled {
		t.Fatal("confidence should carry the cancelled status")
	}
	if len(result.Results) == 0 {
		t.Fatal("the already-retrieved candidates should still be ranked")
	}
	if result.Confidence.RerankUsed {
		t.Error("rerank did not complete and must not be reported as used")
	}
}

func TestPipelineInvalidInput(t *testing.T) {
	p := newTestPipeline(&fakeVectorIndex{}, nil, &fakeReranker{}, DefaultPipelineConfig())
	_, err := p.Search(context.Background(), "   ", 5)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestPipelineHybridDegradesOnLexicalFailure(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.Hybrid = true

	vector := &fakeVectorIndex{results: corpusCandidates(10)}
	lexical := &fakeLexicalIndex{err: errors.New("lexical index down")}
	p := newTestPipeline(vector, lexical, &fakeReranker{}, cfg)

	result, err := p.Search(context.Background(), "collector installation", 5)
	if err != nil {
		t.Fatalf("Search() error = %v, hybrid must degrade to semantic-only", err)
	}
	if lexical.calls != 1 {
		t.Fatalf("lexical index should have been tried once, got %d", lexical.calls)
	}
	if len(result.Results) == 0 {
		t.Fatalf("expected semantic results despite lexical failure")
	}
}

func TestPipelineDeterministicOrdering(t *testing.T) {
	vector := &fakeVectorIndex{results: corpusCandidates(30)}
	p := newTestPipeline(vector, nil, &fakeReranker{}, DefaultPipelineConfig())

	first, err := p.Search(context.Background(), "installation requirements", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	second, err := p.Search(context.Background(), "installation requirements", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(first.Results) != len(second.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		if first.Results[i].Content != second.Results[i].Content {
			t.Fatalf("ordering not deterministic at %d: %q vs %q",
				i, first.Results[i].Content, second.Results[i].Content)
		}
		if first.Results[i].FinalScore != second.Results[i].FinalScore {
			t.Fatalf("final score not deterministic at %d", i)
		}
	}
}

func TestPipelineConfidenceBounds(t *testing.T) {
	vector := &fakeVectorIndex{results: corpusCandidates(20)}
	p := newTestPipeline(vector, nil, &fakeReranker{}, DefaultPipelineConfig())

	queries := []string{
		"RNI 4.16 installation requirements",
		"what are the main features",
		"urgent TLS certificate error",
	}
	for _, q := range queries {
		result, err := p.Search(context.Background(), q, 10)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", q, err)
		}
		c := result.Confidence.Confidence
		if c < 0 || c > 0.99 {
			t.Fatalf("confidence for %q out of [0, 0.99]: %v", q, c)
		}
	}
}
