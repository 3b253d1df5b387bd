package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

func TestSearchDecodesCandidates(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/docs/points/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"score": 0.91,
					"payload": map[string]any{
						"text":          "Install the collector service first.",
						"document":      "Installation_Guide_4.16.pdf",
						"document_type": "installation_guide",
					},
				},
				{
					"score": 0.72,
					"payload": map[string]any{
						"text":     "Overview of the platform.",
						"document": "Overview.pdf",
					},
				},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	got, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].DocumentName != "Installation_Guide_4.16.pdf" || got[0].VectorScore != 0.91 {
		t.Errorf("first candidate = %+v", got[0])
	}
	if got[0].Content != "Install the collector service first." {
		t.Errorf("content = %q", got[0].Content)
	}
	if got[0].Metadata["document_type"] != "installation_guide" {
		t.Errorf("metadata = %v", got[0].Metadata)
	}
	if _, ok := got[0].Metadata["text"]; ok {
		t.Error("text should not be duplicated into metadata")
	}

	vec, ok := gotBody["vector"].(map[string]any)
	if !ok || vec["name"] != denseVectorName {
		t.Errorf("request vector = %v, want named %q", gotBody["vector"], denseVectorName)
	}
	if _, ok := gotBody["filter"]; ok {
		t.Error("empty filter should not be sent")
	}
}

func TestSearchSendsVersionFilter(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	_, err := client.Search(context.Background(), []float32{0.5}, 3, domain.SearchFilter{Version: "4.16"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	filter, ok := gotBody["filter"].(map[string]any)
	if !ok {
		t.Fatalf("no filter in request body: %v", gotBody)
	}
	must, ok := filter["must"].([]any)
	if !ok || len(must) != 1 {
		t.Fatalf("filter must = %v, want one clause", filter["must"])
	}
	clause := must[0].(map[string]any)
	if clause["key"] != "version" {
		t.Errorf("filter key = %v, want version", clause["key"])
	}
}

func TestSearchTermsUsesSparseVector(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	_, err := client.SearchTerms(context.Background(), []string{"rni", "installation"}, 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}

	vec, ok := gotBody["vector"].(map[string]any)
	if !ok || vec["name"] != sparseVectorName {
		t.Fatalf("request vector = %v, want named %q", gotBody["vector"], sparseVectorName)
	}
	sparse, ok := vec["vector"].(map[string]any)
	if !ok {
		t.Fatalf("sparse vector = %v", vec["vector"])
	}
	indices, ok := sparse["indices"].([]any)
	if !ok || len(indices) != 2 {
		t.Errorf("indices = %v, want two hashed terms", sparse["indices"])
	}
}

func TestSearchTermsEmptyQuerySkipsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty term set")
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	got, err := client.SearchTerms(context.Background(), nil, 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates, want none", len(got))
	}
}

func TestSearchErrorStatusIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "missing")
	_, err := client.Search(context.Background(), []float32{0.1}, 5, domain.SearchFilter{})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}
