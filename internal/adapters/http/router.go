package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
	"github.com/kirillkom/docqa-retrieval/internal/core/ports"
)

type Router struct {
	search              ports.PassageSearchService
	metrics             http.Handler
	confidenceThreshold float64
}

func NewRouter(search ports.PassageSearchService, metrics http.Handler, confidenceThreshold float64) *Router {
	return &Router{
		search:              search,
		metrics:             metrics,
		confidenceThreshold: confidenceThreshold,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.searchPassages)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) searchPassages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := rt.search.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	// Answerable is the caller-facing answer-vs-decline gate.
	writeJSON(w, http.StatusOK, searchResponse{
		SearchResult: result,
		Answerable:   len(result.Results) > 0 && result.Confidence.Confidence >= rt.confidenceThreshold,
	})
}

type searchResponse struct {
	*domain.SearchResult
	Answerable bool `json:"answerable"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
