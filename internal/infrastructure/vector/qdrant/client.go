// Package qdrant adapts a Qdrant collection as the pipeline's vector index.
// The corpus is indexed by an external ingestion service; this client is
// strictly read-only.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "lexical"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Search returns the limit nearest passages for the fused query vector.
// Qdrant reports cosine similarity directly, which serves as the
// vector_score (1 − normalized distance).
func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   denseVectorName,
			"vector": queryVector,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}
	return c.searchPoints(ctx, reqBody, "vector search")
}

// SearchTerms runs a sparse keyword query against the collection's lexical
// named vector. The BM25-style term hashing must match what the ingestion
// side used when the corpus was indexed.
func (c *Client) SearchTerms(
	ctx context.Context,
	terms []string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	sparse := encodeSparseQuery(strings.Join(terms, " "))
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}
	return c.searchPoints(ctx, reqBody, "lexical search")
}

func (c *Client) searchPoints(ctx context.Context, reqBody map[string]any, operation string) ([]domain.Candidate, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Candidate{
			Content:      getStringPayload(r.Payload, "text"),
			DocumentName: getStringPayload(r.Payload, "document"),
			Metadata:     metadataPayload(r.Payload),
			VectorScore:  r.Score,
		})
	}
	return out, nil
}

func buildFilter(filter domain.SearchFilter) map[string]any {
	must := make([]map[string]any, 0, 2)
	if filter.DocumentType != "" {
		must = append(must, map[string]any{
			"key":   "document_type",
			"match": map[string]any{"value": filter.DocumentType},
		})
	}
	if filter.Version != "" {
		must = append(must, map[string]any{
			"key":   "version",
			"match": map[string]any{"value": filter.Version},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// metadataPayload keeps the payload keys that are not already first-class
// candidate fields.
func metadataPayload(payload map[string]any) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch k {
		case "text", "document":
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
