// Package tei calls a text-embeddings-inference rerank endpoint to score
// query/passage pairs with a cross-encoder.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank returns the topK passages in cross-encoder order together with
// their relevance scores. The service returns indices into the request
// texts, so passages map back positionally.
func (c *Client) Rerank(
	ctx context.Context,
	query string,
	passages []string,
	topK int,
) ([]string, []float64, error) {
	if len(passages) == 0 {
		return nil, nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: passages})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, nil, fmt.Errorf("rerank status: %s: %s", resp.Status, msg)
		}
		return nil, nil, fmt.Errorf("rerank status: %s", resp.Status)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, nil, fmt.Errorf("decode rerank response: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}
	ordered := make([]string, 0, topK)
	scores := make([]float64, 0, topK)
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(passages) {
			return nil, nil, fmt.Errorf("rerank index %d out of range for %d passages", r.Index, len(passages))
		}
		ordered = append(ordered, passages[r.Index])
		scores = append(scores, r.Score)
		if len(ordered) == topK {
			break
		}
	}
	return ordered, scores, nil
}
