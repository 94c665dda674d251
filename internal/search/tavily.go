// Package search implements the evidence search collaborator against the Tavily API.
package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TavilyClient implements schemas.SearchClient. It never returns a Go error;
// failures are reported in SearchResponse.Error.
type TavilyClient struct {
	cfg        config.SearchConfig
	httpClient *http.Client
	logger     *zap.Logger
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// NewTavilyClient builds a client from configuration.
func NewTavilyClient(cfg config.SearchConfig, logger *zap.Logger) *TavilyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TavilyClient{
		cfg:        cfg,
		httpClient: network.NewAPIClient(timeout, logger),
		logger:     logger.Named("search"),
	}
}

// Search runs one query. maxResults <= 0 uses the configured default.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int, depth schemas.SearchDepth) *schemas.SearchResponse {
	start := time.Now()
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}
	if depth == "" {
		depth = schemas.SearchDepth(c.cfg.Depth)
	}
	if depth != schemas.SearchDepthAdvanced {
		depth = schemas.SearchDepthBasic
	}

	results, err := c.do(ctx, tavilyRequest{Query: query, MaxResults: maxResults, SearchDepth: string(depth)})
	resp := &schemas.SearchResponse{
		Query:       query,
		Results:     results,
		ElapsedTime: time.Since(start),
	}
	if err != nil {
		c.logger.Warn("Search failed; continuing with no results", zap.String("query", query), zap.Error(err))
		resp.Results = []schemas.SearchResult{}
		resp.Error = err.Error()
		return resp
	}

	c.logger.Debug("Search complete",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", resp.ElapsedTime))
	return resp
}

func (c *TavilyClient) do(ctx context.Context, payload tavilyRequest) ([]schemas.SearchResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", httpResp.StatusCode)
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	out := make([]schemas.SearchResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		out = append(out, schemas.SearchResult{
			Title:   CleanText(r.Title),
			URL:     r.URL,
			Content: CleanText(r.Content),
			Score:   r.Score,
		})
	}
	return out, nil
}
