// internal/llmclient/anthropic_client.go
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/network"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
	defaultAnthropicTokens   = 2048
)

// AnthropicClient implements schemas.LLMClient for the Messages API.
type AnthropicClient struct {
	config   config.LLMModelConfig
	endpoint string
	poster   *jsonPoster
	logger   *zap.Logger
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicClient initializes the client.
func NewAnthropicClient(cfg config.LLMModelConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	l := logger.Named("llm_client.anthropic")
	return &AnthropicClient{
		config:   cfg,
		endpoint: endpoint,
		logger:   l,
		poster: &jsonPoster{
			provider:       "anthropic",
			httpClient:     network.NewAPIClient(timeout, l),
			logger:         l,
			backoffFactory: defaultBackoff,
		},
	}, nil
}

// Generate sends a single-turn message and concatenates the returned text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	payload := c.buildRequest(req)
	headers := map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": anthropicVersion,
	}

	start := time.Now()
	var resp anthropicResponse
	if err := c.poster.post(ctx, c.endpoint, headers, payload, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic API returned no text content (stop_reason: %s)", resp.StopReason)
	}

	fields := []zap.Field{zap.String("model", c.config.Model), zap.Duration("duration", time.Since(start))}
	c.logger.Info("LLM generation complete", append(fields, usageFields(c.config, resp.Usage.InputTokens, resp.Usage.OutputTokens)...)...)
	return sb.String(), nil
}

func (c *AnthropicClient) buildRequest(req schemas.GenerationRequest) anthropicRequest {
	temp := req.Options.Temperature
	if temp == 0 {
		temp = float64(c.config.Temperature)
	}
	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicTokens
	}

	system := req.SystemPrompt
	// The Messages API has no JSON mode; the instruction travels in the system prompt.
	if req.Options.ForceJSONFormat {
		system = strings.TrimSpace(system + "\n\nRespond with a single valid JSON object and nothing else.")
	}

	return anthropicRequest{
		Model:       c.config.Model,
		System:      system,
		Messages:    []chatMessage{{Role: "user", Content: req.UserPrompt}},
		MaxTokens:   maxTokens,
		Temperature: temp,
	}
}

// Close releases idle connections.
func (c *AnthropicClient) Close() error {
	c.poster.httpClient.CloseIdleConnections()
	return nil
}
