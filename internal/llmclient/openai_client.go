// internal/llmclient/openai_client.go
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
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultOllamaEndpoint = "http://localhost:11434/v1/chat/completions"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint,
// which also covers local Ollama servers.
type OpenAIClient struct {
	config   config.LLMModelConfig
	endpoint string
	poster   *jsonPoster
	logger   *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient initializes the client. Ollama models need no API key.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	endpoint := cfg.Endpoint
	switch cfg.Provider {
	case config.ProviderOllama:
		if endpoint == "" {
			endpoint = defaultOllamaEndpoint
		}
	default:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		if endpoint == "" {
			endpoint = defaultOpenAIEndpoint
		}
	}

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	l := logger.Named("llm_client." + string(cfg.Provider))
	return &OpenAIClient{
		config:   cfg,
		endpoint: endpoint,
		logger:   l,
		poster: &jsonPoster{
			provider:       string(cfg.Provider),
			httpClient:     network.NewAPIClient(timeout, l),
			logger:         l,
			backoffFactory: defaultBackoff,
		},
	}, nil
}

// Generate sends a chat completion request and returns the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	payload := c.buildRequest(req)

	headers := map[string]string{}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	start := time.Now()
	var resp chatResponse
	if err := c.poster.post(ctx, c.endpoint, headers, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s API returned no content", c.config.Provider)
	}

	fields := []zap.Field{zap.String("model", c.config.Model), zap.Duration("duration", time.Since(start))}
	c.logger.Info("LLM generation complete", append(fields, usageFields(c.config, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)...)
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) buildRequest(req schemas.GenerationRequest) chatRequest {
	temp := req.Options.Temperature
	if temp == 0 {
		temp = float64(c.config.Temperature)
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	out := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: temp,
		MaxTokens:   c.config.MaxTokens,
	}
	if req.Options.ForceJSONFormat {
		out.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}
	return out
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.poster.httpClient.CloseIdleConnections()
	return nil
}
