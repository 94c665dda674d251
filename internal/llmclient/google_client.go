// internal/llmclient/google_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/network"
	"github.com/xkilldash9x/riskgate/api/schemas"
)

// GoogleClient implements schemas.LLMClient on top of the Gemini API SDK.
type GoogleClient struct {
	client         *genai.Client
	config         config.LLMModelConfig
	logger         *zap.Logger
	backoffFactory func() backoff.BackOff
}

// NewGoogleClient initializes the SDK client for the configured model.
func NewGoogleClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GoogleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	if cfg.APITimeout > 0 {
		cc.HTTPClient = network.NewAPIClient(cfg.APITimeout, logger)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GoogleClient{
		client:         client,
		config:         cfg,
		logger:         logger.Named("llm_client.gemini"),
		backoffFactory: defaultBackoff,
	}, nil
}

// Generate sends the prompts to Gemini, retrying throttled and server-side failures.
func (c *GoogleClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	genCfg := c.buildConfig(req)
	contents := genai.Text(req.UserPrompt)

	var text string
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, genCfg)
		if err != nil {
			return c.classify(err)
		}

		text = resp.Text()
		if text == "" {
			return backoff.Permanent(fmt.Errorf("gemini returned no text content"))
		}

		fields := []zap.Field{zap.String("model", c.config.Model), zap.Duration("duration", time.Since(start))}
		if u := resp.UsageMetadata; u != nil {
			fields = append(fields, usageFields(c.config, int(u.PromptTokenCount), int(u.CandidatesTokenCount))...)
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", err
	}
	return text, nil
}

func (c *GoogleClient) buildConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	temp := float32(req.Options.Temperature)
	if temp == 0 {
		temp = c.config.Temperature
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if c.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// classify marks SDK errors as retryable or permanent.
func (c *GoogleClient) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("Gemini API returned error status", zap.Int("status", apiErr.Code), zap.String("message", apiErr.Message))
		if retryableStatus(apiErr.Code) {
			return fmt.Errorf("gemini API error: %w", err)
		}
		return backoff.Permanent(fmt.Errorf("gemini API error: %w", err))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return fmt.Errorf("gemini request failed: %w", err)
}

// Close releases resources. The SDK client holds no long-lived connections of its own.
func (c *GoogleClient) Close() error {
	return nil
}
