// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
)

// NewModelClient creates a client for a single model configuration.
func NewModelClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGoogleClient(ctx, cfg, logger)
	case config.ProviderOpenAI, config.ProviderOllama:
		return NewOpenAIClient(cfg, logger)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	case "":
		return nil, fmt.Errorf("LLM provider is not specified")
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderOllama)
	}
}

// NewClient builds the tiered router from the default fast and powerful models.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fast, err := namedClient(ctx, cfg, cfg.DefaultFastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fast tier client: %w", err)
	}

	powerful, err := namedClient(ctx, cfg, cfg.DefaultPowerfulModel, logger)
	if err != nil {
		_ = fast.Close()
		return nil, fmt.Errorf("failed to initialize powerful tier client: %w", err)
	}

	return NewLLMRouter(logger, fast, powerful)
}

// NamedClient pairs a backend with the model name it was configured under.
type NamedClient struct {
	Name   string
	Client schemas.LLMClient
}

// NewNamedClients builds one client per name, in the given order. On failure
// every client created so far is closed.
func NewNamedClients(ctx context.Context, cfg config.LLMConfig, names []string, logger *zap.Logger) ([]NamedClient, error) {
	out := make([]NamedClient, 0, len(names))
	for _, name := range names {
		c, err := namedClient(ctx, cfg, name, logger)
		if err != nil {
			for _, nc := range out {
				_ = nc.Client.Close()
			}
			return nil, fmt.Errorf("failed to initialize model %q: %w", name, err)
		}
		out = append(out, NamedClient{Name: name, Client: c})
	}
	return out, nil
}

func namedClient(ctx context.Context, cfg config.LLMConfig, name string, logger *zap.Logger) (schemas.LLMClient, error) {
	if name == "" {
		return nil, fmt.Errorf("model name is empty")
	}
	modelCfg, ok := cfg.Models[name]
	if !ok {
		return nil, fmt.Errorf("configuration for model '%s' not found", name)
	}
	return NewModelClient(ctx, modelCfg, logger)
}
