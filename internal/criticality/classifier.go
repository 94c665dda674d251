package criticality

import (
	"context"
	"strings"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/llmutil"
)

// Classifier produces a structured criticality analysis for a prompt.
// Backends are resolved once at startup and share this interface.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, prompt string) (*schemas.CriticalityAnalysis, error)
}

// LLMClassifier adapts an LLM client to the Classifier interface.
type LLMClassifier struct {
	name   string
	client schemas.LLMClient
	tier   schemas.ModelTier
}

// NewLLMClassifier creates a classifier. tier is only meaningful for routed clients.
func NewLLMClassifier(name string, client schemas.LLMClient, tier schemas.ModelTier) *LLMClassifier {
	return &LLMClassifier{name: name, client: client, tier: tier}
}

func (c *LLMClassifier) Name() string { return c.name }

// Classify calls the model and validates the response. Parse and validation
// failures wrap llmutil.ErrInvalidResponse.
func (c *LLMClassifier) Classify(ctx context.Context, prompt string) (*schemas.CriticalityAnalysis, error) {
	raw, err := c.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: classifierSystemPrompt,
		UserPrompt:   prompt,
		Tier:         c.tier,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	})
	if err != nil {
		return nil, err
	}

	analysis, err := llmutil.ParseJSONResponse[schemas.CriticalityAnalysis](raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateAnalysis(analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// ValidateAnalysis rejects analyses with an unknown level or any missing rationale
// field, and normalizes the level and confidence labels in place.
func ValidateAnalysis(a *schemas.CriticalityAnalysis) error {
	if a == nil {
		return llmutil.Invalidf("analysis is empty")
	}
	level, err := schemas.ParseCriticality(a.CriticalityLevel)
	if err != nil {
		return llmutil.Invalidf("%v", err)
	}

	required := []struct {
		name, value string
	}{
		{"company_business", a.CompanyBusiness},
		{"software_purpose", a.SoftwarePurpose},
		{"relevance", a.Relevance},
		{"impact_if_unavailable", a.ImpactIfUnavailable},
		{"reasoning", a.Reasoning},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return llmutil.Invalidf("criticality %s given without %s", level, f.name)
		}
	}

	a.CriticalityLevel = string(level)
	switch c := strings.ToLower(strings.TrimSpace(a.Confidence)); c {
	case "high", "medium", "low":
		a.Confidence = c
	default:
		a.Confidence = "medium"
	}
	return nil
}
