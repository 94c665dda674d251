package llmclient

import (
	"math"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/internal/config"
)

// EstimateCost prices one call in US dollars, rounded to micro-dollars. ok is
// false when the model has no pricing configured.
func EstimateCost(p config.ModelPricing, promptTokens, completionTokens int) (cost float64, ok bool) {
	if p.InputPer1M <= 0 && p.OutputPer1M <= 0 {
		return 0, false
	}
	cost = float64(promptTokens)/1e6*p.InputPer1M + float64(completionTokens)/1e6*p.OutputPer1M
	return math.Round(cost*1e6) / 1e6, true
}

func usageFields(cfg config.LLMModelConfig, promptTokens, completionTokens int) []zap.Field {
	fields := []zap.Field{
		zap.Int("prompt_tokens", promptTokens),
		zap.Int("completion_tokens", completionTokens),
	}
	if cost, ok := EstimateCost(cfg.Pricing, promptTokens, completionTokens); ok {
		fields = append(fields, zap.Float64("estimated_cost_usd", cost))
	}
	return fields
}
