package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/apperrors"
)

// NewClient creates the client for cfg.Provider. It returns
// apperrors.ErrLLMNotConfigured when no model is configured so callers can
// run without a model and rely on default dimension selections.
func NewClient(cfg *Config, logger *zap.Logger) (LLMClient, error) {
	if cfg == nil || cfg.Model == "" {
		return nil, apperrors.ErrLLMNotConfigured
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		c := *cfg
		c.Provider = ProviderOpenAI
		return NewOpenAIClient(&c, logger)
	case ProviderAzure:
		return NewOpenAIClient(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
