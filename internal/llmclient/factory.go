// File: internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

// NewClient is a factory function that selects the inference provider from
// the configuration.
func NewClient(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (schemas.InferenceClient, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown model provider %q (supported: %s, %s)",
			schemas.ErrConfiguration, cfg.Provider, config.ProviderOllama, config.ProviderGemini)
	}
}
