// File: internal/llmclient/router.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
)

// Router dispatches generation requests to the fast or powerful model based
// on the request tier. It implements schemas.LLMClient.
type Router struct {
	fast     schemas.LLMClient
	powerful schemas.LLMClient
}

// NewClient builds the router from the LLM configuration. Both tiers must
// resolve to a working provider client.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (*Router, error) {
	fast, err := newProviderClient(cfg.Fast, logger)
	if err != nil {
		return nil, fmt.Errorf("fast model: %w", err)
	}
	powerful, err := newProviderClient(cfg.Powerful, logger)
	if err != nil {
		return nil, fmt.Errorf("powerful model: %w", err)
	}
	return &Router{fast: fast, powerful: powerful}, nil
}

func newProviderClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

// Generate implements schemas.LLMClient.
func (r *Router) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if req.Tier == schemas.TierPowerful {
		return r.powerful.Generate(ctx, req)
	}
	return r.fast.Generate(ctx, req)
}
