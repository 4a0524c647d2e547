package ai

import (
	"fmt"

	"github.com/medsignal/medsignal/internal/ai/mock"
	"github.com/medsignal/medsignal/internal/ai/openai"
	"github.com/medsignal/medsignal/internal/config"
	"github.com/medsignal/medsignal/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, mock", cfg.Provider)
	}
}
