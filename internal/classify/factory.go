package classify

import (
	"fmt"

	"github.com/kiranshivaraju/clipminer/internal/classify/mock"
	"github.com/kiranshivaraju/clipminer/internal/classify/openai"
	"github.com/kiranshivaraju/clipminer/internal/config"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// NewClassifier constructs the appropriate topic/interaction provider based on
// config. Called once at server startup.
func NewClassifier(cfg config.ClassifierConfig) (models.Classifier, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Timeout), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q: must be one of openai, mock", cfg.Provider)
	}
}
