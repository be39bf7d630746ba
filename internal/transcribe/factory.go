package transcribe

import (
	"fmt"

	"github.com/kiranshivaraju/clipminer/internal/config"
	"github.com/kiranshivaraju/clipminer/internal/transcribe/mock"
	"github.com/kiranshivaraju/clipminer/internal/transcribe/openai"
	"github.com/kiranshivaraju/clipminer/pkg/models"
)

// NewTranscriber constructs the appropriate speech-to-text provider based on config.
// Called once at server startup.
func NewTranscriber(cfg config.TranscriberConfig) (models.Transcriber, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Timeout), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown transcriber provider %q: must be one of openai, mock", cfg.Provider)
	}
}
