package classify_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/clipminer/internal/classify"
	"github.com/kiranshivaraju/clipminer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassifier_OpenAI(t *testing.T) {
	cfg := config.ClassifierConfig{
		Provider: "openai",
		Timeout:  60 * time.Second,
		OpenAI:   config.OpenAIConfig{BaseURL: "https://api.openai.com/v1", APIKey: "sk-test", Model: "gpt-4o-mini"},
	}
	p, err := classify.NewClassifier(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewClassifier_Mock(t *testing.T) {
	cfg := config.ClassifierConfig{Provider: "mock"}
	p, err := classify.NewClassifier(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
}

func TestNewClassifier_Unknown(t *testing.T) {
	cfg := config.ClassifierConfig{Provider: "bert"}
	_, err := classify.NewClassifier(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown classifier provider")
	assert.Contains(t, err.Error(), "bert")
}

func TestNewClassifier_Empty(t *testing.T) {
	cfg := config.ClassifierConfig{Provider: ""}
	_, err := classify.NewClassifier(cfg)
	require.Error(t, err)
}
