package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

func TestNewClient_Ollama(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := getValidModelConfig()

	client, err := NewClient(context.Background(), cfg, logger)

	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, client)
}

func TestNewClient_Gemini(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := getValidModelConfig()
	cfg.Provider = config.ProviderGemini
	cfg.APIKey = "test-api-key"
	cfg.Endpoint = ""

	client, err := NewClient(context.Background(), cfg, logger)

	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, client)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := getValidModelConfig()
	cfg.Provider = "anthropic"

	client, err := NewClient(context.Background(), cfg, logger)

	require.Error(t, err)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, schemas.ErrConfiguration)
	assert.Contains(t, err.Error(), "anthropic")
}
