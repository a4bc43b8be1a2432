package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

// setupGeminiClient points the SDK at a mock server via the base URL
// override.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := setupTestLogger(t)
	cfg := getValidModelConfig()
	cfg.Provider = config.ProviderGemini
	cfg.APIKey = "test-api-key"
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(context.Background(), cfg, logger)
	require.NoError(t, err)
	return client
}

func TestNewGeminiClient_Failure_MissingAPIKey(t *testing.T) {
	logger, _ := setupTestLogger(t)
	cfg := getValidModelConfig()
	cfg.Provider = config.ProviderGemini
	cfg.APIKey = ""

	client, err := NewGeminiClient(context.Background(), cfg, logger)

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestGeminiBuildContents(t *testing.T) {
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {})
	req := makeInferenceRequest(t)

	contents := client.buildContents(req, []byte("img"))

	// One model/user pair per history turn plus the current user message.
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[0].Role)
	assert.JSONEq(t, `{"action":"left_click","coordinate":[500,500]}`, contents[0].Parts[0].Text)
	assert.Equal(t, "user", contents[1].Role)
	assert.Contains(t, contents[1].Parts[0].Text, "Result: ok")

	final := contents[2]
	assert.Equal(t, "user", final.Role)
	require.Len(t, final.Parts, 2)
	assert.Contains(t, final.Parts[0].Text, "Task: find the pricing page")
	require.NotNil(t, final.Parts[1].InlineData)
	assert.Equal(t, "image/png", final.Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("img"), final.Parts[1].InlineData.Data)
}

func TestGeminiActionSchema(t *testing.T) {
	schema := geminiActionSchema()

	require.NotNil(t, schema)
	assert.Equal(t, []string{"action"}, schema.Required, "Only the discriminator is structurally required")
	require.Contains(t, schema.Properties, "action")
	assert.Len(t, schema.Properties["action"].Enum, len(schemas.AllActionKinds))
	assert.Contains(t, schema.Properties, "start_coordinate")
	assert.Contains(t, schema.Properties, "reasoning")
}

func TestGeminiInfer_Success(t *testing.T) {
	actionJSON := `{"action":"answer","text":"the plan costs 12 euro","reasoning":"price visible"}`

	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.Contains(r.URL.Path, "test-model:generateContent"),
			"Unexpected path %s", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "contents")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [{"text": ` + jsonQuote(actionJSON) + `}], "role": "model"},
				"finishReason": "STOP",
				"index": 0
			}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
		}`))
	}

	client := setupGeminiClient(t, handler)

	action, err := client.Infer(context.Background(), makeInferenceRequest(t))

	require.NoError(t, err)
	assert.Equal(t, schemas.ActionAnswer, action.Kind)
	assert.Equal(t, "the plan costs 12 euro", action.Text)
	assert.Equal(t, "price visible", action.Reasoning)
}

func TestGeminiInfer_SafetyBlock(t *testing.T) {
	var attemptCounter int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attemptCounter, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": [{"finishReason": "SAFETY", "index": 0}]}`))
	}

	client := setupGeminiClient(t, handler)

	_, err := client.Infer(context.Background(), makeInferenceRequest(t))

	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrInferenceUnavailable)
	assert.Contains(t, err.Error(), "blocked the request")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attemptCounter), "Safety blocks must not trigger retries")
}

// jsonQuote JSON-quotes a string for embedding in a handwritten response body.
func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
