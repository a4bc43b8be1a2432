// File: internal/llmclient/ollama_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

// OllamaClient implements the inference boundary against a local Ollama
// server using its native chat API with schema-constrained output.
type OllamaClient struct {
	chatURL        string
	model          string
	temperature    float32
	httpClient     *http.Client
	logger         *zap.Logger
	backoffFactory func() backoff.BackOff
}

var _ schemas.InferenceClient = (*OllamaClient)(nil)

// -- Ollama API Request/Response Structures (Internal to this file) --

type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   map[string]any      `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	Error           string `json:"error"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// NewOllamaClient initializes the client against the configured endpoint.
func NewOllamaClient(cfg config.ModelConfig, logger *zap.Logger) (*OllamaClient, error) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("ollama endpoint is required")
	}

	return &OllamaClient{
		chatURL:     endpoint + "/api/chat",
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("llm_client.ollama"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Infer sends the task, history, and current screenshot to the model and
// returns exactly one validated action.
func (c *OllamaClient) Infer(ctx context.Context, req schemas.InferenceRequest) (schemas.Action, error) {
	img, err := prepareScreenshot(req.Current.Image)
	if err != nil {
		return schemas.Action{}, fmt.Errorf("preparing screenshot: %w", err)
	}

	body, err := json.Marshal(c.buildChatRequest(req, img))
	if err != nil {
		return schemas.Action{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var raw, thinking string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Ollama request failed, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var parsed ollamaChatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if parsed.Error != "" {
			return backoff.Permanent(fmt.Errorf("ollama error: %s", parsed.Error))
		}

		c.logger.Debug("Inference call complete",
			zap.Duration("duration", duration),
			zap.Int("response_bytes", len(respBody)),
			zap.Int("prompt_tokens", parsed.PromptEvalCount),
			zap.Int("completion_tokens", parsed.EvalCount),
			zap.String("done_reason", parsed.DoneReason),
		)

		raw = parsed.Message.Content
		thinking = parsed.Message.Thinking
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return schemas.Action{}, fmt.Errorf("%w: %w", schemas.ErrInferenceUnavailable, err)
	}

	action, err := schemas.ParseAction([]byte(raw))
	if err != nil {
		return schemas.Action{}, err
	}
	// Models that think out of band get their reasoning carried over when
	// the structured output left the field empty.
	if action.Reasoning == "" {
		action.Reasoning = thinking
	}
	return action, nil
}

func (c *OllamaClient) buildChatRequest(req schemas.InferenceRequest, img []byte) ollamaChatRequest {
	messages := []ollamaChatMessage{{Role: "system", Content: systemPrompt}}

	for _, turn := range req.History {
		messages = append(messages,
			ollamaChatMessage{Role: "assistant", Content: historyActionJSON(turn.Action)},
			ollamaChatMessage{Role: "user", Content: outcomeMessage(turn)},
		)
	}

	messages = append(messages, ollamaChatMessage{
		Role:    "user",
		Content: taskMessage(req.Task, req.Corrective),
		Images:  []string{base64.StdEncoding.EncodeToString(img)},
	})

	chatReq := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   actionFormatSchema(),
	}
	if c.temperature > 0 {
		chatReq.Options = map[string]any{"temperature": c.temperature}
	}
	return chatReq
}

func (c *OllamaClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Ollama API returned error status",
		zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("ollama API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}
