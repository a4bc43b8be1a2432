// File: internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/config"
)

// GeminiClient implements the inference boundary on the Google genai SDK.
type GeminiClient struct {
	client         *genai.Client
	model          string
	temperature    float32
	timeout        time.Duration
	logger         *zap.Logger
	backoffFactory func() backoff.BackOff
}

var _ schemas.InferenceClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the SDK client. A non-empty cfg.Endpoint
// overrides the API base URL, which also lets tests point the SDK at a local
// server.
func NewGeminiClient(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.APITimeout,
		logger:      logger.Named("llm_client.gemini"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Infer sends the task, history, and current screenshot to the Gemini API and
// returns exactly one validated action.
func (c *GeminiClient) Infer(ctx context.Context, req schemas.InferenceRequest) (schemas.Action, error) {
	img, err := prepareScreenshot(req.Current.Image)
	if err != nil {
		return schemas.Action{}, fmt.Errorf("preparing screenshot: %w", err)
	}

	contents := c.buildContents(req, img)
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    geminiActionSchema(),
	}
	if c.temperature > 0 {
		genCfg.Temperature = genai.Ptr(c.temperature)
	}

	var raw string

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		startTime := time.Now()
		resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, genCfg)
		duration := time.Since(startTime)

		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) {
				c.logger.Error("Gemini API returned error status",
					zap.Int("status", apiErr.Code), zap.String("message", apiErr.Message))
				switch apiErr.Code {
				case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
					return err // Transient errors, retry.
				default:
					return backoff.Permanent(err)
				}
			}
			c.logger.Warn("Network error during Gemini request, retrying...", zap.Error(err))
			return err
		}

		if len(resp.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}
		candidate := resp.Candidates[0]
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == genai.FinishReasonSafety {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content (reason: %s)", candidate.FinishReason)
		}

		fields := []zap.Field{zap.Duration("duration", duration)}
		if resp.UsageMetadata != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
				zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount),
			)
		}
		c.logger.Debug("Inference call complete", fields...)

		raw = candidate.Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return schemas.Action{}, fmt.Errorf("%w: %w", schemas.ErrInferenceUnavailable, err)
	}

	return schemas.ParseAction([]byte(raw))
}

func (c *GeminiClient) buildContents(req schemas.InferenceRequest, img []byte) []*genai.Content {
	var contents []*genai.Content

	for _, turn := range req.History {
		contents = append(contents,
			&genai.Content{Role: "model", Parts: []*genai.Part{{Text: historyActionJSON(turn.Action)}}},
			&genai.Content{Role: "user", Parts: []*genai.Part{{Text: outcomeMessage(turn)}}},
		)
	}

	contents = append(contents, &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: taskMessage(req.Task, req.Corrective)},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: img}},
		},
	})
	return contents
}
