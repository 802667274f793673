// File: internal/llmclient/gemini.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
)

// GeminiClient talks to the Google Gemini generateContent API for a single
// configured model.
type GeminiClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.LLMModelConfig
}

// -- Gemini API request/response structures --

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiClient initializes the client for one model configuration.
func NewGeminiClient(cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("llmclient.gemini"),
	}, nil
}

// Generate sends the prompts to the Gemini API and returns the generated
// content, retrying transient failures with exponential backoff.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	payload := c.buildRequestPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var responseContent string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying.", zap.Error(err))
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

		var parsed geminiResponsePayload
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(parsed.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := parsed.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("LLM generation complete.",
			zap.String("model", c.cfg.Model),
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", parsed.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", parsed.UsageMetadata.CandidatesTokenCount))

		responseContent = candidate.Content.Parts[0].Text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

func (c *GeminiClient) buildRequestPayload(req schemas.GenerationRequest) geminiRequestPayload {
	temperature := float64(req.Options.Temperature)
	if temperature == 0 {
		temperature = float64(c.cfg.Temperature)
	}

	genConfig := geminiGenerationConfig{
		Temperature:     temperature,
		MaxOutputTokens: c.cfg.MaxTokens,
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMimeType = "application/json"
	}

	return geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.UserPrompt}}},
		},
		SystemInstruction: &geminiSystemInstruction{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		},
		GenerationConfig: genConfig,
	}
}

func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status",
		zap.Int("status", statusCode),
		zap.ByteString("response", body))
	err := fmt.Errorf("gemini API error: status %d", statusCode)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient; retry.
	default:
		return backoff.Permanent(err)
	}
}
