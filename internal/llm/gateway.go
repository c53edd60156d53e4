// Package llm is the model gateway: one request (text, or text plus an image)
// to a hosted language model, returning generated text or a typed failure.
// The gateway never retries; callers use CompleteWithRetry.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
)

// Image is an attachment sent alongside the prompt in the same user turn.
type Image struct {
	Data      []byte
	MediaType string // e.g. "image/png"
}

// Request is one completion call.
type Request struct {
	Model     string
	Prompt    string
	Image     *Image
	MaxTokens int
}

// Gateway sends a single request to a hosted model.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Validate rejects requests that must never reach the network.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.NewInvalidRequest("prompt is required")
	}
	if r.MaxTokens <= 0 {
		return errors.NewInvalidRequest("max_tokens must be positive")
	}
	if r.Model == "" {
		return errors.NewInvalidRequest("model is required")
	}
	if r.Image != nil && len(r.Image.Data) == 0 {
		return errors.NewInvalidRequest("image attachment is empty")
	}
	return nil
}

// New builds the gateway for cfg.Provider. cfg.APIKey must be loaded.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Gateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewInvalidRequest("api key not configured")
	}
	limiter := newLimiter(cfg.RequestsPerSecond)

	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.RequestTimeout(),
			Limiter: limiter,
			Logger:  logger,
		}), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.RequestTimeout(),
			Limiter: limiter,
			Logger:  logger,
		})
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown provider %q", cfg.Provider))
}

// newLimiter returns nil (no pacing) for a non-positive rate.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// wait blocks on the limiter, if any.
func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return errors.NewTransient("request pacing interrupted", err)
	}
	return nil
}
