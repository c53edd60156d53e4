package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/logging"
)

// GeminiConfig configures GeminiClient.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// GeminiClient implements Gateway on the Google GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewGeminiClient creates a Gemini-backed gateway.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewInvalidRequest("GenAI API key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create GenAI client: %w", err))
	}

	return &GeminiClient{
		client:  client,
		limiter: cfg.Limiter,
		log:     logging.OrNop(cfg.Logger).Named("gemini"),
	}, nil
}

// Complete sends the prompt (and optional inline image) as one user turn.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := wait(ctx, g.limiter); err != nil {
		return "", err
	}

	parts := make([]*genai.Part, 0, 2)
	if req.Image != nil {
		mediaType := req.Image.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, mediaType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	})
	if err != nil {
		return "", errors.NewTransient("GenAI generate failed", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, p := range cand.Content.Parts {
				if p != nil && !p.Thought {
					out.WriteString(p.Text)
				}
			}
			break
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", errors.NewEmptyResponse(req.Model)
	}

	g.log.Debug("request completed",
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(text)))
	return text, nil
}
