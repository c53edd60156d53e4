package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/logging"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicConfig configures AnthropicClient.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// AnthropicClient calls the Messages API directly over HTTP.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AnthropicClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    cfg.Limiter,
		log:        logging.OrNop(cfg.Logger).Named("anthropic"),
	}
}

// Complete sends one user turn (image block first, then the prompt text).
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if c.apiKey == "" {
		return "", errors.NewInvalidRequest("api key not configured")
	}
	if err := wait(ctx, c.limiter); err != nil {
		return "", err
	}

	blocks := make([]anthropicBlock, 0, 2)
	if req.Image != nil {
		mediaType := req.Image.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		blocks = append(blocks, anthropicBlock{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: mediaType,
				Data:      base64.StdEncoding.EncodeToString(req.Image.Data),
			},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: req.Prompt})

	body, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	c.log.Debug("sending request",
		zap.String("model", req.Model),
		zap.Int("prompt_len", len(req.Prompt)),
		zap.Bool("image", req.Image != nil))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.NewTransient("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewTransient("failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
		var e *errors.MateError
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound:
			// malformed request or unknown model: the same call fails again
			e = errors.NewInvalidRequest(msg)
		default:
			e = errors.NewTransient(msg, nil)
		}
		e.Details = map[string]any{"status": resp.StatusCode}
		return "", e
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.NewTransient("failed to parse response", err)
	}
	if parsed.Error != nil {
		return "", errors.NewTransient("API error: "+parsed.Error.Message, nil)
	}

	var out strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", errors.NewEmptyResponse(req.Model)
	}

	c.log.Debug("request completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(text)))
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
