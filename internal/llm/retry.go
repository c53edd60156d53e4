package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/logging"
)

// MaxAttempts is the bounded-retry budget for every model call site.
const MaxAttempts = 3

// CompleteWithRetry calls gw up to MaxAttempts times and returns the first
// non-empty response. build is invoked once per attempt so each attempt sees
// current state. Non-retryable failures (invalid request) stop immediately.
// After the last failed attempt the error is RETRIES_EXHAUSTED wrapping the
// last cause; no further attempt is made.
func CompleteWithRetry(ctx context.Context, gw Gateway, logger *zap.Logger, build func() Request) (string, error) {
	log := logging.OrNop(logger)

	var lastErr error
	made := 0
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		made = attempt
		req := build()
		text, err := gw.Complete(ctx, req)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.NewEmptyResponse(req.Model)
		}
		if err == nil {
			if attempt > 1 {
				log.Info("model call succeeded after retry", zap.Int("attempt", attempt))
			}
			return text, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return "", err
		}

		log.Warn("model call failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", MaxAttempts),
			zap.String("model", req.Model),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.NewRetriesExhausted(made, lastErr)
}
