package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/llm"
	"github.com/hpungsan/mate/internal/llm/llmtest"
)

func request() llm.Request {
	return llm.Request{Model: "m", Prompt: "p", MaxTokens: 10}
}

func TestCompleteWithRetry_FirstAttemptSucceeds(t *testing.T) {
	gw := llmtest.New(llmtest.Text("hello"))

	got, err := llm.CompleteWithRetry(context.Background(), gw, zaptest.NewLogger(t), request)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
	require.Equal(t, 1, gw.Calls())
}

func TestCompleteWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	gw := llmtest.New(
		llmtest.Fail(errors.NewTransient("429", nil)),
		llmtest.Text("   "), // whitespace-only counts as a failed attempt
		llmtest.Text("third time"),
	)

	got, err := llm.CompleteWithRetry(context.Background(), gw, zaptest.NewLogger(t), request)
	require.NoError(t, err)
	require.Equal(t, "third time", got)
	require.Equal(t, 3, gw.Calls())
}

func TestCompleteWithRetry_ExhaustsAfterThreeAttempts(t *testing.T) {
	gw := llmtest.New(
		llmtest.Fail(errors.NewTransient("down", nil)),
		llmtest.Fail(errors.NewEmptyResponse("m")),
		llmtest.Fail(errors.NewTransient("still down", nil)),
		llmtest.Text("never reached"),
	)

	_, err := llm.CompleteWithRetry(context.Background(), gw, zaptest.NewLogger(t), request)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrRetriesExhausted))
	require.Equal(t, llm.MaxAttempts, gw.Calls(), "no fourth attempt")
}

func TestCompleteWithRetry_InvalidRequestNotRetried(t *testing.T) {
	gw := llmtest.New(llmtest.Fail(errors.NewInvalidRequest("prompt is required")))

	_, err := llm.CompleteWithRetry(context.Background(), gw, nil, request)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Equal(t, 1, gw.Calls())
}

func TestCompleteWithRetry_BuildCalledPerAttempt(t *testing.T) {
	gw := llmtest.New(llmtest.Fail(errors.NewTransient("x", nil)), llmtest.Text("ok"))
	builds := 0

	_, err := llm.CompleteWithRetry(context.Background(), gw, nil, func() llm.Request {
		builds++
		return request()
	})
	require.NoError(t, err)
	require.Equal(t, 2, builds)
}

func TestCompleteWithRetry_StopsWhenContextDone(t *testing.T) {
	gw := llmtest.New(llmtest.Fail(errors.NewTransient("x", nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := llm.CompleteWithRetry(ctx, gw, nil, request)
	require.True(t, errors.Is(err, errors.ErrRetriesExhausted))
	require.Equal(t, 1, gw.Calls())
}
