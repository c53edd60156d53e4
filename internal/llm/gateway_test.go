package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
)

func TestRequestValidate(t *testing.T) {
	ok := Request{Model: "m", Prompt: "p", MaxTokens: 1}
	require.NoError(t, ok.Validate())

	noModel := ok
	noModel.Model = ""
	require.Error(t, noModel.Validate())

	emptyImage := ok
	emptyImage.Image = &Image{}
	require.True(t, errors.Is(emptyImage.Validate(), errors.ErrInvalidRequest))
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "sk-test"

	gw, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &AnthropicClient{}, gw)

	cfg.Provider = "other"
	_, err = New(context.Background(), cfg, nil)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), config.DefaultConfig(), nil)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNewLimiter(t *testing.T) {
	require.Nil(t, newLimiter(0))
	require.NotNil(t, newLimiter(2))
}
