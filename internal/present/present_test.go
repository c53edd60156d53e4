package present

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/mate/internal/insights"
)

func TestBoard(t *testing.T) {
	b := NewBoard()

	b.ShowText("Generating insights...")
	require.Equal(t, "Generating insights...", b.Snapshot().Status)

	b.ShowMarkdown("# Session\n\nlists")
	s := b.Snapshot()
	require.Equal(t, "# Session\n\nlists", s.Markdown)
	require.Empty(t, s.Status, "final result replaces loading text")

	links := []insights.Link{insights.NewLink("https://a.example", "A")}
	b.ShowLinks(links)
	links[0] = insights.NewLink("https://mutated.example", "")
	require.Equal(t, "https://a.example", b.Snapshot().Links[0].URLOf())

	b.Reset()
	s = b.Snapshot()
	require.Empty(t, s.Markdown)
	require.NotNil(t, s.Links)
	require.Empty(t, s.Links)
}

func TestMultiAndLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	board := NewBoard()
	m := Multi{board, NewLogSink(zap.New(core))}

	m.ShowText("loading")
	m.ShowMarkdown("done")
	m.ShowLinks([]insights.Link{insights.NewLink("https://a.example", "")})

	require.Equal(t, 3, logs.Len())
	require.Equal(t, "links", logs.All()[2].Message)
	require.Equal(t, "done", board.Snapshot().Markdown)
}
