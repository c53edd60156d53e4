// Package present defines where the background loop sends results for the
// student to see.
package present

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/insights"
	"github.com/hpungsan/mate/internal/logging"
)

// Sink receives transient text, final markdown, and link lists.
// Implementations must not block the caller for long.
type Sink interface {
	ShowText(text string)
	ShowMarkdown(md string)
	ShowLinks(links []insights.Link)
}

// State is a point-in-time copy of a Board.
type State struct {
	Status    string             `json:"status,omitempty"`
	Markdown  string             `json:"markdown,omitempty"`
	Links     []insights.Link    `json:"links"`
	Insights  *insights.Insights `json:"insights,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Board keeps the latest presented values for readers such as the web UI.
type Board struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{now: time.Now}
}

// ShowText implements Sink.
func (b *Board) ShowText(text string) {
	b.mu.Lock()
	b.state.Status = text
	b.state.UpdatedAt = b.now()
	b.mu.Unlock()
}

// ShowMarkdown implements Sink. It also clears any loading status.
func (b *Board) ShowMarkdown(md string) {
	b.mu.Lock()
	b.state.Markdown = md
	b.state.Status = ""
	b.state.UpdatedAt = b.now()
	b.mu.Unlock()
}

// ShowLinks implements Sink.
func (b *Board) ShowLinks(links []insights.Link) {
	cp := append([]insights.Link(nil), links...)
	b.mu.Lock()
	b.state.Links = cp
	b.state.Status = ""
	b.state.UpdatedAt = b.now()
	b.mu.Unlock()
}

// ShowInsights records a full insight bundle.
func (b *Board) ShowInsights(in *insights.Insights) {
	b.mu.Lock()
	b.state.Insights = in
	b.state.Status = ""
	b.state.UpdatedAt = b.now()
	b.mu.Unlock()
}

// Reset clears everything (session flush).
func (b *Board) Reset() {
	b.mu.Lock()
	b.state = State{UpdatedAt: b.now()}
	b.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.state
	s.Links = append([]insights.Link{}, b.state.Links...)
	return s
}

// LogSink writes presented values to a logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink logs at Info under the "present" name.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logging.OrNop(logger).Named("present")}
}

// ShowText implements Sink.
func (s *LogSink) ShowText(text string) {
	s.logger.Info("status", zap.String("text", text))
}

// ShowMarkdown implements Sink.
func (s *LogSink) ShowMarkdown(md string) {
	s.logger.Info("summary", zap.Int("chars", len(md)))
}

// ShowLinks implements Sink.
func (s *LogSink) ShowLinks(links []insights.Link) {
	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URLOf())
	}
	s.logger.Info("links", zap.Strings("urls", urls))
}

// Multi fans out to every sink in order.
type Multi []Sink

// ShowText implements Sink.
func (m Multi) ShowText(text string) {
	for _, s := range m {
		s.ShowText(text)
	}
}

// ShowMarkdown implements Sink.
func (m Multi) ShowMarkdown(md string) {
	for _, s := range m {
		s.ShowMarkdown(md)
	}
}

// ShowLinks implements Sink.
func (m Multi) ShowLinks(links []insights.Link) {
	for _, s := range m {
		s.ShowLinks(links)
	}
}
