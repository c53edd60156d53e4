package insights

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/ledger"
	"github.com/hpungsan/mate/internal/llm"
	"github.com/hpungsan/mate/internal/logging"
	"github.com/hpungsan/mate/internal/mailbox"
)

// Recorder persists suggested links. Failures are logged, never returned.
type Recorder interface {
	RecordSuggestions(ctx context.Context, objective string, links []Link) error
}

// Session tracks the session generation shared by every process using the
// same database, and persists the ledger under a generation.
type Session interface {
	Generation() (int64, error)
	// SaveVisited stores urls and reports false, writing nothing, when
	// generation is no longer current.
	SaveVisited(generation int64, urls []string) (bool, error)
}

// Options configures a Generator.
type Options struct {
	Model     string
	MaxTokens int
	Recorder  Recorder
	Session   Session
	Logger    *zap.Logger
}

// Generator produces link suggestions and insight bundles. It owns the
// visited-URL ledger: it is the only writer.
type Generator struct {
	gateway   llm.Gateway
	ledger    *ledger.Ledger
	links     *mailbox.Mailbox[[]Link]
	recorder  Recorder
	session   Session
	model     string
	maxTokens int
	logger    *zap.Logger

	mu    sync.Mutex
	epoch uint64 // bumped by every reset
	gen   int64  // session generation the ledger belongs to
}

// NewGenerator wires a generator. links may be nil.
func NewGenerator(gw llm.Gateway, l *ledger.Ledger, links *mailbox.Mailbox[[]Link], opts Options) *Generator {
	g := &Generator{
		gateway:   gw,
		ledger:    l,
		links:     links,
		recorder:  opts.Recorder,
		session:   opts.Session,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		logger:    logging.OrNop(opts.Logger).Named("insights"),
	}
	if g.session != nil {
		gen, err := g.session.Generation()
		if err != nil {
			g.logger.Warn("failed to read session generation", zap.Error(err))
		}
		g.gen = gen
	}
	return g
}

// Reset empties the ledger and the link mailbox. Replies to calls already
// in flight are discarded.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	if g.session != nil {
		if gen, err := g.session.Generation(); err == nil {
			g.gen = gen
		}
	}
}

func (g *Generator) resetLocked() {
	g.epoch++
	g.ledger.Clear()
	if g.links != nil {
		g.links.Clear()
	}
}

// syncLocked resets when another process flushed the session.
func (g *Generator) syncLocked() {
	if g.session == nil {
		return
	}
	gen, err := g.session.Generation()
	if err != nil {
		g.logger.Warn("failed to read session generation", zap.Error(err))
		return
	}
	if gen != g.gen {
		g.logger.Info("session flushed elsewhere; resetting ledger",
			zap.Int64("from", g.gen), zap.Int64("to", gen))
		g.resetLocked()
		g.gen = gen
	}
}

func (g *Generator) begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncLocked()
	return g.epoch
}

// Ledger returns the visited-URL ledger.
func (g *Generator) Ledger() *ledger.Ledger {
	return g.ledger
}

// GenerateLinks asks for follow-up links for the given screen context.
func (g *Generator) GenerateLinks(ctx context.Context, objective, screen string) (*Insights, error) {
	return g.generate(ctx, objective, "links", func() string {
		return LinksPrompt(objective, screen, g.ledger.Rendered())
	})
}

// GenerateInsights asks for a summary, links and suggestions in one call.
func (g *Generator) GenerateInsights(ctx context.Context, objective, screen string) (*Insights, error) {
	return g.generate(ctx, objective, "insights", func() string {
		return InsightsPrompt(objective, screen, g.ledger.Rendered())
	})
}

func (g *Generator) generate(ctx context.Context, objective, kind string, prompt func() string) (*Insights, error) {
	epoch := g.begin()
	raw, err := llm.CompleteWithRetry(ctx, g.gateway, g.logger, func() llm.Request {
		return llm.Request{
			Model:     g.model,
			Prompt:    prompt(),
			MaxTokens: g.maxTokens,
		}
	})
	if err != nil {
		return nil, err
	}
	g.logger.Debug("model reply", zap.String("kind", kind), zap.Int("chars", len(raw)))

	out, err := Parse(raw)
	if err != nil {
		g.logger.Warn("could not decode model reply", zap.String("kind", kind), zap.Error(err))
		return nil, err
	}

	if !g.apply(ctx, objective, out, epoch) {
		g.logger.Info("discarding reply from a flushed session", zap.String("kind", kind))
		return &Insights{}, nil
	}
	return out, nil
}

// apply records the side effects of a decoded reply: only the first link's
// URL joins the ledger, and the whole list replaces the mailbox value. It
// reports false when the session was reset since epoch.
func (g *Generator) apply(ctx context.Context, objective string, out *Insights, epoch uint64) bool {
	g.mu.Lock()
	g.syncLocked()
	if g.epoch != epoch {
		g.mu.Unlock()
		return false
	}
	if len(out.Links) == 0 {
		g.mu.Unlock()
		return true
	}

	if first := strings.TrimSpace(out.FirstURL()); first != "" && g.ledger.Add(first) {
		g.logger.Debug("ledger updated", zap.String("url", first), zap.Int("size", g.ledger.Len()))
		if !g.persistLocked() {
			g.resetLocked()
			g.mu.Unlock()
			return false
		}
	}

	if g.links != nil {
		g.links.Put(out.Links)
	}
	g.mu.Unlock()

	if g.recorder != nil {
		if err := g.recorder.RecordSuggestions(ctx, objective, out.Links); err != nil {
			g.logger.Warn("failed to record suggestions", zap.Error(err))
		}
	}
	return true
}

// persistLocked writes the ledger under the current generation. It reports
// false when a flush elsewhere made the generation stale; write errors are
// logged and the in-memory ledger stays authoritative.
func (g *Generator) persistLocked() bool {
	if g.session == nil {
		return true
	}
	ok, err := g.session.SaveVisited(g.gen, g.ledger.Snapshot())
	if err != nil {
		g.logger.Warn("failed to persist visited urls", zap.Int("count", g.ledger.Len()), zap.Error(err))
		return true
	}
	if !ok {
		if gen, err := g.session.Generation(); err == nil {
			g.gen = gen
		}
	}
	return ok
}
