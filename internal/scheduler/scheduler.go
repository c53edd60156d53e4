// Package scheduler drives the background capture and link-generation loop.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/capture"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/insights"
	"github.com/hpungsan/mate/internal/logging"
	"github.com/hpungsan/mate/internal/present"
	"github.com/hpungsan/mate/internal/session"
)

// State is the loop's current step.
type State int32

const (
	Idle State = iota
	Capturing
	Extracting
	Reconciling
	Generating
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Extracting:
		return "extracting"
	case Reconciling:
		return "reconciling"
	case Generating:
		return "generating"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Extractor turns a snapshot into a context document.
type Extractor interface {
	Extract(ctx context.Context, snap capture.Snapshot) (session.Document, error)
}

// Reconciler folds a document into the rolling summary.
type Reconciler interface {
	Reconcile(ctx context.Context, objective string, doc session.Document) (string, error)
}

// Generator produces follow-up links.
type Generator interface {
	GenerateLinks(ctx context.Context, objective, screen string) (*insights.Insights, error)
}

// Deps are the collaborators the loop coordinates.
type Deps struct {
	Capturer   capture.Capturer
	Extractor  Extractor
	Store      *session.ContextStore
	Reconciler Reconciler
	Generator  Generator
	Sink       present.Sink
}

// Options configures the loop cadence.
type Options struct {
	CaptureInterval time.Duration
	LinkInterval    time.Duration
	Objective       string
	ScreenshotsDir  string // empty disables saving snapshots
	Logger          *zap.Logger
	Now             func() time.Time
}

// Loading texts shown while the slow cycle runs.
const (
	SummaryLoadingText = "Updating session summary..."
	LinksLoadingText   = "Generating insights..."
	ErrorText          = "Error calling API"
)

// Loop runs capture cycles every CaptureInterval and, when a document is
// held, a reconcile + generate cycle every LinkInterval.
type Loop struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	state   atomic.Int32
	running atomic.Bool

	// touched only by the loop goroutine
	lastLinkGeneration time.Time
}

// New creates a loop. Sink may be nil.
func New(deps Deps, opts Options) *Loop {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if deps.Sink == nil {
		deps.Sink = present.Multi{}
	}
	l := &Loop{
		deps:   deps,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("scheduler"),
		now:    now,
	}
	l.lastLinkGeneration = now()
	return l
}

// State returns the current step. Safe from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Run blocks until ctx is done, then moves to Stopped and returns nil.
// Cancelling ctx never interrupts an in-flight step: model calls run on a
// context detached from ctx and the stop is observed between steps.
func (l *Loop) Run(ctx context.Context) error {
	if l.opts.CaptureInterval <= 0 {
		return errors.NewInvalidRequest("capture interval must be positive")
	}
	if !l.running.CompareAndSwap(false, true) {
		return errors.NewInvalidRequest("scheduler is already running")
	}

	work := context.WithoutCancel(ctx)
	ticker := time.NewTicker(l.opts.CaptureInterval)
	defer ticker.Stop()

	l.logger.Info("scheduler started",
		zap.Duration("capture_interval", l.opts.CaptureInterval),
		zap.Duration("link_interval", l.opts.LinkInterval))

	for {
		select {
		case <-ctx.Done():
			l.setState(Stopped)
			l.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue // stop wins over a pending tick
			}
			l.Step(work)
		}
	}
}

// Step runs one iteration: a capture cycle, then the link cycle when it is
// due. It never panics and always leaves the loop Idle.
func (l *Loop) Step(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		l.setState(Idle)
	}()

	l.captureCycle(ctx)

	if l.linkCycleDue() {
		l.linkCycle(ctx)
	}
}

func (l *Loop) captureCycle(ctx context.Context) {
	l.setState(Capturing)
	snap, err := l.deps.Capturer.Capture(ctx)
	if err != nil {
		l.logger.Warn("capture failed, skipping cycle", zap.Error(err))
		return
	}

	if l.opts.ScreenshotsDir != "" {
		if path, err := capture.SaveSnapshot(l.opts.ScreenshotsDir, snap); err != nil {
			l.logger.Warn("failed to save screenshot", zap.Error(err))
		} else {
			l.logger.Debug("screenshot saved", zap.String("path", path))
		}
	}

	l.setState(Extracting)
	doc, err := l.deps.Extractor.Extract(ctx, snap)
	if err != nil {
		l.logger.Warn("extraction failed, keeping previous context", zap.Error(err))
		return
	}
	l.deps.Store.Replace(ctx, doc)
	l.logger.Info("context updated", zap.String("id", doc.ID), zap.String("source", doc.Source))
}

func (l *Loop) linkCycleDue() bool {
	if l.deps.Reconciler == nil && l.deps.Generator == nil {
		return false
	}
	return l.now().Sub(l.lastLinkGeneration) >= l.opts.LinkInterval
}

func (l *Loop) linkCycle(ctx context.Context) {
	doc, ok := l.deps.Store.Latest()
	if !ok {
		return
	}
	// advanced after the attempt whatever the outcome
	defer func() { l.lastLinkGeneration = l.now() }()

	if l.deps.Reconciler != nil {
		l.setState(Reconciling)
		l.deps.Sink.ShowText(SummaryLoadingText)
		summary, err := l.deps.Reconciler.Reconcile(ctx, l.opts.Objective, doc)
		if err != nil {
			l.logger.Warn("summary reconcile failed", zap.String("code", string(errors.CodeOf(err))), zap.Error(err))
		} else if summary != "" {
			l.deps.Sink.ShowMarkdown(summary)
		}
	}

	if l.deps.Generator != nil {
		l.setState(Generating)
		l.deps.Sink.ShowText(LinksLoadingText)
		out, err := l.deps.Generator.GenerateLinks(ctx, l.opts.Objective, doc.Text)
		if err != nil {
			l.logger.Warn("link generation failed", zap.String("code", string(errors.CodeOf(err))), zap.Error(err))
			l.deps.Sink.ShowText(ErrorText)
			return
		}
		if len(out.Links) > 0 {
			l.deps.Sink.ShowLinks(out.Links)
		}
		l.logger.Info("links generated", zap.Int("count", len(out.Links)))
	}
}
