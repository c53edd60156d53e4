package main

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/mate/internal/capture"
	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/insights"
	"github.com/hpungsan/mate/internal/llm"
	"github.com/hpungsan/mate/internal/mailbox"
	"github.com/hpungsan/mate/internal/ops"
	"github.com/hpungsan/mate/internal/present"
	"github.com/hpungsan/mate/internal/scheduler"
	"github.com/hpungsan/mate/internal/session"
	"github.com/hpungsan/mate/internal/web"
)

// runSession wires the capture loop and, optionally, the dashboard, and
// blocks until ctx is cancelled or one of them fails.
func runSession(ctx context.Context, database *sql.DB, cfg *config.Config, logger *zap.Logger, withWeb bool) error {
	if strings.TrimSpace(cfg.Objective) == "" {
		return errors.NewInvalidRequest("learning objective is required (set LEARNING_OBJECTIVE or pass --objective)")
	}
	if err := cfg.Validate(); err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	if cfg.LinkInterval() < cfg.CaptureInterval() {
		logger.Warn("link interval is shorter than capture interval; links will follow every capture",
			zap.Duration("capture_interval", cfg.CaptureInterval()),
			zap.Duration("link_interval", cfg.LinkInterval()))
	}
	if err := config.LoadAPIKey(cfg); err != nil {
		return errors.NewInvalidRequest(err.Error())
	}

	gw, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	capturer, err := capture.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := capturer.Close(); err != nil {
			logger.Warn("failed to close capturer", zap.Error(err))
		}
	}()

	rt, err := buildRuntime(ctx, database, cfg, gw, logger)
	if err != nil {
		return err
	}

	opts := scheduler.Options{
		CaptureInterval: cfg.CaptureInterval(),
		LinkInterval:    cfg.LinkInterval(),
		Objective:       cfg.Objective,
		Logger:          logger,
	}
	if cfg.SaveScreenshots {
		opts.ScreenshotsDir = cfg.ScreenshotsPath()
	}
	loop := scheduler.New(scheduler.Deps{
		Capturer: capturer,
		Extractor: capture.NewExtractor(gw, capture.ExtractorOptions{
			Model:     cfg.VisionModel,
			MaxTokens: cfg.AnalysisMaxTokens,
			Logger:    logger,
		}),
		Store:      rt.Store,
		Reconciler: rt.Reconciler,
		Generator:  rt.Generator,
		Sink:       present.Multi{rt.Board, present.NewLogSink(logger)},
	}, opts)

	logger.Info("study session started",
		zap.String("objective", cfg.Objective),
		zap.String("source", cfg.CaptureSource),
		zap.Duration("capture_interval", cfg.CaptureInterval()),
		zap.Duration("link_interval", cfg.LinkInterval()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if withWeb && cfg.WebPort > 0 {
		srv, err := web.NewServer(database, cfg, rt, Version, logger)
		if err != nil {
			return errors.NewInternal(err)
		}
		g.Go(func() error {
			return web.Run(gctx, srv, logger)
		})
	}

	err = g.Wait()
	logger.Info("study session stopped", zap.Int("visited", rt.Ledger.Len()))
	return err
}

// buildRuntime assembles the in-process session state: context store,
// summary reconciler, visited ledger, link mailbox, generator and board.
func buildRuntime(ctx context.Context, database *sql.DB, cfg *config.Config, gw llm.Gateway, logger *zap.Logger) (*ops.Runtime, error) {
	var history session.History
	if !cfg.DisableContextHistory {
		history = session.SQLHistory{DB: database}
	}
	store := session.NewContextStore(history, logger)
	if err := store.Restore(ctx); err != nil {
		logger.Warn("failed to restore latest context", zap.Error(err))
	}

	reconciler, err := session.NewReconciler(gw, session.SummaryFile{Path: cfg.SummaryPath()}, session.ReconcilerOptions{
		Model:      cfg.InsightModel,
		MaxTokens:  cfg.SummaryMaxTokens,
		Generation: session.SQLGeneration{DB: database},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	ledger, err := ops.LoadLedger(database, cfg.VisitedSeed)
	if err != nil {
		return nil, err
	}

	links := mailbox.New[[]insights.Link]()
	gen := insights.NewGenerator(gw, ledger, links, insights.Options{
		Model:     cfg.InsightModel,
		MaxTokens: cfg.InsightMaxTokens,
		Recorder:  insights.SQLRecorder{DB: database},
		Session:   insights.SQLSession{DB: database},
		Logger:    logger,
	})

	return &ops.Runtime{
		Objective:  cfg.Objective,
		Store:      store,
		Reconciler: reconciler,
		Ledger:     ledger,
		Links:      links,
		Generator:  gen,
		Board:      present.NewBoard(),
	}, nil
}
