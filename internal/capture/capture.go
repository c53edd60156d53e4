// Package capture takes still snapshots of what the student is looking at and
// turns them into context documents.
package capture

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
)

// Snapshot is one captured image.
type Snapshot struct {
	Data      []byte
	MediaType string
	Source    string // e.g. "display:0", "browser:https://go.dev/tour"
	TakenAt   time.Time
}

// Capturer produces snapshots on demand.
type Capturer interface {
	Capture(ctx context.Context) (Snapshot, error)
	Close() error
}

// New builds the capturer selected by cfg.CaptureSource. Misconfiguration
// (no such display, unreachable browser, missing file) fails here rather
// than on every tick.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Capturer, error) {
	switch cfg.CaptureSource {
	case config.CaptureDisplay, "":
		return NewDisplayCapturer(cfg.DisplayIndex)
	case config.CaptureBrowser:
		return NewBrowserCapturer(ctx, cfg.BrowserControlURL, logger)
	case config.CaptureFile:
		return NewFileCapturer(cfg.Path(cfg.CaptureFile))
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown capture source %q", cfg.CaptureSource))
}
