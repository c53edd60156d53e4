package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/logging"
)

// BrowserCapturer screenshots the first page of a running Chrome over the
// DevTools protocol. The page URL becomes the snapshot source.
type BrowserCapturer struct {
	browser *rod.Browser
	logger  *zap.Logger
}

// NewBrowserCapturer connects to an existing browser's control URL
// (ws://127.0.0.1:9222/devtools/browser/<id>).
func NewBrowserCapturer(ctx context.Context, controlURL string, logger *zap.Logger) (*BrowserCapturer, error) {
	if strings.TrimSpace(controlURL) == "" {
		return nil, errors.NewInvalidRequest("browser_control_url is required for browser capture")
	}
	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, errors.NewCapture(fmt.Errorf("connect %s: %w", controlURL, err))
	}
	return &BrowserCapturer{
		browser: b,
		logger:  logging.OrNop(logger).Named("capture"),
	}, nil
}

// Capture implements Capturer.
func (c *BrowserCapturer) Capture(ctx context.Context) (Snapshot, error) {
	pages, err := c.browser.Pages()
	if err != nil {
		return Snapshot{}, errors.NewCapture(err)
	}
	if len(pages) == 0 {
		return Snapshot{}, errors.NewCapture(fmt.Errorf("browser has no open pages"))
	}
	page := pages.First()

	source := "browser"
	if info, err := page.Info(); err == nil {
		source = "browser:" + info.URL
		c.logger.Debug("capturing page", zap.String("title", info.Title), zap.String("url", info.URL))
	}

	data, err := page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return Snapshot{}, errors.NewCapture(err)
	}
	return Snapshot{
		Data:      data,
		MediaType: "image/png",
		Source:    source,
		TakenAt:   time.Now(),
	}, nil
}

// Close leaves the user's browser running. rod.Browser.Close would quit it.
func (c *BrowserCapturer) Close() error {
	return nil
}
