package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/hpungsan/mate/internal/errors"
)

// DisplayCapturer grabs a full-screen image of one display.
type DisplayCapturer struct {
	index int
}

// NewDisplayCapturer checks that display index is active.
func NewDisplayCapturer(index int) (*DisplayCapturer, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, errors.NewCapture(fmt.Errorf("no active displays"))
	}
	if index < 0 || index >= n {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("display_index %d out of range (%d active displays)", index, n))
	}
	return &DisplayCapturer{index: index}, nil
}

// Capture implements Capturer.
func (c *DisplayCapturer) Capture(_ context.Context) (Snapshot, error) {
	bounds := screenshot.GetDisplayBounds(c.index)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return Snapshot{}, errors.NewCapture(err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Snapshot{}, errors.NewCapture(err)
	}
	return Snapshot{
		Data:      buf.Bytes(),
		MediaType: "image/png",
		Source:    fmt.Sprintf("display:%d", c.index),
		TakenAt:   time.Now(),
	}, nil
}

// Close implements Capturer.
func (c *DisplayCapturer) Close() error { return nil }
