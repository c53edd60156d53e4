package capture

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hpungsan/mate/internal/errors"
)

// FileCapturer re-reads an image from disk on every capture. Useful for
// headless machines where another tool keeps the file fresh.
type FileCapturer struct {
	path string
}

// NewFileCapturer checks the file is readable now.
func NewFileCapturer(path string) (*FileCapturer, error) {
	if path == "" {
		return nil, errors.NewInvalidRequest("capture_file is required for file capture")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewCapture(err)
	}
	return &FileCapturer{path: path}, nil
}

// Capture implements Capturer.
func (c *FileCapturer) Capture(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return Snapshot{}, errors.NewCapture(err)
	}
	mediaType := http.DetectContentType(data)
	switch mediaType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		return Snapshot{}, errors.NewCapture(fmt.Errorf("%s is %s, not an image", c.path, mediaType))
	}
	return Snapshot{
		Data:      data,
		MediaType: mediaType,
		Source:    "file:" + c.path,
		TakenAt:   time.Now(),
	}, nil
}

// Close implements Capturer.
func (c *FileCapturer) Close() error { return nil }
