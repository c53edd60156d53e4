package capture

import (
	"os"
	"path/filepath"

	"github.com/hpungsan/mate/internal/errors"
)

// SaveSnapshot writes snap to dir as screenshot_YYYYMMDD_HHMMSS.<ext> and
// returns the path.
func SaveSnapshot(dir string, snap Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.NewPersistence(dir, err)
	}
	name := "screenshot_" + snap.TakenAt.Format("20060102_150405") + extension(snap.MediaType)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, snap.Data, 0600); err != nil {
		return "", errors.NewPersistence(path, err)
	}
	return path, nil
}

func extension(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".png"
}
