package session

import (
	"os"
	"path/filepath"

	"github.com/hpungsan/mate/internal/errors"
)

// SummaryFile is the flat UTF-8 file holding the rolling summary verbatim.
// A missing file is an empty summary.
type SummaryFile struct {
	Path string
}

// Load returns the stored summary, or "" when the file does not exist.
func (f SummaryFile) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewPersistence(f.Path, err)
	}
	return string(data), nil
}

// Save replaces the file contents atomically (write temp, then rename).
func (f SummaryFile) Save(summary string) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewPersistence(f.Path, err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.tmp")
	if err != nil {
		return errors.NewPersistence(f.Path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.WriteString(summary); err != nil {
		tmp.Close()
		return errors.NewPersistence(f.Path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.NewPersistence(f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewPersistence(f.Path, err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		return errors.NewPersistence(f.Path, err)
	}
	return nil
}

// Delete removes the file. A missing file is fine.
func (f SummaryFile) Delete() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return errors.NewPersistence(f.Path, err)
	}
	return nil
}
