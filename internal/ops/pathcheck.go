package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
)

// ValidateExportPath checks an export destination:
// 1. no ".." traversal
// 2. .jsonl extension
// 3. directly inside <base>/exports (no subdirectories)
// 4. not a symlink
//
// The "no subdirectories" rule leaves no intermediate directory to swap for a
// symlink between validation and open; the final component is opened with
// O_NOFOLLOW.
func ValidateExportPath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	allowed, err := filepath.Abs(ExportsDir(cfg))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid exports directory: %v", err))
	}
	if filepath.Dir(absPath) != filepath.Clean(allowed) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must be directly in %s", allowed))
	}

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// ExportsDir is <base>/exports.
func ExportsDir(cfg *config.Config) string {
	return filepath.Join(cfg.BaseDir, "exports")
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// forward slashes from user input on Windows
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
