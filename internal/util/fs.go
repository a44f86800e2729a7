package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates an artifact or upload directory, parents included, and
// leaves an existing directory alone.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin anchors a client-supplied filename under root. Only the base name
// survives, so traversal segments in an uploaded document name cannot escape
// the upload directory.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}
