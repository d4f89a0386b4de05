// Package file provides file utility functions, including crash-safe atomic writes.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
)

// AtomicWrite writes data to a temporary file in the destination directory and
// renames it over the target path, so a crash or a concurrent reader never
// observes a partially written file. Parent directories are created if missing.
//
// Callers mutating a file shared with other callers must pair this with a
// keyed mutex on the destination path.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	if err := atomicwriter.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("could not write file %s atomically: %w", path, err)
	}

	return nil
}
