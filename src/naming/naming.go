// Package naming produces capture filenames and resolves on-disk
// collisions with a numeric suffix scheme.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MakeFilename returns the base name (no extension) for a capture taken
// at t with the given logical counter.
func MakeFilename(t time.Time, counter int) string {
	return fmt.Sprintf("Snap_%s_%d", t.Format("2006-01-02_15-04-05"), counter)
}

// EnsureUnique returns a path under dir for base+ext that does not exist
// yet, probing base, base_2, base_3, ... in order.
func EnsureUnique(dir, base, ext string) string {
	candidate := filepath.Join(dir, base+ext)
	if !exists(candidate) {
		return candidate
	}
	for i := 2; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
