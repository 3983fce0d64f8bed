// Package scratch manages the directory holding transient media files.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glizzus/encore/internal/generator"
)

type Dir struct {
	root string
	ids  generator.Generator[string]
}

// New creates root if needed. A nil ids falls back to UUIDv4 names.
func New(root string, ids generator.Generator[string]) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir %s: %w", root, err)
	}
	if ids == nil {
		ids = &generator.UUIDV4Generator{}
	}
	return &Dir{root: root, ids: ids}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Path returns a fresh path inside the directory named prefix-<id><ext>.
// Nothing is created on disk.
func (d *Dir) Path(prefix, ext string) (string, error) {
	id, err := d.ids.Next()
	if err != nil {
		return "", fmt.Errorf("failed to generate scratch name: %w", err)
	}
	return filepath.Join(d.root, prefix+"-"+id+ext), nil
}

// Purge removes everything in the directory.
func (d *Dir) Purge() (int, error) {
	return d.removeWhere(func(os.FileInfo) bool { return true })
}

// Sweep removes entries last modified more than maxAge before now.
func (d *Dir) Sweep(maxAge time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-maxAge)
	return d.removeWhere(func(info os.FileInfo) bool {
		return info.ModTime().Before(cutoff)
	})
}

func (d *Dir) removeWhere(match func(os.FileInfo) bool) (int, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read scratch dir: %w", err)
	}

	var removed int
	var errs []error
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if !match(info) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(d.root, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
