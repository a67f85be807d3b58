// Package walk enumerates candidate media files under configured roots,
// excluding platform and NAS housekeeping artifacts.
package walk

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/franz/photo-janitor/internal/util"
)

// ImageExtensions are the supported image file extensions
var ImageExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".gif",
	".bmp",
	".tiff",
	".tif",
	".webp",
	".heic", // iPhone photos; recorded but not decodable for fingerprinting
	".heif",
}

// Walker discovers image files in a directory tree
type Walker struct {
	extensions map[string]bool
}

// New creates a Walker. Additional extensions extend the built-in image set.
func New(additionalExts []string) *Walker {
	extMap := make(map[string]bool)
	for _, ext := range ImageExtensions {
		extMap[strings.ToLower(ext)] = true
	}
	for _, ext := range additionalExts {
		extMap[strings.ToLower(ext)] = true
	}

	return &Walker{extensions: extMap}
}

// Walk calls fn for every candidate media file under root. Inaccessible
// entries are logged and skipped; the walk continues. System artifact
// directories are pruned without descending.
func (w *Walker) Walk(ctx context.Context, root string, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil // Continue walking
		}

		if d.IsDir() {
			if path != root && util.IsSystemArtifact(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if util.IsSystemArtifact(path) || !w.IsMediaFile(path) {
			return nil
		}

		if err := fn(path); err != nil {
			return fmt.Errorf("walk callback failed for %s: %w", path, err)
		}

		return nil
	})
}

// IsMediaFile checks if a file has a supported image extension
func (w *Walker) IsMediaFile(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}
