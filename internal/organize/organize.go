// Package organize moves photos into per-year directories based on their
// embedded capture date, falling back to filesystem modification time.
package organize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/photo-janitor/internal/meta"
	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/util"
	"github.com/franz/photo-janitor/internal/walk"
)

// UnknownYearBucket collects files whose year cannot be determined
const UnknownYearBucket = "unsorted"

// Config holds organizer configuration
type Config struct {
	Source         string
	Destination    string
	DryRun         bool
	AdditionalExts []string
	RetryConfig    *util.RetryConfig
	Logger         *report.EventLogger
}

// Organizer moves photos into <destination>/<year>/ directories
type Organizer struct {
	source      string
	destination string
	dryRun      bool
	walker      *walk.Walker
	retryConfig *util.RetryConfig
	logger      *report.EventLogger
}

// New creates a new Organizer
func New(cfg *Config) *Organizer {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = util.DefaultRetryConfig()
	}

	return &Organizer{
		source:      cfg.Source,
		destination: cfg.Destination,
		dryRun:      cfg.DryRun,
		walker:      walk.New(cfg.AdditionalExts),
		retryConfig: cfg.RetryConfig,
		logger:      cfg.Logger,
	}
}

// Result represents organize results
type Result struct {
	FilesFound int
	Moved      int
	Skipped    int
	Errors     []error
}

// Run walks the source tree and moves each photo into its year directory.
// Files are processed sequentially; organizing competes with nothing and
// sequential moves are gentler on NAS mounts.
func (o *Organizer) Run(ctx context.Context) (*Result, error) {
	if o.source == "" || o.destination == "" {
		return nil, fmt.Errorf("source and destination required: %w", util.ErrInvalidConfig)
	}

	util.InfoLog("Organizing %s -> %s by year", o.source, o.destination)
	if o.dryRun {
		util.InfoLog("DRY-RUN mode: no files will be moved")
	}

	result := &Result{
		Errors: make([]error, 0),
	}

	err := o.walker.Walk(ctx, o.source, func(path string) error {
		result.FilesFound++

		moved, err := o.organizeFile(ctx, path)
		if err != nil {
			util.ErrorLog("Failed to organize %s: %v", path, err)
			result.Errors = append(result.Errors, err)
			return nil // Keep going
		}
		if moved {
			result.Moved++
		} else {
			result.Skipped++
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	util.SuccessLog("Organize complete: %d found, %d moved, %d skipped, %d errors",
		result.FilesFound, result.Moved, result.Skipped, len(result.Errors))

	return result, nil
}

// organizeFile moves one photo into its year bucket.
// Returns (moved, error); a file already present at its destination with
// identical size and mtime is skipped as an already-organized copy.
func (o *Organizer) organizeFile(ctx context.Context, path string) (bool, error) {
	info, err := meta.Extract(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	year := yearBucket(info)
	dest := filepath.Join(o.destination, year, filepath.Base(path))

	if dest == path {
		return false, nil
	}

	if destInfo, err := os.Stat(dest); err == nil {
		if destInfo.Size() == info.SizeBytes && destInfo.ModTime().Unix() == info.MtimeUnix {
			util.DebugLog("Already organized, skipping: %s", path)
			o.logger.LogSkip(path, "identical file already at destination")
			return false, nil
		}
		// Same name, different content: keep both
		dest = uniquify(dest)
	}

	if o.dryRun {
		util.InfoLog("DRY-RUN: would move %s -> %s", path, dest)
		return true, nil
	}

	if err := util.RetryableMkdirAll(filepath.Dir(dest), 0755, o.retryConfig); err != nil {
		return false, fmt.Errorf("failed to create year directory: %w", err)
	}

	start := time.Now()
	// MoveFile falls back to copy-verify-remove when the destination is on
	// another filesystem, which it usually is when organizing onto a NAS
	attempts, err := util.MoveFile(ctx, path, dest, 0, o.retryConfig)
	if err != nil {
		o.logger.LogMove(path, dest, info.SizeBytes, attempts, time.Since(start), err)
		return false, fmt.Errorf("failed to move %s: %w", path, err)
	}

	o.logger.LogMove(path, dest, info.SizeBytes, attempts, time.Since(start), nil)
	util.DebugLog("Organized: %s -> %s", path, dest)

	return true, nil
}

// yearBucket determines the year directory for a file: embedded capture date
// first, then modification time. Implausible years land in the unknown bucket
// rather than creating a directory for a camera clock glitch.
func yearBucket(info *meta.Info) string {
	var t time.Time
	if info.CaptureDate != nil {
		t = *info.CaptureDate
	} else {
		t = time.Unix(info.MtimeUnix, 0)
	}

	year := t.Year()
	if year < 1970 || year > time.Now().Year()+1 {
		return UnknownYearBucket
	}

	return fmt.Sprintf("%04d", year)
}

// uniquify appends a numeric suffix until the path does not exist
func uniquify(dest string) string {
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext)

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
