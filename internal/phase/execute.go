package phase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

// ExecuteConfig holds execute phase configuration
type ExecuteConfig struct {
	Store          *store.Store
	QuarantineRoot string
	Concurrency    int
	DryRun         bool
	BufferSize     int               // Buffer size for cross-filesystem copies (0 = default)
	RetryConfig    *util.RetryConfig // Retry configuration (nil = default)
	Logger         *report.EventLogger
}

// Executor runs the execute phase: move flagged files to quarantine
type Executor struct {
	store          *store.Store
	quarantineRoot string
	concurrency    int
	dryRun         bool
	bufferSize     int
	retryConfig    *util.RetryConfig
	logger         *report.EventLogger

	// claimed guards quarantine destinations against two workers mirroring
	// the same relative path from different roots
	claimedMu sync.Mutex
	claimed   map[string]bool
}

// NewExecutor creates a new Executor
func NewExecutor(cfg *ExecuteConfig) *Executor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = util.DefaultMoveBufferSize
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = util.DefaultRetryConfig()
	}

	return &Executor{
		store:          cfg.Store,
		quarantineRoot: cfg.QuarantineRoot,
		concurrency:    cfg.Concurrency,
		dryRun:         cfg.DryRun,
		bufferSize:     cfg.BufferSize,
		retryConfig:    cfg.RetryConfig,
		logger:         cfg.Logger,
		claimed:        make(map[string]bool),
	}
}

// ExecuteResult represents execute phase results
type ExecuteResult struct {
	Candidates int
	Moved      int
	Failed     int
	Skipped    int
	BytesMoved int64
	Errors     []error
}

// Execute moves every flagged file into the quarantine tree, mirroring its
// root-relative path. Each move commits independently, so an interrupted run
// resumes from the first unmoved file. Failures after exhausted retries are
// recorded and left flagged for the next run; they never abort the batch.
func (e *Executor) Execute(ctx context.Context) (*ExecuteResult, error) {
	if e.quarantineRoot == "" {
		return nil, fmt.Errorf("quarantine root not configured: %w", util.ErrInvalidConfig)
	}

	util.InfoLog("Starting execute phase")

	flagged, err := e.store.GetFlaggedNotMoved()
	if err != nil {
		return nil, fmt.Errorf("failed to load flagged files: %w", err)
	}

	result := &ExecuteResult{
		Candidates: len(flagged),
		Errors:     make([]error, 0),
	}

	if len(flagged) == 0 {
		util.InfoLog("No flagged files to move")
		return result, nil
	}

	total := len(flagged)
	util.InfoLog("Found %d flagged files to move to quarantine", total)

	if e.dryRun {
		util.InfoLog("DRY-RUN mode: no files will be moved")
	}

	// Counters for progress reporting
	var processed atomic.Int64
	var moved atomic.Int64
	var failed atomic.Int64
	var skipped atomic.Int64
	var bytesMoved atomic.Int64

	var errMu sync.Mutex

	// Start progress reporter
	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					percentage := float64(p) / float64(total) * 100
					util.InfoLog("Executing: %d/%d (%.1f%%) - moved: %d, failed: %d, skipped: %d, freed: %s",
						p, total, percentage, moved.Load(), failed.Load(), skipped.Load(),
						util.FormatBytes(bytesMoved.Load()))
				}
			}
		}
	}()

	// Worker pool: moves touch disjoint files and commit through the
	// serialized store, so they do not contend
	filesChan := make(chan *store.MediaFile, e.concurrency*2)
	var wg sync.WaitGroup

	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range filesChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				processed.Add(1)

				outcome, err := e.moveToQuarantine(ctx, f)
				switch {
				case err != nil:
					failed.Add(1)
					errMu.Lock()
					result.Errors = append(result.Errors, err)
					errMu.Unlock()
				case outcome == outcomeSkipped:
					skipped.Add(1)
				default:
					moved.Add(1)
					bytesMoved.Add(f.SizeBytes)
				}
			}
		}()
	}

	go func() {
		// The channel must close even on cancellation or the workers
		// never drain and Wait blocks forever
		defer close(filesChan)
		for _, f := range flagged {
			select {
			case <-ctx.Done():
				return
			case filesChan <- f:
			}
		}
	}()

	wg.Wait()
	cancelProgress()

	result.Moved = int(moved.Load())
	result.Failed = int(failed.Load())
	result.Skipped = int(skipped.Load())
	result.BytesMoved = bytesMoved.Load()

	if err := ctx.Err(); err != nil {
		util.WarnLog("Execute interrupted: %d moved, %d remaining", result.Moved,
			result.Candidates-result.Moved-result.Skipped)
		return result, err
	}

	util.SuccessLog("Execute complete: %d moved, %d failed, %d skipped, %s freed",
		result.Moved, result.Failed, result.Skipped, util.FormatBytes(result.BytesMoved))

	if result.Failed > 0 {
		return result, fmt.Errorf("%d of %d moves failed: %w",
			result.Failed, result.Candidates, util.ErrPartialFailure)
	}

	return result, nil
}

type moveOutcome int

const (
	outcomeMoved moveOutcome = iota
	outcomeSkipped
)

// moveToQuarantine moves one flagged file. On success the store records the
// move with the retry count in the audit note; on exhausted retries the
// failure is recorded and the deletion flag stays set for the next run.
func (e *Executor) moveToQuarantine(ctx context.Context, f *store.MediaFile) (moveOutcome, error) {
	// The file must still be a flagged non-original; the store enforces this
	// but a vanished source is detected here before any directory is created
	if _, err := os.Stat(f.Path); err != nil {
		if os.IsNotExist(err) {
			util.WarnLog("Flagged file no longer on disk, skipping: %s", f.Path)
			e.logger.LogSkip(f.Path, "source file missing")
			return outcomeSkipped, nil
		}
		return e.recordFailure(f, fmt.Errorf("failed to stat source %s: %w", f.Path, err))
	}

	dest := e.claimDestination(f)

	if e.dryRun {
		util.InfoLog("DRY-RUN: would move %s -> %s", f.Path, dest)
		return outcomeMoved, nil
	}

	start := time.Now()

	if err := util.RetryableMkdirAll(filepath.Dir(dest), 0755, e.retryConfig); err != nil {
		return e.recordFailure(f, fmt.Errorf("failed to create quarantine directory for %s: %w", f.Path, err))
	}

	attempts, err := util.MoveFile(ctx, f.Path, dest, e.bufferSize, e.retryConfig)
	if err != nil {
		e.logger.LogMove(f.Path, dest, f.SizeBytes, attempts, time.Since(start), err)
		return e.recordFailure(f, fmt.Errorf("failed to move %s: %w", f.Path, err))
	}

	// Re-stat the destination before committing; the database only ever
	// claims a move that demonstrably happened
	if err := e.verifyMoved(dest, f.SizeBytes); err != nil {
		e.logger.LogMove(f.Path, dest, f.SizeBytes, attempts, time.Since(start), err)
		return e.recordFailure(f, fmt.Errorf("move verification failed for %s: %w", f.Path, err))
	}

	note := "moved to quarantine"
	if attempts > 1 {
		note = fmt.Sprintf("moved to quarantine after %d attempts", attempts)
	}

	if err := e.store.MarkMoved(f.Path, dest, note); err != nil {
		return outcomeMoved, fmt.Errorf("moved %s but failed to record it: %w", f.Path, err)
	}

	e.logger.LogMove(f.Path, dest, f.SizeBytes, attempts, time.Since(start), nil)
	util.DebugLog("Moved to quarantine: %s -> %s", f.Path, dest)

	return outcomeMoved, nil
}

// recordFailure persists a move failure and returns it. The deletion flag
// stays set so the file retries on the next execute run.
func (e *Executor) recordFailure(f *store.MediaFile, moveErr error) (moveOutcome, error) {
	util.ErrorLog("%v", moveErr)
	if err := e.store.MarkMoveError(f.Path, moveErr.Error()); err != nil {
		util.WarnLog("Failed to record move error for %s: %v", f.Path, err)
	}
	return outcomeMoved, moveErr
}

// claimDestination computes the quarantine destination, mirroring the file's
// root-relative path, and uniquifies it when another root already claimed the
// same relative path
func (e *Executor) claimDestination(f *store.MediaFile) string {
	dest := filepath.Join(e.quarantineRoot, f.RelPath)

	e.claimedMu.Lock()
	defer e.claimedMu.Unlock()

	candidate := dest
	for i := 1; ; i++ {
		if !e.claimed[candidate] && !pathExists(candidate) {
			e.claimed[candidate] = true
			return candidate
		}
		ext := filepath.Ext(dest)
		candidate = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(dest, ext), i, ext)
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// verifyMoved confirms the quarantine destination exists and matches the
// expected size
func (e *Executor) verifyMoved(destPath string, expectedSize int64) error {
	info, err := util.RetryableStat(destPath, e.retryConfig)
	if err != nil {
		return fmt.Errorf("destination missing after move: %w", err)
	}

	if info.Size() != expectedSize {
		return fmt.Errorf("destination size %d does not match expected %d", info.Size(), expectedSize)
	}

	return nil
}
