package phase

import (
	"context"
	"errors"
	"fmt"

	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

// FlagConfig holds flag phase configuration
type FlagConfig struct {
	Store  *store.Store
	Logger *report.EventLogger
}

// FlagResult represents flag phase results
type FlagResult struct {
	Candidates int
	Flagged    int
	Skipped    int
	Errors     []error
}

// Flag marks every verified duplicate for deletion. It performs no filesystem
// work and is safely re-runnable: files already flagged or moved are not
// selected, so a second run flags nothing.
//
// Before flagging, each duplicate's referenced original is re-read; if it is
// missing or no longer holds the original role the duplicate is skipped with
// a warning. Flagging a file whose keeper vanished would risk the last copy.
func Flag(ctx context.Context, cfg *FlagConfig) (*FlagResult, error) {
	util.InfoLog("Starting flag phase")

	duplicates, err := cfg.Store.GetDuplicatesToFlag()
	if err != nil {
		return nil, fmt.Errorf("failed to load flag candidates: %w", err)
	}

	result := &FlagResult{
		Candidates: len(duplicates),
		Errors:     make([]error, 0),
	}

	if len(duplicates) == 0 {
		util.InfoLog("No verified duplicates to flag")
		return result, nil
	}

	util.InfoLog("Found %d verified duplicates to flag", len(duplicates))

	for _, dup := range duplicates {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		original, err := cfg.Store.GetFileByPath(dup.OriginalPath)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}

		if original == nil || original.Role != store.RoleOriginal || original.Deleted {
			util.WarnLog("Skipping %s: referenced original %s is no longer valid",
				dup.Path, dup.OriginalPath)
			cfg.Logger.LogSkip(dup.Path, fmt.Sprintf("dangling original reference: %s", dup.OriginalPath))
			result.Skipped++
			continue
		}

		note := fmt.Sprintf("duplicate of %s", dup.OriginalPath)
		if err := cfg.Store.FlagForDeletion(dup.Path, note); err != nil {
			if errors.Is(err, util.ErrOriginalProtected) {
				// Role changed between selection and flagging; leave it alone
				util.WarnLog("Skipping %s: reclassified as original", dup.Path)
				result.Skipped++
				continue
			}
			util.ErrorLog("Failed to flag %s: %v", dup.Path, err)
			result.Errors = append(result.Errors, err)
			continue
		}

		cfg.Logger.LogFlag(dup.Path, dup.OriginalPath)
		util.DebugLog("Flagged for deletion: %s", dup.Path)
		result.Flagged++
	}

	util.SuccessLog("Flag complete: %d flagged, %d skipped, %d errors",
		result.Flagged, result.Skipped, len(result.Errors))

	return result, nil
}
