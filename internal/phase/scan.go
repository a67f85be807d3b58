// Package phase implements the three-phase pipeline: scan classifies files
// and builds duplicate groups, flag marks verified duplicates for removal,
// and execute moves flagged files to quarantine. Each phase is idempotent and
// resumable; re-running a phase continues where the last run stopped.
package phase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/franz/photo-janitor/internal/dedup"
	"github.com/franz/photo-janitor/internal/fingerprint"
	"github.com/franz/photo-janitor/internal/meta"
	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
	"github.com/franz/photo-janitor/internal/walk"
)

// ScanConfig holds scan phase configuration
type ScanConfig struct {
	Store          *store.Store
	Roots          []string
	CanvasSize     int
	Concurrency    int
	ForceRescan    bool
	AdditionalExts []string
	Logger         *report.EventLogger
}

// Scanner runs the scan phase: discover, fingerprint, group, verify, select
type Scanner struct {
	store       *store.Store
	roots       []string
	walker      *walk.Walker
	generator   *fingerprint.Generator
	concurrency int
	forceRescan bool
	logger      *report.EventLogger
}

// NewScanner creates a new Scanner
func NewScanner(cfg *ScanConfig) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Scanner{
		store:       cfg.Store,
		roots:       cfg.Roots,
		walker:      walk.New(cfg.AdditionalExts),
		generator:   fingerprint.New(cfg.CanvasSize),
		concurrency: cfg.Concurrency,
		forceRescan: cfg.ForceRescan,
		logger:      cfg.Logger,
	}
}

// ScanResult represents scan phase results
type ScanResult struct {
	FilesFound         int
	FilesFingerprinted int
	FilesUnchanged     int
	FilesUndecodable   int
	CandidateGroups    int
	GroupsVerified     int
	Collisions         int
	Errors             []error
}

// knownFile is the pre-loaded database view used for unchanged-file detection
type knownFile struct {
	mtimeUnix   int64
	sizeBytes   int64
	fingerprint string
	undecodable bool
}

// Run executes the scan phase across all configured roots
func (s *Scanner) Run(ctx context.Context) (*ScanResult, error) {
	if len(s.roots) == 0 {
		return nil, fmt.Errorf("no roots configured: %w", util.ErrInvalidConfig)
	}

	result := &ScanResult{
		Errors: make([]error, 0),
	}

	if s.forceRescan {
		util.InfoLog("Force rescan: clearing previous classification state")
		if err := s.store.ClearScanDerivedState(); err != nil {
			return nil, fmt.Errorf("failed to clear scan state: %w", err)
		}
	}

	if err := s.enumerate(ctx, result); err != nil {
		return result, err
	}

	if err := s.classify(ctx, result); err != nil {
		return result, err
	}

	util.SuccessLog("Scan complete: %d found, %d fingerprinted, %d unchanged, %d groups verified, %d collisions",
		result.FilesFound, result.FilesFingerprinted, result.FilesUnchanged,
		result.GroupsVerified, result.Collisions)

	return result, nil
}

// enumerate walks all roots, fingerprints new or changed files and persists
// the observations. Unchanged files (same mtime and size, decode outcome on
// record) are skipped without re-reading their content; that is what makes an
// interrupted scan cheap to resume.
func (s *Scanner) enumerate(ctx context.Context, result *ScanResult) error {
	util.InfoLog("Pre-loading known files...")
	known, err := s.loadKnownFiles()
	if err != nil {
		return fmt.Errorf("failed to load known files: %w", err)
	}
	util.InfoLog("Loaded %d known files", len(known))

	// Channel for discovered file paths
	filePaths := make(chan pathInRoot, 100)

	// Channel for observations to persist
	observations := make(chan *store.MediaFile, 100)

	// Counters for progress reporting (using atomic for thread-safety)
	var filesFound atomic.Int64
	var filesProcessed atomic.Int64
	var filesNew atomic.Int64
	var filesUnchanged atomic.Int64
	var filesUndecodable atomic.Int64

	var errMu sync.Mutex
	addError := func(err error) {
		errMu.Lock()
		result.Errors = append(result.Errors, err)
		errMu.Unlock()
	}

	// Start progress reporter with visual progress bar
	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar

	if isTTY && !util.IsQuiet() {
		// Indeterminate bar; the total is unknown until the walk finishes
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				found := filesFound.Load()
				processed := filesProcessed.Load()
				fresh := filesNew.Load()
				unchanged := filesUnchanged.Load()

				if bar != nil && found > 0 {
					bar.Describe(fmt.Sprintf("Scanning | %d found | %d new | %d unchanged",
						found, fresh, unchanged))
					bar.Set64(processed)
				} else if found > 0 {
					util.InfoLog("Progress: found %d image files, processed %d (new: %d, unchanged: %d)",
						found, processed, fresh, unchanged)
				}
			}
		}
	}()

	// Single writer goroutine: the store serializes writes anyway, and one
	// writer keeps the upsert-plus-ledger transactions from interleaving
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		for f := range observations {
			if err := s.store.UpsertScanned(f); err != nil {
				util.ErrorLog("Failed to persist %s: %v", f.Path, err)
				addError(err)
			}
		}
	}()

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range filePaths {
				select {
				case <-ctx.Done():
					return
				default:
				}

				unchanged, undecodable, err := s.processFile(p, known, observations)
				filesProcessed.Add(1)

				switch {
				case err != nil:
					util.ErrorLog("Failed to process %s: %v", p.path, err)
					addError(err)
				case unchanged:
					filesUnchanged.Add(1)
				default:
					filesNew.Add(1)
					if undecodable {
						filesUndecodable.Add(1)
					}
				}
			}
		}()
	}

	// Walk every root
	var walkErr error
	for _, root := range s.roots {
		util.InfoLog("Scanning root: %s", root)
		walkErr = s.walker.Walk(ctx, root, func(path string) error {
			filesFound.Add(1)
			select {
			case filePaths <- pathInRoot{root: root, path: path}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if walkErr != nil {
			break
		}
	}

	// Close channels and drain the pipeline
	close(filePaths)
	wg.Wait()
	close(observations)
	writerWg.Wait()

	cancelProgress()
	if bar != nil {
		bar.Finish()
	}

	result.FilesFound = int(filesFound.Load())
	result.FilesFingerprinted = int(filesNew.Load())
	result.FilesUnchanged = int(filesUnchanged.Load())
	result.FilesUndecodable = int(filesUndecodable.Load())

	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return fmt.Errorf("walk error: %w", walkErr)
	}

	return walkErr
}

type pathInRoot struct {
	root string
	path string
}

// loadKnownFiles builds the path -> last-observed-state map used to skip
// unchanged files without touching their content
func (s *Scanner) loadKnownFiles() (map[string]knownFile, error) {
	files, err := s.store.GetAllFiles()
	if err != nil {
		return nil, err
	}

	known := make(map[string]knownFile, len(files))
	for _, f := range files {
		if f.Deleted {
			continue
		}
		known[f.Path] = knownFile{
			mtimeUnix:   f.MtimeUnix,
			sizeBytes:   f.SizeBytes,
			fingerprint: f.Fingerprint,
			undecodable: f.Undecodable,
		}
	}

	return known, nil
}

// processFile handles one discovered path.
// Returns (unchanged, undecodable, error). Unchanged files are not re-read;
// new or changed files are fingerprinted and sent to the writer.
func (s *Scanner) processFile(p pathInRoot, known map[string]knownFile, observations chan<- *store.MediaFile) (bool, bool, error) {
	info, err := meta.Extract(p.path)
	if err != nil {
		return false, false, fmt.Errorf("failed to stat %s: %w", p.path, err)
	}

	// A recorded undecodable file with unchanged content counts as scanned:
	// re-reading it would only reproduce the same missing fingerprint
	if prev, ok := known[p.path]; ok {
		if prev.mtimeUnix == info.MtimeUnix && prev.sizeBytes == info.SizeBytes &&
			(prev.fingerprint != "" || prev.undecodable) {
			util.DebugLog("Unchanged since last scan: %s", p.path)
			s.logger.LogScan(p.path, info.SizeBytes, true)
			return true, false, nil
		}
	}

	relPath, err := relToRoot(p.root, p.path)
	if err != nil {
		return false, false, err
	}

	s.logger.LogMeta(p.path, info.CaptureDate, nil)

	f := &store.MediaFile{
		Path:        p.path,
		Root:        p.root,
		RelPath:     relPath,
		SizeBytes:   info.SizeBytes,
		MtimeUnix:   info.MtimeUnix,
		CaptureDate: info.CaptureDate,
	}

	undecodable := false
	fp, err := s.generator.FromFile(p.path)
	switch {
	case err == nil:
		f.Fingerprint = fp
	case errors.Is(err, util.ErrUndecodable):
		// Recorded without a fingerprint; it can never group
		util.WarnLog("Cannot decode image, recording without fingerprint: %s", p.path)
		s.logger.LogSkip(p.path, "undecodable image")
		f.Undecodable = true
		undecodable = true
	default:
		return false, false, fmt.Errorf("fingerprint failed for %s: %w", p.path, err)
	}

	observations <- f
	s.logger.LogScan(p.path, info.SizeBytes, false)

	util.DebugLog("Fingerprinted: %s", p.path)
	return false, undecodable, nil
}

// classify groups fingerprinted files, verifies candidate groups
// byte-for-byte and commits each verified clique atomically: original marked,
// duplicates linked, group row upserted, all in one transaction.
func (s *Scanner) classify(ctx context.Context, result *ScanResult) error {
	files, err := s.store.GetActiveFingerprinted()
	if err != nil {
		return fmt.Errorf("failed to load files for grouping: %w", err)
	}

	buckets := dedup.GroupCandidates(files)
	result.CandidateGroups = len(buckets)

	if len(buckets) == 0 {
		util.InfoLog("No duplicate candidates found")
		return nil
	}

	util.InfoLog("Verifying %d candidate groups...", len(buckets))

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(buckets),
			progressbar.OptionSetDescription("Verifying"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	var groupsVerified atomic.Int64
	var collisions atomic.Int64

	var errMu sync.Mutex

	// Byte comparison is I/O bound; groups verify independently in parallel
	// while the store serializes the commit transactions
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for fp, members := range buckets {
		fp, members := fp, members
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			if bar != nil {
				defer bar.Add(1)
			}

			s.logger.LogGroup(fp, len(members))

			verified, collided, err := s.verifyAndCommit(fp, members)
			if err != nil {
				util.ErrorLog("Failed to commit group %s: %v", fp, err)
				errMu.Lock()
				result.Errors = append(result.Errors, err)
				errMu.Unlock()
				return nil // One bad group does not abort the scan
			}

			if verified {
				groupsVerified.Add(1)
			}
			collisions.Add(int64(collided))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if bar != nil {
		bar.Finish()
	}

	result.GroupsVerified = int(groupsVerified.Load())
	result.Collisions = int(collisions.Load())

	return nil
}

// verifyAndCommit partitions one candidate group into byte-identical cliques
// and commits the confirmed group. Returns whether a group was verified and
// how many collision files were rejected.
//
// When verification splits a fingerprint bucket into more than one clique of
// two or more files, only the largest clique is committed under that
// fingerprint; the rest are logged as collisions and stay unclassified. The
// group table is keyed by fingerprint, and a fingerprint that maps to
// multiple distinct contents deserves scrutiny, not silent bookkeeping.
func (s *Scanner) verifyAndCommit(fp string, members []*store.MediaFile) (bool, int, error) {
	cliques := dedup.VerifyGroup(members)

	sort.Slice(cliques, func(i, j int) bool {
		return len(cliques[i]) > len(cliques[j])
	})

	collided := 0
	verified := false

	for i, clique := range cliques {
		if i == 0 && len(clique) >= 2 {
			if err := s.commitClique(fp, clique); err != nil {
				return false, collided, err
			}
			verified = true
			continue
		}

		for _, f := range clique {
			util.WarnLog("Fingerprint collision: %s matched %s but differs byte-for-byte", f.Path, fp)
			s.logger.LogCollision(fp, f.Path)
			collided++
		}
	}

	s.logger.LogVerify(fp, len(members), len(members)-collided)
	return verified, collided, nil
}

// commitClique selects the canonical file and atomically records the verdict:
// original marked, duplicates linked to it, group row upserted, one
// transaction. A clique already committed in this exact shape is skipped
// without touching the store, which is what keeps scan re-runs from
// generating duplicate transitions.
func (s *Scanner) commitClique(fp string, clique dedup.Clique) error {
	winner := dedup.SelectOriginal(clique)

	if s.cliqueAlreadyCommitted(fp, winner, clique) {
		util.DebugLog("Group %s already committed, skipping", fp)
		return nil
	}

	group := buildGroup(fp, winner.Path, clique)

	err := s.store.Transaction(func(tx *sql.Tx) error {
		if err := s.store.MarkOriginalTx(tx, winner.Path, ""); err != nil {
			return err
		}

		for _, f := range clique {
			if f.Path == winner.Path {
				continue
			}
			note := fmt.Sprintf("duplicate of %s", winner.Path)
			if err := s.store.MarkVerifiedDuplicateTx(tx, f.Path, winner.Path, note); err != nil {
				return err
			}
		}

		return s.store.UpsertGroupTx(tx, group)
	})
	if err != nil {
		return fmt.Errorf("failed to commit group %s: %w", fp, err)
	}

	if group.CrossRoot {
		util.InfoLog("Cross-root duplicate group: %s spans %s", winner.Path, group.Roots)
	}

	s.logger.LogSelect(fp, winner.Path, len(clique)-1)
	return nil
}

// cliqueAlreadyCommitted reports whether the store already holds this exact
// verdict: same original, every member verified and linked, group row with
// matching membership
func (s *Scanner) cliqueAlreadyCommitted(fp string, winner *store.MediaFile, clique dedup.Clique) bool {
	for _, f := range clique {
		if !f.BinaryVerified {
			return false
		}
		if f.Path == winner.Path {
			if f.Role != store.RoleOriginal {
				return false
			}
			continue
		}
		if f.Role != store.RoleVerifiedDuplicate || f.OriginalPath != winner.Path {
			return false
		}
	}

	group, err := s.store.GetGroupByFingerprint(fp)
	if err != nil || group == nil {
		return false
	}

	return group.OriginalPath == winner.Path && group.MemberCount == len(clique)
}

// buildGroup assembles the group row for a verified clique, detecting
// whether its members span more than one configured root
func buildGroup(fp, originalPath string, clique dedup.Clique) *store.DuplicateGroup {
	rootSet := make(map[string]bool)
	var totalBytes int64
	for _, f := range clique {
		rootSet[f.Root] = true
		totalBytes += f.SizeBytes
	}

	roots := make([]string, 0, len(rootSet))
	for r := range rootSet {
		roots = append(roots, r)
	}
	sort.Strings(roots)

	return &store.DuplicateGroup{
		Fingerprint:        fp,
		OriginalPath:       originalPath,
		Roots:              strings.Join(roots, ","),
		CrossRoot:          len(roots) > 1,
		MemberCount:        len(clique),
		TotalBytes:         totalBytes,
		VerificationStatus: "binary_verified",
	}
}

// relToRoot computes the root-relative path preserved when mirroring
// directory structure into quarantine
func relToRoot(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path for %s: %w", path, err)
	}
	return rel, nil
}
