package dedup

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

// compareChunkSize is the buffer size for streaming byte comparison
const compareChunkSize = 64 * 1024

// Clique is a maximal subset of a candidate group confirmed pairwise
// byte-identical. Only cliques of two or more files ever become groups.
type Clique []*store.MediaFile

// VerifyGroup partitions a candidate group (files sharing one fingerprint)
// into cliques of truly byte-identical files. Each file is compared against
// one representative of every existing clique; byte identity is transitive,
// so matching the representative proves membership. Files that fail to read
// are dropped with a warning rather than grouped on faith.
//
// A returned clique of size 1 means the fingerprint match was a collision
// for that file; callers log and discard it.
func VerifyGroup(candidates []*store.MediaFile) []Clique {
	var cliques []Clique

	for _, f := range candidates {
		placed := false
		for i, clique := range cliques {
			rep := clique[0]
			// Size mismatch cannot be identity; skip the expensive read
			if rep.SizeBytes != f.SizeBytes {
				continue
			}

			identical, err := CompareFiles(rep.Path, f.Path)
			if err != nil {
				util.WarnLog("Binary compare failed for %s vs %s: %v", rep.Path, f.Path, err)
				continue
			}
			if identical {
				cliques[i] = append(cliques[i], f)
				placed = true
				break
			}
		}

		if !placed {
			cliques = append(cliques, Clique{f})
		}
	}

	return cliques
}

// CompareFiles performs a byte-for-byte comparison of two files,
// short-circuiting on size mismatch and then streaming chunk comparison.
func CompareFiles(path1, path2 string) (bool, error) {
	info1, err := os.Stat(path1)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path1, err)
	}
	info2, err := os.Stat(path2)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path2, err)
	}

	if info1.Size() != info2.Size() {
		return false, nil
	}

	f1, err := os.Open(path1)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path1, err)
	}
	defer f1.Close()

	f2, err := os.Open(path2)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path2, err)
	}
	defer f2.Close()

	buf1 := make([]byte, compareChunkSize)
	buf2 := make([]byte, compareChunkSize)

	for {
		n1, err1 := io.ReadFull(f1, buf1)
		n2, err2 := io.ReadFull(f2, buf2)

		if n1 != n2 || !bytes.Equal(buf1[:n1], buf2[:n2]) {
			return false, nil
		}

		atEOF1 := err1 == io.EOF || err1 == io.ErrUnexpectedEOF
		atEOF2 := err2 == io.EOF || err2 == io.ErrUnexpectedEOF

		if atEOF1 || atEOF2 {
			return atEOF1 && atEOF2, nil
		}
		if err1 != nil {
			return false, fmt.Errorf("failed to read %s: %w", path1, err1)
		}
		if err2 != nil {
			return false, fmt.Errorf("failed to read %s: %w", path2, err2)
		}
	}
}
