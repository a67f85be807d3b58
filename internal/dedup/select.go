package dedup

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/franz/photo-janitor/internal/store"
)

// copyIndicator marks filenames produced by copy operations
// ("IMG_001 - Copy.jpg", "IMG_001_copy.jpg", "Copy of IMG_001.jpg")
const copyIndicator = "copy"

// SelectOriginal deterministically picks the canonical file of a verified
// clique. Tie-break order encodes "the first-captured, first-saved,
// non-copy-named file is the source of truth":
//
//  1. earliest embedded capture date (dateless files sort after all dated)
//  2. earliest filesystem modification time
//  3. filename without a copy indicator ranks above one with it
//  4. lexicographic path, so the result is stable for any input order
func SelectOriginal(clique []*store.MediaFile) *store.MediaFile {
	if len(clique) == 0 {
		return nil
	}

	ranked := slices.Clone(clique)
	slices.SortFunc(ranked, compareCandidates)
	return ranked[0]
}

func compareCandidates(a, b *store.MediaFile) int {
	if c := compareCaptureDates(a, b); c != 0 {
		return c
	}

	if a.MtimeUnix != b.MtimeUnix {
		if a.MtimeUnix < b.MtimeUnix {
			return -1
		}
		return 1
	}

	aCopy := hasCopyName(a.Path)
	bCopy := hasCopyName(b.Path)
	if aCopy != bCopy {
		if bCopy {
			return -1
		}
		return 1
	}

	return strings.Compare(a.Path, b.Path)
}

func compareCaptureDates(a, b *store.MediaFile) int {
	switch {
	case a.CaptureDate == nil && b.CaptureDate == nil:
		return 0
	case a.CaptureDate == nil:
		return 1
	case b.CaptureDate == nil:
		return -1
	case a.CaptureDate.Before(*b.CaptureDate):
		return -1
	case b.CaptureDate.Before(*a.CaptureDate):
		return 1
	}
	return 0
}

func hasCopyName(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), copyIndicator)
}
