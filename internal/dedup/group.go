// Package dedup implements candidate grouping, binary verification and
// canonical-file selection for duplicate detection.
package dedup

import (
	"github.com/franz/photo-janitor/internal/store"
)

// GroupCandidates buckets files by normalized fingerprint and returns only
// buckets with two or more members. Singleton buckets are discarded outright:
// they are not duplicates, so they are neither persisted nor reported. Files
// without a fingerprint (undecodable images) never group.
func GroupCandidates(files []*store.MediaFile) map[string][]*store.MediaFile {
	buckets := make(map[string][]*store.MediaFile)
	for _, f := range files {
		if f.Fingerprint == "" {
			continue
		}
		buckets[f.Fingerprint] = append(buckets[f.Fingerprint], f)
	}

	for fp, members := range buckets {
		if len(members) < 2 {
			delete(buckets, fp)
		}
	}

	return buckets
}
