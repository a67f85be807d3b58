package util

import (
	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count in human-readable IEC units
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
