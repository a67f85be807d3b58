package meta

import (
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/franz/photo-janitor/internal/util"
)

// Info holds the filesystem and embedded metadata for one media file
type Info struct {
	SizeBytes   int64
	MtimeUnix   int64
	CaptureDate *time.Time
}

// exifDateLayout is the EXIF date format, e.g. "2010:10:12 18:00:18"
const exifDateLayout = "2006:01:02 15:04:05"

// Extract reads size, mtime and the embedded capture date for a file.
// It fails only if the file cannot be stat'd; missing or corrupt embedded
// metadata yields a nil CaptureDate, never an error.
func Extract(path string) (*Info, error) {
	size, mtime, err := util.GetFileMetadata(path)
	if err != nil {
		return nil, err
	}

	return &Info{
		SizeBytes:   size,
		MtimeUnix:   mtime,
		CaptureDate: CaptureDate(path),
	}, nil
}

// CaptureDate extracts the embedded capture date from a file's EXIF data.
// Fields are tried in priority order: DateTimeOriginal (camera capture),
// DateTimeDigitized (scan date), DateTime (file modification tag); the first
// parseable value wins. Returns nil for files without usable EXIF data.
func CaptureDate(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		util.DebugLog("EXIF: cannot open %s: %v", path, err)
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// Not an error: PNGs, GIFs and stripped JPEGs simply have no EXIF
		util.DebugLog("EXIF: no usable data in %s: %v", path, err)
		return nil
	}

	for _, field := range []exif.FieldName{
		exif.DateTimeOriginal,
		exif.DateTimeDigitized,
		exif.DateTime,
	} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t := ParseExifDate(raw); t != nil {
			return t
		}
	}

	return nil
}

// ParseExifDate parses an EXIF-formatted timestamp. Returns nil if the value
// is empty, zeroed ("0000:00:00 00:00:00") or otherwise unparseable.
func ParseExifDate(raw string) *time.Time {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	if raw == "" || strings.HasPrefix(raw, "0000") {
		return nil
	}

	t, err := time.Parse(exifDateLayout, raw)
	if err != nil {
		return nil
	}

	return &t
}
