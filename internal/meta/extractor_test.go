package meta

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseExifDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{
			name: "valid date",
			raw:  "2019:07:14 12:30:05",
			want: timePtr(time.Date(2019, 7, 14, 12, 30, 5, 0, time.UTC)),
		},
		{
			name: "padded with nulls",
			raw:  "2019:07:14 12:30:05\x00",
			want: timePtr(time.Date(2019, 7, 14, 12, 30, 5, 0, time.UTC)),
		},
		{name: "empty", raw: "", want: nil},
		{name: "zeroed", raw: "0000:00:00 00:00:00", want: nil},
		{name: "garbage", raw: "not a date", want: nil},
		{name: "wrong separator", raw: "2019-07-14 12:30:05", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExifDate(tt.raw)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseExifDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("ParseExifDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestExtractFilesystemMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")

	content := []byte("not a real jpeg, but stat does not care")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	info, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if info.SizeBytes != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.SizeBytes)
	}
	if info.MtimeUnix == 0 {
		t.Error("expected non-zero mtime")
	}
	// No EXIF data in a plain file: capture date absent, not an error
	if info.CaptureDate != nil {
		t.Errorf("expected nil capture date, got %v", info.CaptureDate)
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCaptureDateOnNonImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	os.WriteFile(path, []byte("plain text"), 0644)

	if got := CaptureDate(path); got != nil {
		t.Errorf("expected nil capture date for non-image, got %v", got)
	}
}
