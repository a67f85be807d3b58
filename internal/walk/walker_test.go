package walk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestWalkFindsImagesAndSkipsArtifacts(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "2019", "img001.jpg"))
	touch(t, filepath.Join(root, "2019", "img002.JPG")) // case-insensitive
	touch(t, filepath.Join(root, "2020", "scan.tiff"))
	touch(t, filepath.Join(root, "vacation.webp"))
	touch(t, filepath.Join(root, "notes.txt"))                         // not an image
	touch(t, filepath.Join(root, "song.mp3"))                          // not an image
	touch(t, filepath.Join(root, ".hidden.jpg"))                       // dotfile
	touch(t, filepath.Join(root, "Thumbs.db"))                         // Windows artifact
	touch(t, filepath.Join(root, "@eaDir", "img001.jpg", "thumb.jpg")) // NAS artifact dir

	var found []string
	w := New(nil)
	err := w.Walk(context.Background(), root, func(path string) error {
		rel, _ := filepath.Rel(root, path)
		found = append(found, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	sort.Strings(found)
	want := []string{
		filepath.Join("2019", "img001.jpg"),
		filepath.Join("2019", "img002.JPG"),
		filepath.Join("2020", "scan.tiff"),
		"vacation.webp",
	}

	if len(found) != len(want) {
		t.Fatalf("expected %v, got %v", want, found)
	}
	for i := range want {
		if found[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, found[i])
		}
	}
}

func TestWalkAdditionalExtensions(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "raw_photo.nef"))
	touch(t, filepath.Join(root, "other.cr2"))

	var found int
	w := New([]string{".nef"})
	err := w.Walk(context.Background(), root, func(path string) error {
		found++
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	if found != 1 {
		t.Errorf("expected only the .nef file, got %d files", found)
	}
}

func TestWalkCancellation(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(nil)
	err := w.Walk(ctx, root, func(path string) error { return nil })
	if err == nil {
		t.Error("expected context cancellation error")
	}
}

func TestIsMediaFile(t *testing.T) {
	w := New(nil)

	tests := []struct {
		path string
		want bool
	}{
		{"/x/a.jpg", true},
		{"/x/a.JPEG", true},
		{"/x/a.png", true},
		{"/x/a.heic", true},
		{"/x/a.mp4", false},
		{"/x/a", false},
		{"/x/jpg", false}, // extension, not a bare name
	}

	for _, tt := range tests {
		if got := w.IsMediaFile(tt.path); got != tt.want {
			t.Errorf("IsMediaFile(%q) = %t, want %t", tt.path, got, tt.want)
		}
	}
}
