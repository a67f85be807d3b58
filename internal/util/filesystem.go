package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// GetFileMetadata extracts basic filesystem metadata
func GetFileMetadata(path string) (size int64, mtime int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	return info.Size(), info.ModTime().Unix(), nil
}

// IsSystemArtifact reports whether a path is a platform or NAS housekeeping
// entry that should never be treated as media: dotfiles, Synology extended
// attribute directories and streams, and Windows thumbnail caches.
func IsSystemArtifact(path string) bool {
	name := filepath.Base(path)

	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "@") {
		return true
	}
	if strings.Contains(path, "@eaDir") || strings.Contains(path, "@SynoEAStream") {
		return true
	}
	switch name {
	case "Thumbs.db", "Desktop.ini":
		return true
	}

	return false
}

// IsSameFilesystem checks if two paths are on the same filesystem
// by comparing their device IDs (st_dev).
func IsSameFilesystem(path1, path2 string) (bool, error) {
	stat1, err := os.Stat(path1)
	if err != nil {
		return false, err
	}

	stat2, err := os.Stat(path2)
	if err != nil {
		return false, err
	}

	sysStat1, ok1 := stat1.Sys().(*syscall.Stat_t)
	sysStat2, ok2 := stat2.Sys().(*syscall.Stat_t)

	if !ok1 || !ok2 {
		// If we can't get syscall.Stat_t, assume different filesystems
		// (better to warn when unsure)
		return false, nil
	}

	return sysStat1.Dev == sysStat2.Dev, nil
}
