package util

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// NetworkInfo contains information about a filesystem's network characteristics
type NetworkInfo struct {
	IsNetwork bool   // Whether the filesystem is network-mounted
	Protocol  string // Protocol (smb, nfs, cifs, ...) or empty if local
	MountPath string // Mount point of the filesystem
}

// DetectNetworkFilesystem checks if a path is on a network-mounted filesystem
// by matching it against /proc/mounts. On platforms without /proc/mounts the
// path is assumed local.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	mounts, err := parseProcMounts()
	if err != nil {
		// No mount table available, assume local
		return &NetworkInfo{}, nil
	}

	return classifyMount(absPath, mounts), nil
}

// classifyMount finds the longest mount point containing the path and
// reports whether its filesystem type is a network protocol
func classifyMount(absPath string, mounts map[string]string) *NetworkInfo {
	info := &NetworkInfo{}

	bestMatch := ""
	for mountPoint, fsType := range mounts {
		if !pathWithinMount(absPath, mountPoint) || len(mountPoint) < len(bestMatch) {
			continue
		}
		bestMatch = mountPoint

		fsTypeLower := strings.ToLower(fsType)
		if isNetworkFSType(fsTypeLower) {
			info.IsNetwork = true
			info.Protocol = fsTypeLower
			info.MountPath = mountPoint
		} else {
			info.IsNetwork = false
			info.Protocol = ""
			info.MountPath = ""
		}
	}

	return info
}

// pathWithinMount matches on whole path segments, so /data never claims
// paths under /data-backup
func pathWithinMount(absPath, mountPoint string) bool {
	if mountPoint == "/" {
		return true
	}
	return absPath == mountPoint || strings.HasPrefix(absPath, mountPoint+"/")
}

// IsNetworkPath checks if a path is on a network filesystem (convenience function)
func IsNetworkPath(path string) bool {
	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}

func isNetworkFSType(fsType string) bool {
	for _, proto := range []string{"nfs", "cifs", "smb", "smbfs", "ncpfs", "fuse.sshfs", "fuse.rclone"} {
		if strings.Contains(fsType, proto) {
			return true
		}
	}
	return false
}

// parseProcMounts parses /proc/mounts to get filesystem types by mount point
func parseProcMounts() (map[string]string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mounts := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return mounts, nil
}
