package util

import (
	"testing"
)

func TestPathWithinMount(t *testing.T) {
	tests := []struct {
		path       string
		mountPoint string
		want       bool
	}{
		{"/data/photos/img.jpg", "/data", true},
		{"/data", "/data", true},
		{"/data-backup/img.jpg", "/data", false},
		{"/database/img.jpg", "/data", false},
		{"/anything/at/all", "/", true},
		{"/data/photos", "/data/photos", true},
		{"/data/photos-old", "/data/photos", false},
	}

	for _, tt := range tests {
		if got := pathWithinMount(tt.path, tt.mountPoint); got != tt.want {
			t.Errorf("pathWithinMount(%q, %q) = %t, want %t", tt.path, tt.mountPoint, got, tt.want)
		}
	}
}

func TestClassifyMountPicksLongestContainingMount(t *testing.T) {
	mounts := map[string]string{
		"/":                "ext4",
		"/data":            "ext4",
		"/data/nas-photos": "nfs4",
		"/mnt/share":       "cifs",
	}

	tests := []struct {
		path        string
		wantNetwork bool
		wantMount   string
	}{
		{"/data/nas-photos/2020/img.jpg", true, "/data/nas-photos"},
		{"/mnt/share/img.jpg", true, "/mnt/share"},
		{"/data/local/img.jpg", false, ""},
		{"/home/franz/img.jpg", false, ""},

		// Sibling directories sharing a mount's name prefix stay local
		{"/data/nas-photos-archive/img.jpg", false, ""},
		{"/mnt/shared/img.jpg", false, ""},
	}

	for _, tt := range tests {
		info := classifyMount(tt.path, mounts)
		if info.IsNetwork != tt.wantNetwork {
			t.Errorf("classifyMount(%q).IsNetwork = %t, want %t", tt.path, info.IsNetwork, tt.wantNetwork)
		}
		if info.MountPath != tt.wantMount {
			t.Errorf("classifyMount(%q).MountPath = %q, want %q", tt.path, info.MountPath, tt.wantMount)
		}
	}
}

func TestIsNetworkFSType(t *testing.T) {
	tests := []struct {
		fsType string
		want   bool
	}{
		{"nfs", true},
		{"nfs4", true},
		{"cifs", true},
		{"smb3", true},
		{"fuse.sshfs", true},
		{"ext4", false},
		{"btrfs", false},
		{"tmpfs", false},
	}

	for _, tt := range tests {
		if got := isNetworkFSType(tt.fsType); got != tt.want {
			t.Errorf("isNetworkFSType(%q) = %t, want %t", tt.fsType, got, tt.want)
		}
	}
}
