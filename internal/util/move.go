package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// DefaultMoveBufferSize is the chunk size for cross-filesystem copies.
// 128KB balances local disks and NAS mounts.
const DefaultMoveBufferSize = 128 * 1024

// MoveFile moves a file with retry, returning the number of attempts made.
// Rename is tried first; a cross-filesystem move falls back to copy, verify,
// then delete source. The source is never removed before the copy verifies.
func MoveFile(ctx context.Context, srcPath, destPath string, bufferSize int, cfg *RetryConfig) (int, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultMoveBufferSize
	}

	// A destination on another device can never rename; skip straight to copy
	if same, err := IsSameFilesystem(srcPath, filepath.Dir(destPath)); err == nil && !same {
		DebugLog("Cross-filesystem move, copying: %s -> %s", srcPath, destPath)
		return copyThenRemove(ctx, srcPath, destPath, bufferSize, cfg)
	}

	attempts, err := RetryableRename(srcPath, destPath, cfg)
	if err == nil {
		return attempts, nil
	}

	if !isCrossDevice(err) {
		return attempts, err
	}

	DebugLog("Cross-filesystem move, copying: %s -> %s", srcPath, destPath)
	copyAttempts, err := copyThenRemove(ctx, srcPath, destPath, bufferSize, cfg)
	return attempts + copyAttempts, err
}

// copyThenRemove copies across filesystems, verifies the copy, then removes
// the source
func copyThenRemove(ctx context.Context, srcPath, destPath string, bufferSize int, cfg *RetryConfig) (int, error) {
	attempts, err := copyFileAtomic(ctx, srcPath, destPath, bufferSize, cfg)
	if err != nil {
		return attempts, err
	}

	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return attempts, fmt.Errorf("failed to stat source before delete: %w", err)
	}
	destInfo, err := RetryableStat(destPath, cfg)
	if err != nil {
		return attempts, fmt.Errorf("copy missing after write: %w", err)
	}
	if srcInfo.Size() != destInfo.Size() {
		return attempts, fmt.Errorf("copy size mismatch: source %d bytes, copy %d bytes",
			srcInfo.Size(), destInfo.Size())
	}

	if err := RetryableRemove(srcPath, cfg); err != nil {
		return attempts, fmt.Errorf("copied but failed to remove source: %w", err)
	}

	return attempts, nil
}

// copyFileAtomic copies via a .part temporary file, with retry around the
// whole operation
func copyFileAtomic(ctx context.Context, srcPath, destPath string, bufferSize int, cfg *RetryConfig) (int, error) {
	tempPath := destPath + ".part"

	return Retry(cfg, func() error {
		src, err := os.Open(srcPath)
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		defer src.Close()

		dest, err := os.Create(tempPath)
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}

		_, err = copyWithContext(ctx, dest, src, bufferSize)
		closeErr := dest.Close()

		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(tempPath)
			return fmt.Errorf("failed to copy: %w", err)
		}

		if err := os.Rename(tempPath, destPath); err != nil {
			os.Remove(tempPath)
			return fmt.Errorf("failed to rename temp file: %w", err)
		}

		return nil
	}, fmt.Sprintf("copy(%s -> %s)", srcPath, destPath))
}

// isCrossDevice reports whether a rename failed because source and
// destination are on different filesystems
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Err == syscall.EXDEV
	}
	return errors.Is(err, syscall.EXDEV)
}

// copyWithContext copies data with context cancellation support
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, bufferSize int) (int64, error) {
	buf := make([]byte, bufferSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if ew == nil {
					ew = fmt.Errorf("invalid write result")
				}
			}
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			break
		}
	}
	return written, nil
}
