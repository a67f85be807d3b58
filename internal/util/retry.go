package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including the first)
	InitialWait time.Duration // Initial wait duration (doubled each retry)
	MaxWait     time.Duration // Maximum wait duration between retries
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
}

// NASRetryConfig returns retry config tuned for network-mounted storage,
// where locked files and transient I/O errors are routine
func NASRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 4,
		InitialWait: 250 * time.Millisecond,
		MaxWait:     10 * time.Second,
	}
}

// IsRetryableError checks if an error is worth retrying.
// Returns true for transient filesystem and network errors, including the
// locked/in-use conditions seen when another process holds a file open.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pathError *os.PathError
	var linkError *os.LinkError
	var syscallError syscall.Errno

	if errors.As(err, &pathError) {
		err = pathError.Err
	}
	if errors.As(err, &linkError) {
		err = linkError.Err
	}

	if errors.As(err, &syscallError) {
		switch syscallError {
		case syscall.EAGAIN, // Resource temporarily unavailable
			syscall.EBUSY,        // Device or resource busy (file in use)
			syscall.ETXTBSY,      // Text file busy
			syscall.ETIMEDOUT,    // Connection timed out
			syscall.ECONNRESET,   // Connection reset
			syscall.ECONNABORTED, // Connection aborted
			syscall.ENETDOWN,     // Network is down
			syscall.ENETUNREACH,  // Network unreachable
			syscall.EHOSTDOWN,    // Host is down
			syscall.EHOSTUNREACH, // Host unreachable
			syscall.EIO:          // I/O error (can be transient on network)
			return true
		}
	}

	errMsg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection aborted",
		"broken pipe",
		"no route to host",
		"network is unreachable",
		"network is down",
		"host is down",
		"temporary failure",
		"resource temporarily unavailable",
		"resource busy",
		"file in use",
		"being used by another process",
		"i/o error",
		"too many open files",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
// Returns the result of the function, the number of attempts actually made,
// and the final error after all retries are exhausted. The attempt count lets
// callers record how many retries a successful operation needed.
func RetryWithBackoff[T any](cfg *RetryConfig, operation func() (T, error), operationName string) (T, int, error) {
	var result T
	var err error

	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	waitDuration := cfg.InitialWait

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = operation()

		if err == nil {
			if attempt > 1 {
				DebugLog("Retry: %s succeeded on attempt %d/%d",
					operationName, attempt, cfg.MaxAttempts)
			}
			return result, attempt, nil
		}

		if !IsRetryableError(err) {
			DebugLog("Retry: %s failed with non-retryable error: %v", operationName, err)
			return result, attempt, err
		}

		if attempt == cfg.MaxAttempts {
			WarnLog("Retry: %s failed after %d attempts: %v",
				operationName, cfg.MaxAttempts, err)
			return result, attempt, fmt.Errorf("max retries exceeded (%d attempts): %w",
				cfg.MaxAttempts, err)
		}

		DebugLog("Retry: %s failed (attempt %d/%d), retrying in %v: %v",
			operationName, attempt, cfg.MaxAttempts, waitDuration, err)

		time.Sleep(waitDuration)

		waitDuration *= 2
		if waitDuration > cfg.MaxWait {
			waitDuration = cfg.MaxWait
		}
	}

	return result, cfg.MaxAttempts, fmt.Errorf("unexpected retry loop exit: %w", err)
}

// Retry executes a function with retry logic (no return value).
// Returns the number of attempts made and the final error.
func Retry(cfg *RetryConfig, operation func() error, operationName string) (int, error) {
	_, attempts, err := RetryWithBackoff(cfg, func() (struct{}, error) {
		return struct{}{}, operation()
	}, operationName)
	return attempts, err
}

// RetryableStat stats a file with retry logic
func RetryableStat(path string, cfg *RetryConfig) (fs.FileInfo, error) {
	info, _, err := RetryWithBackoff(cfg, func() (fs.FileInfo, error) {
		return os.Stat(path)
	}, fmt.Sprintf("stat(%s)", path))
	return info, err
}

// RetryableRemove removes a file with retry logic
func RetryableRemove(path string, cfg *RetryConfig) error {
	_, err := Retry(cfg, func() error {
		return os.Remove(path)
	}, fmt.Sprintf("remove(%s)", path))
	return err
}

// RetryableRename renames a file with retry logic.
// Returns the number of attempts made so callers can audit retries.
func RetryableRename(oldpath, newpath string, cfg *RetryConfig) (int, error) {
	return Retry(cfg, func() error {
		return os.Rename(oldpath, newpath)
	}, fmt.Sprintf("rename(%s -> %s)", oldpath, newpath))
}

// RetryableMkdirAll creates a directory with retry logic
func RetryableMkdirAll(path string, perm os.FileMode, cfg *RetryConfig) error {
	_, err := Retry(cfg, func() error {
		return os.MkdirAll(path, perm)
	}, fmt.Sprintf("mkdir(%s)", path))
	return err
}
