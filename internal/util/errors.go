package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrUndecodable indicates an image could not be decoded for fingerprinting
	ErrUndecodable = errors.New("undecodable image")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSelfReference indicates an attempt to record a file as a duplicate
	// of itself
	ErrSelfReference = errors.New("file cannot be a duplicate of itself")

	// ErrOriginalProtected indicates an attempt to flag or move a file that
	// holds the original role
	ErrOriginalProtected = errors.New("file is an original and cannot be flagged")

	// ErrPartialFailure indicates a phase completed but one or more files
	// ended in an error state
	ErrPartialFailure = errors.New("phase completed with per-file errors")
)
