package common

import (
	"errors"
	"fmt"
	"os"
)

// Error classes of a tracking run. Fatal errors wrap one of these together
// with their cause, so callers can match with errors.Is.
var (
	// ErrBadRoot means the root does not exist or is not a directory.
	ErrBadRoot = errors.New("root is not a readable directory")
	// ErrWalkEntryFailed marks a directory entry that could not be read or stat'd.
	ErrWalkEntryFailed = errors.New("walk entry failed")
	// ErrHashIOFailed marks a file that could not be opened or read while hashing.
	ErrHashIOFailed = errors.New("hash io failed")
	// ErrStoreInsertFailed means the in-memory store rejected a row or the commit.
	ErrStoreInsertFailed = errors.New("store insert failed")
	// ErrSnapshotFailed means the on-disk copy could not be produced.
	ErrSnapshotFailed = errors.New("snapshot failed")

	ErrInvalidHashPolicy = errors.New("invalid hash error policy")
	ErrPathEmpty         = errors.New("path cannot be empty")
)

// ValidateRoot checks that root names an existing directory.
func ValidateRoot(root string) error {
	if root == "" {
		return fmt.Errorf("%w: %w", ErrBadRoot, ErrPathEmpty)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadRoot, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBadRoot, root)
	}
	return nil
}

// ValidateOutput checks that the snapshot destination is usable as a file path.
func ValidateOutput(output string) error {
	if output == "" {
		return fmt.Errorf("%w: %w", ErrSnapshotFailed, ErrPathEmpty)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSnapshotFailed, output)
	}
	return nil
}

// WrapError wraps err with a class sentinel and a formatted context.
// It returns nil when err is nil.
func WrapError(class, err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", class, fmt.Sprintf(message, args...), err)
}
