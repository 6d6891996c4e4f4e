// Package fs provides the filesystem operations used by ffz.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [Real]: production implementation using [os] package
//
// Example usage:
//
//	fsys := fs.NewReal()
//	data, err := fsys.ReadFile("sample.tlv")
//	if err != nil {
//	    return err
//	}
//
//	err = fsys.WriteFileAtomic("sample.tlv-decisions", decisions, 0o644)
package fs

import (
	"os"
)

// FS defines the filesystem operations ffz needs for reading inputs and
// writing generated files, decision streams and snapshots.
//
// All methods mirror their [os] package equivalents but can be intercepted
// in tests.
type FS interface {
	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic writes data to a file atomically.
	// Uses a temp file + rename so readers never see a partial output.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	// No error if the directory already exists.
	MkdirAll(path string, perm os.FileMode) error

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
