package fs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrEmptyDecisions is returned by [ReadDecisions] for an empty decision file.
var ErrEmptyDecisions = errors.New("decision file is empty")

// ReadDecisions returns up to n decision bytes.
//
// With an empty path the bytes come from the kernel random source. Otherwise
// the file at path is read and truncated to n bytes. A short file is
// returned as is: generation fails with a stream-exhausted error when a
// template needs more.
func ReadDecisions(fsys FS, path string, n int) ([]byte, error) {
	if path == "" {
		return RandomDecisions(n)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading decisions: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDecisions, path)
	}

	if len(data) > n {
		data = data[:n]
	}

	return data, nil
}

// RandomDecisions returns n bytes from getrandom(2).
func RandomDecisions(n int) ([]byte, error) {
	buf := make([]byte, n)

	for off := 0; off < n; {
		got, err := unix.Getrandom(buf[off:], 0)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}

			return nil, fmt.Errorf("getrandom: %w", err)
		}

		off += got
	}

	return buf, nil
}
