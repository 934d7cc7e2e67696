//go:build !unix

package file

import "fmt"

// Lock is not supported on non-unix platforms, callers rely on their in-process locking.
func Lock(path string) (unlock func() error, err error) {
	return nil, fmt.Errorf("could not lock %s: %w", path, ErrLockUnsupported)
}
