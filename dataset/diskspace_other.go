//go:build !linux && !darwin

package dataset

import "errors"

// freeSpace is unavailable on this platform; callers treat the error as
// "cannot check" and proceed
func freeSpace(path string) (uint64, error) {
	return 0, errors.New("disk space check not supported on this platform")
}
