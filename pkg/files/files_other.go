//go:build !windows

package files

import (
	"errors"
	"syscall"
)

func isInUse(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}

// DriverDir has no equivalent off Windows.
func DriverDir() (string, error) {
	return "", errors.New("driver directory is only defined on windows")
}
