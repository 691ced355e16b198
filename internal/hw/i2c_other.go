//go:build !linux

package hw

import "codeberg.org/mutker/chargectl/internal/errors"

// OpenI2C is only available on Linux.
func OpenI2C(path string) (I2CBus, error) {
	return nil, errors.New().WithData(ErrUnsupportedOnHost, path)
}
