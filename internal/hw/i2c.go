package hw

import "tinygo.org/x/drivers"

// I2CBus is a closable drivers.I2C.
type I2CBus interface {
	drivers.I2C
	Close() error
}
