//go:build linux

package hw

import (
	"os"
	"sync"

	"codeberg.org/mutker/chargectl/internal/errors"
	"golang.org/x/sys/unix"
	"tinygo.org/x/drivers"
)

// i2cSlave is the I2C_SLAVE ioctl from linux/i2c-dev.h.
const i2cSlave = 0x0703

// linuxI2C is an i2c-dev character device exposed as a drivers.I2C.
type linuxI2C struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16
	set  bool
}

var _ drivers.I2C = (*linuxI2C)(nil)

// OpenI2C opens an i2c-dev bus such as /dev/i2c-1.
func OpenI2C(path string) (I2CBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.New().Wrap(ErrOpenI2C, err)
	}
	return &linuxI2C{f: f}, nil
}

func (b *linuxI2C) Tx(addr uint16, w, r []byte) error {
	errFactory := errors.New()

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.set || b.addr != addr {
		if err := unix.IoctlSetInt(int(b.f.Fd()), i2cSlave, int(addr)); err != nil {
			return errFactory.Wrap(ErrI2CTransfer, err)
		}
		b.addr = addr
		b.set = true
	}

	if len(w) > 0 {
		if _, err := b.f.Write(w); err != nil {
			return errFactory.Wrap(ErrI2CTransfer, err)
		}
	}
	if len(r) > 0 {
		if _, err := b.f.Read(r); err != nil {
			return errFactory.Wrap(ErrI2CTransfer, err)
		}
	}

	return nil
}

func (b *linuxI2C) Close() error {
	return b.f.Close()
}
