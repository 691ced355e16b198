package hw

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"codeberg.org/mutker/chargectl/internal/errors"
)

// DefaultGPIODir is the sysfs GPIO class directory.
const DefaultGPIODir = "/sys/class/gpio"

// outputPin is an exported sysfs GPIO configured as an output.
type outputPin struct {
	mu    sync.Mutex
	pin   Pin
	value *os.File
	high  bool
}

func exportOutput(dir string, pin Pin) (*outputPin, error) {
	errFactory := errors.New()
	pinDir := filepath.Join(dir, "gpio"+strconv.Itoa(int(pin)))

	if _, err := os.Stat(pinDir); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(dir, "export"), []byte(strconv.Itoa(int(pin))), 0o200); err != nil {
			return nil, errFactory.Wrap(ErrExportGPIO, err)
		}
	}

	if err := os.WriteFile(filepath.Join(pinDir, "direction"), []byte("out"), 0o200); err != nil {
		return nil, errFactory.Wrap(ErrExportGPIO, err)
	}

	f, err := os.OpenFile(filepath.Join(pinDir, "value"), os.O_WRONLY, 0)
	if err != nil {
		return nil, errFactory.Wrap(ErrExportGPIO, err)
	}

	p := &outputPin{pin: pin, value: f}
	if err := p.Set(false); err != nil {
		f.Close()
		return nil, err
	}

	return p, nil
}

func (p *outputPin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := []byte("0")
	if high {
		b = []byte("1")
	}
	if _, err := p.value.WriteAt(b, 0); err != nil {
		return errors.New().Wrap(ErrWriteGPIO, err)
	}
	p.high = high

	return nil
}

func (p *outputPin) Close() error {
	return p.value.Close()
}
