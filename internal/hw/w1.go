package hw

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/chargectl/internal/errors"
)

// DefaultW1Dir is where the kernel w1 bus exposes its slaves.
const DefaultW1Dir = "/sys/bus/w1/devices"

// ReadW1Temperature reads the w1_slave file of a DS18B20 under dir.
func ReadW1Temperature(dir, id string) (float64, error) {
	path := filepath.Join(dir, id, "w1_slave")

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.New().Wrap(ErrReadTemperature, err)
	}
	defer f.Close()

	return ParseW1Temperature(f)
}

// ParseW1Temperature extracts the " t=" field, in millidegrees, from a
// w1_slave dump.
func ParseW1Temperature(r io.Reader) (float64, error) {
	errFactory := errors.New()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, " t=")
		if idx < 0 {
			continue
		}

		milli, err := strconv.Atoi(strings.TrimSpace(line[idx+3:]))
		if err != nil {
			return 0, errFactory.Wrap(ErrParseTemperature, err)
		}
		return float64(milli) / 1000, nil
	}

	if err := scanner.Err(); err != nil {
		return 0, errFactory.Wrap(ErrReadTemperature, err)
	}

	return 0, errFactory.WithMessage(ErrParseTemperature, "no t= field")
}
