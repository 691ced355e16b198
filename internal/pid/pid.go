// Package pid guards against two controllers driving the same board.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/chargectl/internal/errors"
)

const (
	pidFile = "chargectl.pid"
)

// Path returns the PID file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, pidFile)
}

// Write records the current process ID in dir. It fails with
// ErrAlreadyRunning while the process named by an existing file is alive;
// a stale file is replaced.
func Write(dir string) error {
	errFactory := errors.New()
	path := Path(dir)

	if b, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(b))); err == nil && alive(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	if pid <= 0 || pid == os.Getpid() {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Remove removes the PID file.
func Remove(dir string) error {
	errFactory := errors.New()

	if err := os.Remove(Path(dir)); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}
