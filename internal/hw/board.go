package hw

import "codeberg.org/mutker/chargectl/internal/errors"

const (
	BackendLinux = "linux"
	BackendSim   = "sim"
)

// Open creates the board for backend.
func Open(backend string, cfg LinuxConfig) (Board, error) {
	switch backend {
	case BackendLinux:
		return OpenLinux(cfg)
	case BackendSim:
		return NewSim(cfg.Layout), nil
	default:
		return nil, errors.New().WithData(errors.ErrInvalidBackend, backend)
	}
}
