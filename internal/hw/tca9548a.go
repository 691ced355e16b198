package hw

import (
	"codeberg.org/mutker/chargectl/internal/errors"
	"tinygo.org/x/drivers"
)

// Mux is a TCA9548A eight-way I2C multiplexer.
type Mux struct {
	bus  drivers.I2C
	addr uint16
}

func NewMux(bus drivers.I2C, addr uint16) *Mux {
	return &Mux{bus: bus, addr: addr}
}

// Select routes the downstream bus to channel ch (0..7).
func (m *Mux) Select(ch uint8) error {
	if ch > 7 {
		return errors.New().WithData(ErrSelectMuxChannel, ch)
	}
	if err := m.bus.Tx(m.addr, []byte{1 << ch}, nil); err != nil {
		return errors.New().Wrap(ErrSelectMuxChannel, err)
	}
	return nil
}
