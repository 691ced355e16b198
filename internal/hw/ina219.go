package hw

import (
	"codeberg.org/mutker/chargectl/internal/errors"
	"tinygo.org/x/drivers"
)

const (
	ina219RegConfig      = 0x00
	ina219RegShunt       = 0x01
	ina219RegBus         = 0x02
	ina219RegCurrent     = 0x04
	ina219RegCalibration = 0x05
)

// Register scaling as wired on the board.
const (
	ina219BusLSB     = 0.004 // V, after dropping the flag bits
	ina219ShuntLSB   = 0.01  // mV
	ina219CurrentLSB = 0.1   // mA

	// The bus register holds the voltage in bits 15..3; bits 1..0 are the
	// CNVR and OVF flags.
	ina219BusShift = 3
)

// INA219 is a current/power monitor.
type INA219 struct {
	bus  drivers.I2C
	addr uint16
}

func NewINA219(bus drivers.I2C, addr uint16) *INA219 {
	return &INA219{bus: bus, addr: addr}
}

// Configure writes the configuration and calibration registers.
func (d *INA219) Configure(config, calibration uint16) error {
	errFactory := errors.New()
	if err := d.writeRegister(ina219RegConfig, config); err != nil {
		return errFactory.Wrap(ErrConfigureMonitor, err)
	}
	if err := d.writeRegister(ina219RegCalibration, calibration); err != nil {
		return errFactory.Wrap(ErrConfigureMonitor, err)
	}
	return nil
}

// BusVoltage returns the bus voltage in V.
func (d *INA219) BusVoltage() (float64, error) {
	raw, err := d.readRegister(ina219RegBus)
	if err != nil {
		return 0, err
	}
	return float64(raw>>ina219BusShift) * ina219BusLSB, nil
}

// ShuntVoltage returns the shunt voltage in mV.
func (d *INA219) ShuntVoltage() (float64, error) {
	raw, err := d.readRegister(ina219RegShunt)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)) * ina219ShuntLSB, nil
}

// Current returns the calibrated current in mA. It is negative when the
// battery is discharging through the shunt.
func (d *INA219) Current() (float64, error) {
	raw, err := d.readRegister(ina219RegCurrent)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)) * ina219CurrentLSB, nil
}

func (d *INA219) writeRegister(reg uint8, value uint16) error {
	return d.bus.Tx(d.addr, []byte{reg, byte(value >> 8), byte(value)}, nil)
}

// Registers are big-endian. Shunt and current are two's complement.
func (d *INA219) readRegister(reg uint8) (uint16, error) {
	buf := make([]byte, 2)
	if err := d.bus.Tx(d.addr, []byte{reg}, buf); err != nil {
		return 0, errors.New().Wrap(ErrReadMonitor, err)
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}
