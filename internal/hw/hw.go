// Package hw provides the sensor and actuator collaborators of the charge
// controller: a Linux board built from 1-Wire probes, INA219 monitors behind
// a TCA9548A multiplexer and sysfs GPIO, and a simulated board for host runs.
package hw

import (
	"fmt"

	"codeberg.org/mutker/chargectl/internal/state"
)

// Bank distinguishes the two temperature probe groups.
type Bank int

const (
	BankBattery Bank = iota
	BankResistor
)

// Probe identifies one temperature sensor.
type Probe struct {
	Bank    Bank
	Channel state.ChannelID
}

func BatteryProbe(ch state.ChannelID) Probe {
	return Probe{Bank: BankBattery, Channel: ch}
}

func ResistorProbe(ch state.ChannelID) Probe {
	return Probe{Bank: BankResistor, Channel: ch}
}

func (p Probe) String() string {
	if p.Bank == BankResistor {
		return fmt.Sprintf("resistor-%d", int(p.Channel))
	}
	return fmt.Sprintf("battery-%d", int(p.Channel))
}

// Probes lists all six sensors, batteries first.
func Probes() []Probe {
	probes := make([]Probe, 0, 2*state.NumChannels)
	for _, ch := range state.Channels() {
		probes = append(probes, BatteryProbe(ch))
	}
	for _, ch := range state.Channels() {
		probes = append(probes, ResistorProbe(ch))
	}
	return probes
}

// Pin is a BCM GPIO number.
type Pin int

// Sensors reads the measured quantities. Temperatures are in °C, voltages in
// V and currents in mA.
type Sensors interface {
	ReadTemperature(p Probe) (float64, error)
	ReadBusVoltage(ch state.ChannelID) (float64, error)
	ReadShuntCurrent(ch state.ChannelID) (float64, error)
}

// Actuators drives the PWM outputs and discharge relays. Duties are percent.
type Actuators interface {
	SetPWMDuty(pin Pin, percent int) error
	SetRelay(ch state.ChannelID, on bool) error
}

// Board is a complete hardware backend.
type Board interface {
	Sensors
	Actuators
	Layout() Layout
	Close() error
}
