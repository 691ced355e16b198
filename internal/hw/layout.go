package hw

import (
	"time"

	"codeberg.org/mutker/chargectl/internal/state"
)

// Layout describes how the channels are wired to the board.
type Layout struct {
	// 1-Wire device ids of the DS18B20 probes.
	BatteryProbes  [state.NumChannels]string
	ResistorProbes [state.NumChannels]string

	MuxAddress     uint16
	MonitorAddress uint16
	MuxChannels    [state.NumChannels]uint8
	// MonitorConfig is written to the INA219 configuration register,
	// MonitorCalibration to its calibration register.
	MonitorConfig      uint16
	MonitorCalibration uint16

	RelayPins      [state.NumChannels]Pin
	BatteryFanPins [state.NumChannels]Pin
	ResistorFanPin Pin
	ChargePins     [state.NumChannels]Pin

	PWMPeriod time.Duration
}

// DefaultLayout is the production wiring.
func DefaultLayout() Layout {
	return Layout{
		BatteryProbes:  [state.NumChannels]string{"28-3ce1d44372ac", "28-3ce1d4431bf2", "28-0316611a16ff"},
		ResistorProbes: [state.NumChannels]string{"28-031660efe1ff", "28-0316612a37ff", "28-031661131fff"},

		MuxAddress:         0x70,
		MonitorAddress:     0x40,
		MuxChannels:        [state.NumChannels]uint8{5, 6, 7},
		MonitorConfig:      0x399F,
		MonitorCalibration: 4096,

		RelayPins:      [state.NumChannels]Pin{17, 27, 22},
		BatteryFanPins: [state.NumChannels]Pin{23, 24, 10},
		ResistorFanPin: 9,
		ChargePins:     [state.NumChannels]Pin{18, 13, 15},

		PWMPeriod: 10 * time.Millisecond,
	}
}

func (l Layout) ChargePin(ch state.ChannelID) Pin {
	return l.ChargePins[ch.Index()]
}

func (l Layout) BatteryFanPin(ch state.ChannelID) Pin {
	return l.BatteryFanPins[ch.Index()]
}

func (l Layout) RelayPin(ch state.ChannelID) Pin {
	return l.RelayPins[ch.Index()]
}

// ProbeID returns the 1-Wire device id of p.
func (l Layout) ProbeID(p Probe) string {
	if p.Bank == BankResistor {
		return l.ResistorProbes[p.Channel.Index()]
	}
	return l.BatteryProbes[p.Channel.Index()]
}

// PWMPins lists every soft PWM output: charge controls, then fans.
func (l Layout) PWMPins() []Pin {
	pins := make([]Pin, 0, 2*state.NumChannels+1)
	pins = append(pins, l.ChargePins[:]...)
	pins = append(pins, l.BatteryFanPins[:]...)
	return append(pins, l.ResistorFanPin)
}
