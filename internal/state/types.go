package state

import (
	"fmt"
	"time"
)

// NumChannels is the number of battery channels supervised by the controller.
const NumChannels = 3

// ChannelID identifies a battery channel, 1..NumChannels.
type ChannelID int

// Channels lists every channel in ascending order.
func Channels() []ChannelID {
	ids := make([]ChannelID, NumChannels)
	for i := range ids {
		ids[i] = ChannelID(i + 1)
	}
	return ids
}

func (id ChannelID) Valid() bool {
	return id >= 1 && id <= NumChannels
}

// Index returns the zero-based array index for id.
func (id ChannelID) Index() int {
	return int(id) - 1
}

func (id ChannelID) String() string {
	return fmt.Sprintf("battery-%d", int(id))
}

// Mode is a channel's charging mode. The numeric values are part of the
// telemetry wire format.
type Mode int

const (
	ModeStop Mode = iota
	ModeStandard
	ModeFast
)

func (m Mode) String() string {
	switch m {
	case ModeStop:
		return "stop"
	case ModeStandard:
		return "standard"
	case ModeFast:
		return "fast"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ChargeState is the published state of one channel after a control cycle.
type ChargeState struct {
	Mode        Mode
	DutyCycle   int
	RampCounter int
	SoC         int
	Voltage     float64 // filtered bus voltage, V
	Current     float64 // filtered shunt current, mA
}

// TemperatureSnapshot holds one sampling pass over all six sensors, in °C.
type TemperatureSnapshot struct {
	Battery  [NumChannels]float64
	Resistor [NumChannels]float64
	TakenAt  time.Time
}

// BatteryTemp returns the battery temperature of id.
func (s TemperatureSnapshot) BatteryTemp(id ChannelID) float64 {
	return s.Battery[id.Index()]
}

// MaxResistor returns the hottest resistor-bank reading.
func (s TemperatureSnapshot) MaxResistor() float64 {
	maxTemp := s.Resistor[0]
	for _, t := range s.Resistor[1:] {
		maxTemp = max(maxTemp, t)
	}
	return maxTemp
}

// RelayState holds the discharge relay of each channel; true means the
// channel is discharging into its resistor bank.
type RelayState struct {
	On [NumChannels]bool
}

func (r RelayState) IsOn(id ChannelID) bool {
	return r.On[id.Index()]
}

// FanState holds the last commanded fan duties in percent.
type FanState struct {
	Battery  [NumChannels]int
	Resistor int
}

// TelemetryRecord is a read-only copy of all shared state, taken for
// transmission.
type TelemetryRecord struct {
	Channels     [NumChannels]ChargeState
	Temperatures TemperatureSnapshot
	Fans         FanState
	Relays       RelayState
	At           time.Time
}
