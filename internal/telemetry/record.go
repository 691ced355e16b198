package telemetry

import (
	"encoding/json"
	"math"
	"strconv"

	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/state"
)

// Fixed2 is a float encoded with exactly two decimals.
type Fixed2 float64

func (f Fixed2) MarshalJSON() ([]byte, error) {
	return []byte(f.String()), nil
}

// String formats f with two decimals. Non-finite values encode as 0.00.
func (f Fixed2) String() string {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Wire is the JSON object sent to the operator backend. Field order is the
// wire key order.
type Wire struct {
	Voltage1     Fixed2 `json:"voltage_1"`
	Current1     Fixed2 `json:"current_1"`
	SoC1         int    `json:"soc_1"`
	Temperature1 Fixed2 `json:"temperature_1"`
	ChargeMode1  int    `json:"charge_mode_1"`
	RelayState1  int    `json:"relay_state_1"`
	FanPWM1      int    `json:"fan_pwm_1"`
	DutyCycle1   int    `json:"duty_cycle1"`

	Voltage2     Fixed2 `json:"voltage_2"`
	Current2     Fixed2 `json:"current_2"`
	SoC2         int    `json:"soc_2"`
	Temperature2 Fixed2 `json:"temperature_2"`
	ChargeMode2  int    `json:"charge_mode_2"`
	RelayState2  int    `json:"relay_state_2"`
	FanPWM2      int    `json:"fan_pwm_2"`
	DutyCycle2   int    `json:"duty_cycle2"`

	Voltage3     Fixed2 `json:"voltage_3"`
	Current3     Fixed2 `json:"current_3"`
	SoC3         int    `json:"soc_3"`
	Temperature3 Fixed2 `json:"temperature_3"`
	ChargeMode3  int    `json:"charge_mode_3"`
	RelayState3  int    `json:"relay_state_3"`
	FanPWM3      int    `json:"fan_pwm_3"`
	DutyCycle3   int    `json:"duty_cycle3"`

	ResisterTemp1  Fixed2 `json:"resister_temp_1"`
	ResisterTemp2  Fixed2 `json:"resister_temp_2"`
	ResisterTemp3  Fixed2 `json:"resister_temp_3"`
	ResisterFanPWM int    `json:"resister_fan_pwm"`
}

// ChannelView is the per-channel slice of a record.
type ChannelView struct {
	Voltage     Fixed2
	Current     Fixed2
	SoC         int
	Temperature Fixed2
	ChargeMode  int
	RelayState  int
	FanPWM      int
	DutyCycle   int
}

// View extracts channel id from rec. Relay state N is channel N's relay.
func View(rec state.TelemetryRecord, id state.ChannelID) ChannelView {
	i := id.Index()
	cs := rec.Channels[i]
	return ChannelView{
		Voltage:     Fixed2(cs.Voltage),
		Current:     Fixed2(cs.Current),
		SoC:         cs.SoC,
		Temperature: Fixed2(rec.Temperatures.Battery[i]),
		ChargeMode:  int(cs.Mode),
		RelayState:  boolToInt(rec.Relays.On[i]),
		FanPWM:      rec.Fans.Battery[i],
		DutyCycle:   cs.DutyCycle,
	}
}

func NewWire(rec state.TelemetryRecord) Wire {
	c1, c2, c3 := View(rec, 1), View(rec, 2), View(rec, 3)
	return Wire{
		Voltage1: c1.Voltage, Current1: c1.Current, SoC1: c1.SoC, Temperature1: c1.Temperature,
		ChargeMode1: c1.ChargeMode, RelayState1: c1.RelayState, FanPWM1: c1.FanPWM, DutyCycle1: c1.DutyCycle,

		Voltage2: c2.Voltage, Current2: c2.Current, SoC2: c2.SoC, Temperature2: c2.Temperature,
		ChargeMode2: c2.ChargeMode, RelayState2: c2.RelayState, FanPWM2: c2.FanPWM, DutyCycle2: c2.DutyCycle,

		Voltage3: c3.Voltage, Current3: c3.Current, SoC3: c3.SoC, Temperature3: c3.Temperature,
		ChargeMode3: c3.ChargeMode, RelayState3: c3.RelayState, FanPWM3: c3.FanPWM, DutyCycle3: c3.DutyCycle,

		ResisterTemp1:  Fixed2(rec.Temperatures.Resistor[0]),
		ResisterTemp2:  Fixed2(rec.Temperatures.Resistor[1]),
		ResisterTemp3:  Fixed2(rec.Temperatures.Resistor[2]),
		ResisterFanPWM: rec.Fans.Resistor,
	}
}

// Encode renders rec in the wire format.
func Encode(rec state.TelemetryRecord) ([]byte, error) {
	b, err := json.Marshal(NewWire(rec))
	if err != nil {
		return nil, errors.New().Wrap(ErrEncodeRecord, err)
	}
	return b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
