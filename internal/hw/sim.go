package hw

import (
	"sync"

	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/state"
)

// Simulation constants. Currents are mA, voltages V.
const (
	simCurrentPerDuty   = 15.0
	simDischargeCurrent = -800.0
	simInternalOhms     = 0.2
	simChargePerRead    = 2e-6 // V per mA per current read
	simMinVoltage       = 3.0
	simMaxVoltage       = 4.25
	simAmbient          = 25.0
	simBatteryHeat      = 0.05 // °C per percent duty
	simResistorHeat     = 25.0
)

// Sim is an in-memory board with a crude battery and thermal model. It
// records every PWM write so tests can inspect actuator traffic.
type Sim struct {
	mu sync.Mutex

	layout   Layout
	ocv      [state.NumChannels]float64
	ambient  map[Probe]float64
	relays   [state.NumChannels]bool
	duties   map[Pin]int
	writes   map[Pin][]int
	tempFail map[Probe]bool
	monFail  [state.NumChannels]bool
}

var _ Board = (*Sim)(nil)

// NewSim returns a board whose batteries rest at 3.7 V and whose probes
// read ambient temperature.
func NewSim(layout Layout) *Sim {
	s := &Sim{
		layout:   layout,
		ambient:  make(map[Probe]float64),
		duties:   make(map[Pin]int),
		writes:   make(map[Pin][]int),
		tempFail: make(map[Probe]bool),
	}
	for i := range s.ocv {
		s.ocv[i] = 3.7
	}
	for _, p := range Probes() {
		s.ambient[p] = simAmbient
	}
	return s
}

func (s *Sim) Layout() Layout {
	return s.layout
}

// SetOpenCircuitVoltage sets the resting voltage of ch.
func (s *Sim) SetOpenCircuitVoltage(ch state.ChannelID, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ocv[ch.Index()] = v
}

// SetTemperature sets the base reading of p before self-heating.
func (s *Sim) SetTemperature(p Probe, t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient[p] = t
}

// FailTemperature makes reads of p fail until cleared.
func (s *Sim) FailTemperature(p Probe, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempFail[p] = fail
}

// FailMonitor makes voltage and current reads of ch fail until cleared.
func (s *Sim) FailMonitor(ch state.ChannelID, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monFail[ch.Index()] = fail
}

// Writes returns every duty written to pin, oldest first.
func (s *Sim) Writes(pin Pin) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.writes[pin]))
	copy(out, s.writes[pin])
	return out
}

func (s *Sim) Duty(pin Pin) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duties[pin]
}

func (s *Sim) Relay(ch state.ChannelID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relays[ch.Index()]
}

func (s *Sim) ReadTemperature(p Probe) (float64, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.ambient[p]
	if !ok {
		return 0, errFactory.WithData(ErrUnknownProbe, p.String())
	}
	if s.tempFail[p] {
		return 0, errFactory.WithData(ErrSimulatedFault, p.String())
	}

	if p.Bank == BankResistor {
		if s.relays[p.Channel.Index()] {
			return base + simResistorHeat, nil
		}
		return base, nil
	}

	return base + float64(s.duties[s.layout.ChargePin(p.Channel)])*simBatteryHeat, nil
}

func (s *Sim) ReadBusVoltage(ch state.ChannelID) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMonitor(ch); err != nil {
		return 0, err
	}

	// Terminal voltage rises above rest voltage under charge current.
	return s.ocv[ch.Index()] + s.current(ch)/1000*simInternalOhms, nil
}

// ReadShuntCurrent also advances the battery model by one step.
func (s *Sim) ReadShuntCurrent(ch state.ChannelID) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMonitor(ch); err != nil {
		return 0, err
	}

	current := s.current(ch)
	v := s.ocv[ch.Index()] + current*simChargePerRead
	s.ocv[ch.Index()] = min(max(v, simMinVoltage), simMaxVoltage)

	return current, nil
}

func (s *Sim) checkMonitor(ch state.ChannelID) error {
	errFactory := errors.New()
	if !ch.Valid() {
		return errFactory.WithData(state.ErrInvalidChannel, int(ch))
	}
	if s.monFail[ch.Index()] {
		return errFactory.WithData(ErrSimulatedFault, ch.String())
	}
	return nil
}

func (s *Sim) current(ch state.ChannelID) float64 {
	i := float64(s.duties[s.layout.ChargePin(ch)]) * simCurrentPerDuty
	if s.relays[ch.Index()] {
		i += simDischargeCurrent
	}
	return i
}

func (s *Sim) SetPWMDuty(pin Pin, percent int) error {
	errFactory := errors.New()

	if percent < 0 || percent > 100 {
		return errFactory.WithData(ErrInvalidDuty, percent)
	}
	if !s.knownPin(pin) {
		return errFactory.WithData(ErrUnknownPin, int(pin))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.duties[pin] = percent
	s.writes[pin] = append(s.writes[pin], percent)

	return nil
}

func (s *Sim) SetRelay(ch state.ChannelID, on bool) error {
	if !ch.Valid() {
		return errors.New().WithData(state.ErrInvalidChannel, int(ch))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.relays[ch.Index()] = on

	return nil
}

func (s *Sim) knownPin(pin Pin) bool {
	for _, p := range s.layout.PWMPins() {
		if p == pin {
			return true
		}
	}
	return false
}

// Close drives every output low.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pin := range s.duties {
		s.duties[pin] = 0
	}
	s.relays = [state.NumChannels]bool{}

	return nil
}
