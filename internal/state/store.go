package state

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/chargectl/internal/errors"
)

// Store is the shared state between the control tasks and the network
// layer. Each aggregate has its own lock and is only ever exchanged by
// value, so readers never observe a partially applied update.
type Store struct {
	tempMu    sync.RWMutex
	temps     TemperatureSnapshot
	tempReady chan struct{}
	tempOnce  sync.Once

	relayMu sync.RWMutex
	relays  RelayState

	chargeMu sync.RWMutex
	charge   [NumChannels]ChargeState

	fanMu sync.RWMutex
	fans  FanState
}

func NewStore() *Store {
	return &Store{
		tempReady: make(chan struct{}),
	}
}

// CommitTemperatures publishes a complete sampling pass.
func (s *Store) CommitTemperatures(snapshot TemperatureSnapshot) {
	s.tempMu.Lock()
	s.temps = snapshot
	s.tempMu.Unlock()

	s.tempOnce.Do(func() { close(s.tempReady) })
}

// Temperatures returns the latest snapshot and whether one has been
// committed yet.
func (s *Store) Temperatures() (TemperatureSnapshot, bool) {
	s.tempMu.RLock()
	defer s.tempMu.RUnlock()

	select {
	case <-s.tempReady:
		return s.temps, true
	default:
		return s.temps, false
	}
}

// WaitTemperatures blocks until the first snapshot is committed.
func (s *Store) WaitTemperatures(ctx context.Context) (TemperatureSnapshot, error) {
	select {
	case <-ctx.Done():
		return TemperatureSnapshot{}, ctx.Err()
	case <-s.tempReady:
		snapshot, _ := s.Temperatures()
		return snapshot, nil
	}
}

// SetRelay records the discharge relay state of id and reports whether it
// changed.
func (s *Store) SetRelay(id ChannelID, on bool) (bool, error) {
	if !id.Valid() {
		return false, errors.New().WithData(ErrInvalidChannel, int(id))
	}

	s.relayMu.Lock()
	defer s.relayMu.Unlock()

	changed := s.relays.On[id.Index()] != on
	s.relays.On[id.Index()] = on

	return changed, nil
}

func (s *Store) Relays() RelayState {
	s.relayMu.RLock()
	defer s.relayMu.RUnlock()
	return s.relays
}

// CommitChannel publishes the state of id after a control cycle. States
// that break the ChargeState invariants are rejected.
func (s *Store) CommitChannel(id ChannelID, cs ChargeState) error {
	errFactory := errors.New()

	switch {
	case !id.Valid():
		return errFactory.WithData(ErrInvalidChannel, int(id))
	case cs.DutyCycle < 0 || cs.DutyCycle > 100:
		return errFactory.WithData(ErrInvalidDutyCycle, cs.DutyCycle)
	case cs.Mode == ModeStop && cs.DutyCycle != 0:
		return errFactory.WithData(ErrStoppedWithDuty, cs.DutyCycle)
	case cs.SoC < 0 || cs.SoC > 100:
		return errFactory.WithData(ErrInvalidSoC, cs.SoC)
	case cs.RampCounter < 0:
		return errFactory.WithData(ErrInvalidRamp, cs.RampCounter)
	}

	s.chargeMu.Lock()
	s.charge[id.Index()] = cs
	s.chargeMu.Unlock()

	return nil
}

func (s *Store) Channel(id ChannelID) ChargeState {
	if !id.Valid() {
		return ChargeState{}
	}

	s.chargeMu.RLock()
	defer s.chargeMu.RUnlock()
	return s.charge[id.Index()]
}

func (s *Store) CommitFans(fans FanState) {
	s.fanMu.Lock()
	s.fans = fans
	s.fanMu.Unlock()
}

func (s *Store) Fans() FanState {
	s.fanMu.RLock()
	defer s.fanMu.RUnlock()
	return s.fans
}

// Snapshot assembles a TelemetryRecord. Each aggregate is copied under its
// own lock.
func (s *Store) Snapshot(at time.Time) TelemetryRecord {
	rec := TelemetryRecord{At: at}

	s.chargeMu.RLock()
	rec.Channels = s.charge
	s.chargeMu.RUnlock()

	rec.Temperatures, _ = s.Temperatures()
	rec.Fans = s.Fans()
	rec.Relays = s.Relays()

	return rec
}
