// Package fan samples the battery and resistor-bank temperatures and drives
// the cooling fans from them.
package fan

import (
	"context"
	"time"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/hw"
	"codeberg.org/mutker/chargectl/internal/journal"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
)

type Config struct {
	Sensors   hw.Sensors
	Actuators hw.Actuators
	Store     *state.Store
	Layout    hw.Layout
	Clock     clock.Clock
	Journal   journal.Journal
	Logger    logger.Logger
	// Interval is the pause between sampling passes. Zero samples back to
	// back; the 1-Wire conversions pace the loop on real hardware.
	Interval time.Duration
}

// Controller owns the temperature snapshot and the fan outputs.
type Controller struct {
	cfg     Config
	faulted map[hw.Probe]bool
}

func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	return &Controller{
		cfg:     cfg,
		faulted: make(map[hw.Probe]bool),
	}
}

// Run samples and drives the fans until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.cfg.Logger.Info().Dur("interval", c.cfg.Interval).Msg("Fan controller started")

	for {
		snapshot := c.Sample(ctx)
		c.Drive(snapshot)

		if err := c.cfg.Clock.Sleep(ctx, c.cfg.Interval); err != nil {
			return err
		}
	}
}

// Sample reads all six probes and commits them as one snapshot. A failed
// read is recorded as 0.
func (c *Controller) Sample(ctx context.Context) state.TemperatureSnapshot {
	var snapshot state.TemperatureSnapshot

	for _, p := range hw.Probes() {
		t := c.read(ctx, p)
		if p.Bank == hw.BankResistor {
			snapshot.Resistor[p.Channel.Index()] = t
		} else {
			snapshot.Battery[p.Channel.Index()] = t
		}
	}
	snapshot.TakenAt = c.cfg.Clock.Now()

	c.cfg.Store.CommitTemperatures(snapshot)
	return snapshot
}

// Drive sets every fan from snapshot and commits the duties.
func (c *Controller) Drive(snapshot state.TemperatureSnapshot) state.FanState {
	var fans state.FanState

	for _, ch := range state.Channels() {
		duty := ComputeFanDuty(snapshot.BatteryTemp(ch), BatteryFanLow, BatteryFanHigh)
		fans.Battery[ch.Index()] = duty
		c.write(c.cfg.Layout.BatteryFanPin(ch), duty)
	}

	fans.Resistor = ComputeFanDuty(snapshot.MaxResistor(), ResistorFanLow, ResistorFanHigh)
	c.write(c.cfg.Layout.ResistorFanPin, fans.Resistor)

	c.cfg.Store.CommitFans(fans)

	c.cfg.Logger.Debug().
		Ints("battery_fans", fans.Battery[:]).
		Int("resistor_fan", fans.Resistor).
		Msg("Fan speeds updated")

	return fans
}

func (c *Controller) read(ctx context.Context, p hw.Probe) float64 {
	t, err := c.cfg.Sensors.ReadTemperature(p)
	if err != nil {
		c.cfg.Logger.Warn().
			Err(errors.New().Wrap(ErrReadTemperature, err)).
			Str("sensor", p.String()).
			Msg("Temperature read failed, using 0")

		if !c.faulted[p] {
			c.faulted[p] = true
			c.record(ctx, journal.KindSensorFault, p, err.Error())
		}
		return 0
	}

	if c.faulted[p] {
		c.faulted[p] = false
		c.cfg.Logger.Info().Str("sensor", p.String()).Float64("temperature", t).Msg("Temperature sensor recovered")
		c.record(ctx, journal.KindSensorRecovered, p, "")
	}
	return t
}

func (c *Controller) record(ctx context.Context, kind journal.Kind, p hw.Probe, detail string) {
	event := journal.Event{
		Time:    c.cfg.Clock.Now(),
		Kind:    kind,
		Channel: int(p.Channel),
		Source:  p.String(),
		Detail:  detail,
	}
	if err := c.cfg.Journal.Record(ctx, event); err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("Failed to journal sensor event")
	}
}

func (c *Controller) write(pin hw.Pin, duty int) {
	if err := c.cfg.Actuators.SetPWMDuty(pin, duty); err != nil {
		c.cfg.Logger.Error().
			Err(errors.New().Wrap(ErrSetFanSpeed, err)).
			Int("pin", int(pin)).
			Int("duty", duty).
			Msg("Failed to set fan speed")
	}
}
