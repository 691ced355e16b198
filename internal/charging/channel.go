package charging

import (
	"context"
	"fmt"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/hw"
	"codeberg.org/mutker/chargectl/internal/journal"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
)

// ChannelConfig wires a Channel to its collaborators.
type ChannelConfig struct {
	ID        state.ChannelID
	Pin       hw.Pin
	Sensors   hw.Sensors
	Actuators hw.Actuators
	Store     *state.Store
	Clock     clock.Clock
	Journal   journal.Journal
	Logger    logger.Logger
}

// Channel runs the charge control loop of one battery. Only the engine task
// calls Cycle, so the fields need no locking.
type Channel struct {
	cfg    ChannelConfig
	filter *Filter
	soc    *SoCEstimator
	ctrl   Controller

	mode    state.Mode
	lastSoC int
}

func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	return &Channel{
		cfg:    cfg,
		filter: NewFilter(),
		soc:    NewSoCEstimator(),
		mode:   state.ModeStop,
	}
}

func (c *Channel) ID() state.ChannelID {
	return c.cfg.ID
}

// Cycle runs one measurement and control pass:
// select the mode from the latest snapshot and the previous SoC, sample the
// charge current, blank the output for Blackout, sample the rest voltage,
// update SoC, step the controller from the pre-blackout duty and write the
// new duty. The only error returned is the context's.
func (c *Channel) Cycle(ctx context.Context) error {
	id := c.cfg.ID

	temps, _ := c.cfg.Store.Temperatures()
	relayOn := c.cfg.Store.Relays().IsOn(id)
	temp := temps.BatteryTemp(id)

	mode := SelectMode(temp, relayOn, c.lastSoC)
	if mode != c.mode {
		c.transition(ctx, mode, temp, relayOn)
	}

	prevDuty := c.ctrl.Duty()

	avgI, _ := c.filter.Push(Current, c.read(Current), prevDuty)

	c.write(0)
	if err := c.cfg.Clock.Sleep(ctx, Blackout); err != nil {
		return err
	}

	avgV, voltageOK := c.filter.Push(Voltage, c.read(Voltage), prevDuty)
	if voltageOK {
		c.lastSoC = c.soc.Push(avgV, relayOn)
	}

	duty := prevDuty
	if mode == state.ModeStop || voltageOK {
		duty = c.ctrl.Step(mode, avgV, avgI, TargetVoltage)
	} else {
		c.cfg.Logger.Debug().
			Str("channel", id.String()).
			Msg("No valid voltage sample, holding duty cycle")
	}
	c.write(duty)

	cs := state.ChargeState{
		Mode:        mode,
		DutyCycle:   duty,
		RampCounter: c.ctrl.Ramp(),
		SoC:         c.lastSoC,
		Voltage:     avgV,
		Current:     avgI,
	}
	if err := c.commit(cs); err != nil {
		c.cfg.Logger.Error().Err(err).Str("channel", id.String()).Msg("Failed to commit charge state")
	}

	c.cfg.Logger.Debug().
		Str("channel", id.String()).
		Str("mode", mode.String()).
		Int("duty", duty).
		Int("soc", c.lastSoC).
		Float64("voltage", avgV).
		Float64("current", avgI).
		Float64("temperature", temp).
		Msg("Charge cycle complete")

	return nil
}

func (c *Channel) transition(ctx context.Context, mode state.Mode, temp float64, relayOn bool) {
	id := c.cfg.ID
	from := c.mode
	c.mode = mode

	if from == state.ModeStop && mode != state.ModeStop {
		c.ctrl.Arm()
	}

	c.cfg.Logger.Info().
		Str("channel", id.String()).
		Str("from", from.String()).
		Str("to", mode.String()).
		Float64("temperature", temp).
		Bool("relay", relayOn).
		Int("soc", c.lastSoC).
		Msg("Charge mode changed")

	event := journal.Event{
		Time:    c.cfg.Clock.Now(),
		Kind:    journal.KindModeChange,
		Channel: int(id),
		Source:  "engine",
		Detail:  fmt.Sprintf("%s->%s temp=%.2f relay=%t soc=%d", from, mode, temp, relayOn, c.lastSoC),
	}
	if err := c.cfg.Journal.Record(ctx, event); err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("Failed to journal mode change")
	}
}

// read returns 0 for a failed sensor read.
func (c *Channel) read(q Quantity) float64 {
	var (
		v   float64
		err error
	)
	switch q {
	case Current:
		v, err = c.cfg.Sensors.ReadShuntCurrent(c.cfg.ID)
	case Voltage:
		v, err = c.cfg.Sensors.ReadBusVoltage(c.cfg.ID)
	}

	if err != nil {
		c.cfg.Logger.Warn().
			Err(errors.New().Wrap(ErrReadSensor, err)).
			Str("channel", c.cfg.ID.String()).
			Str("quantity", q.String()).
			Msg("Sensor read failed, using 0")
		return 0
	}
	return v
}

func (c *Channel) write(duty int) {
	if err := c.cfg.Actuators.SetPWMDuty(c.cfg.Pin, duty); err != nil {
		c.cfg.Logger.Error().
			Err(errors.New().Wrap(ErrWriteActuator, err)).
			Str("channel", c.cfg.ID.String()).
			Int("duty", duty).
			Msg("Failed to set charge duty")
	}
}

// Reset drives the charge output to 0.
func (c *Channel) Reset() error {
	return c.cfg.Actuators.SetPWMDuty(c.cfg.Pin, 0)
}

func (c *Channel) commit(cs state.ChargeState) error {
	if err := c.cfg.Store.CommitChannel(c.cfg.ID, cs); err != nil {
		return errors.New().Wrap(ErrCommitState, err)
	}
	return nil
}
