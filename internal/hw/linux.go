package hw

import (
	"context"
	"sync"

	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
)

// LinuxConfig locates the kernel interfaces used by the Linux board.
type LinuxConfig struct {
	I2CDevice string
	W1Dir     string
	GPIODir   string
	Layout    Layout
}

type linuxBoard struct {
	layout Layout
	w1Dir  string

	// i2cMu keeps a mux selection and the following monitor read together.
	i2cMu   sync.Mutex
	bus     I2CBus
	mux     *Mux
	monitor *INA219

	relays [state.NumChannels]*outputPin
	pwms   map[Pin]*softPWM
	pins   []*outputPin
	cancel context.CancelFunc
}

// OpenLinux initializes the I2C monitors and exports every GPIO in the
// layout. PWM outputs start at 0 and relays start off.
func OpenLinux(cfg LinuxConfig) (Board, error) {
	bus, err := OpenI2C(cfg.I2CDevice)
	if err != nil {
		return nil, err
	}

	b := &linuxBoard{
		layout:  cfg.Layout,
		w1Dir:   cfg.W1Dir,
		bus:     bus,
		mux:     NewMux(bus, cfg.Layout.MuxAddress),
		monitor: NewINA219(bus, cfg.Layout.MonitorAddress),
		pwms:    make(map[Pin]*softPWM),
	}
	fail := func(err error) (Board, error) {
		_ = b.Close()
		return nil, err
	}

	for _, ch := range state.Channels() {
		if err := b.mux.Select(cfg.Layout.MuxChannels[ch.Index()]); err != nil {
			return fail(err)
		}
		if err := b.monitor.Configure(cfg.Layout.MonitorConfig, cfg.Layout.MonitorCalibration); err != nil {
			return fail(err)
		}
	}

	for _, ch := range state.Channels() {
		out, err := exportOutput(cfg.GPIODir, cfg.Layout.RelayPin(ch))
		if err != nil {
			return fail(err)
		}
		b.relays[ch.Index()] = out
		b.pins = append(b.pins, out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	for _, pin := range cfg.Layout.PWMPins() {
		out, err := exportOutput(cfg.GPIODir, pin)
		if err != nil {
			return fail(err)
		}
		b.pins = append(b.pins, out)

		pwm := newSoftPWM(out, cfg.Layout.PWMPeriod)
		b.pwms[pin] = pwm
		go pwm.run(ctx)
	}

	logger.Debug().
		Str("i2c", cfg.I2CDevice).
		Int("pwm_outputs", len(b.pwms)).
		Msg("Linux board initialized")

	return b, nil
}

func (b *linuxBoard) Layout() Layout {
	return b.layout
}

func (b *linuxBoard) ReadTemperature(p Probe) (float64, error) {
	if !p.Channel.Valid() {
		return 0, errors.New().WithData(ErrUnknownProbe, p.String())
	}
	return ReadW1Temperature(b.w1Dir, b.layout.ProbeID(p))
}

func (b *linuxBoard) ReadBusVoltage(ch state.ChannelID) (float64, error) {
	return b.readMonitor(ch, (*INA219).BusVoltage)
}

func (b *linuxBoard) ReadShuntCurrent(ch state.ChannelID) (float64, error) {
	return b.readMonitor(ch, (*INA219).Current)
}

func (b *linuxBoard) readMonitor(ch state.ChannelID, read func(*INA219) (float64, error)) (float64, error) {
	if !ch.Valid() {
		return 0, errors.New().WithData(state.ErrInvalidChannel, int(ch))
	}

	b.i2cMu.Lock()
	defer b.i2cMu.Unlock()

	if err := b.mux.Select(b.layout.MuxChannels[ch.Index()]); err != nil {
		return 0, err
	}
	return read(b.monitor)
}

func (b *linuxBoard) SetPWMDuty(pin Pin, percent int) error {
	errFactory := errors.New()

	if percent < 0 || percent > 100 {
		return errFactory.WithData(ErrInvalidDuty, percent)
	}
	pwm, ok := b.pwms[pin]
	if !ok {
		return errFactory.WithData(ErrUnknownPin, int(pin))
	}

	pwm.Set(percent)
	return nil
}

func (b *linuxBoard) SetRelay(ch state.ChannelID, on bool) error {
	if !ch.Valid() {
		return errors.New().WithData(state.ErrInvalidChannel, int(ch))
	}
	return b.relays[ch.Index()].Set(on)
}

// Close stops the PWM generators, leaving every output low, and releases
// the devices.
func (b *linuxBoard) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	for _, pwm := range b.pwms {
		<-pwm.done
	}

	var errs []error
	for _, relay := range b.relays {
		if relay != nil {
			if err := relay.Set(false); err != nil {
				errs = append(errs, err)
			}
		}
	}

	b.closePins()
	if err := b.bus.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *linuxBoard) closePins() {
	for _, p := range b.pins {
		_ = p.Close()
	}
	b.pins = nil
}
