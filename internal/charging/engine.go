package charging

import (
	"context"

	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/hw"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
)

// Engine runs the channels one after another for as long as its context
// lives.
type Engine struct {
	channels  []*Channel
	store     *state.Store
	actuators hw.Actuators
	logger    logger.Logger
}

// EngineConfig carries the collaborators shared by all channels. Each
// channel takes its charge pin from Layout.
type EngineConfig struct {
	ChannelConfig
	Layout hw.Layout
}

// NewEngine builds one Channel per ChannelID.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	e := &Engine{
		store:     cfg.Store,
		actuators: cfg.Actuators,
		logger:    cfg.Logger,
	}
	for _, id := range state.Channels() {
		chCfg := cfg.ChannelConfig
		chCfg.ID = id
		chCfg.Pin = cfg.Layout.ChargePin(id)
		e.channels = append(e.channels, NewChannel(chCfg))
	}
	return e
}

func (e *Engine) Channels() []*Channel {
	return e.channels
}

// Run waits for the first temperature snapshot and then cycles the channels
// until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if len(e.channels) == 0 {
		return errors.New().New(ErrNoChannels)
	}

	e.logger.Info().Msg("Waiting for first temperature snapshot")
	if _, err := e.store.WaitTemperatures(ctx); err != nil {
		return err
	}
	e.logger.Info().Int("channels", len(e.channels)).Msg("Charging engine started")

	for {
		for _, ch := range e.channels {
			if err := ch.Cycle(ctx); err != nil {
				return err
			}
		}
	}
}

// Shutdown switches every charge output and discharge relay off.
func (e *Engine) Shutdown() error {
	var errs []error
	for _, ch := range e.channels {
		if err := ch.Reset(); err != nil {
			errs = append(errs, err)
		}
		if err := e.actuators.SetRelay(ch.ID(), false); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return errors.New().Wrap(errors.ErrResetOutputs, err)
	}
	return nil
}
