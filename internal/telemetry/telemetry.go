// Package telemetry publishes snapshots of the shared state to the enabled
// sinks at a fixed cadence.
package telemetry

import (
	"context"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
)

type Publisher struct {
	cfg    Config
	store  *state.Store
	sinks  []Sink
	clock  clock.Clock
	logger logger.Logger

	// offline[i] is set while sinks[i] reports ErrSinkOffline.
	offline []bool
}

func NewPublisher(cfg Config, store *state.Store, clk clock.Clock, log logger.Logger, sinks ...Sink) (*Publisher, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(sinks) == 0 {
		return nil, errFactory.New(ErrNoSinks)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Default()
	}

	return &Publisher{
		cfg:     cfg,
		store:   store,
		sinks:   sinks,
		clock:   clk,
		logger:  log,
		offline: make([]bool, len(sinks)),
	}, nil
}

// Run publishes one record per interval until ctx is done. A failing sink
// is logged and does not hold up the others.
func (p *Publisher) Run(ctx context.Context) error {
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	p.logger.Info().Strs("sinks", names).Dur("interval", p.cfg.Interval).Msg("Telemetry publisher started")

	for {
		started := p.clock.Now()
		p.PublishOnce(ctx)

		elapsed := p.clock.Now().Sub(started)
		if err := p.clock.Sleep(ctx, p.cfg.Interval-elapsed); err != nil {
			return err
		}
	}
}

// PublishOnce takes one snapshot and hands it to every sink. It is called
// from a single goroutine.
func (p *Publisher) PublishOnce(ctx context.Context) state.TelemetryRecord {
	rec := p.store.Snapshot(p.clock.Now())

	for i, s := range p.sinks {
		err := s.Publish(ctx, rec)
		switch {
		case err == nil:
			if p.offline[i] {
				p.offline[i] = false
				p.logger.Info().Str("sink", s.Name()).Msg("Telemetry sink back online")
			}
		case ctx.Err() != nil:
			return rec
		case errors.HasCode(err, ErrSinkOffline):
			if !p.offline[i] {
				p.offline[i] = true
				p.logger.Info().Err(err).Str("sink", s.Name()).Msg("Telemetry sink offline, dropping records")
			} else {
				p.logger.Debug().Str("sink", s.Name()).Msg("Telemetry record dropped")
			}
		default:
			p.logger.Warn().
				Err(errors.New().Wrap(ErrPublishFailed, err)).
				Str("sink", s.Name()).
				Msg("Failed to publish telemetry")
		}
	}

	return rec
}
