package command

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/hw"
	"codeberg.org/mutker/chargectl/internal/journal"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
)

// retryDelay paces a command source that keeps failing.
const retryDelay = time.Second

// Source delivers command frames. ReceiveCommand blocks until a frame
// arrives; an error carrying ErrSourceClosed ends the receive loop.
type Source interface {
	ReceiveCommand(ctx context.Context) ([]byte, error)
}

type Config struct {
	Store     *state.Store
	Actuators hw.Actuators
	Clock     clock.Clock
	Journal   journal.Journal
	Logger    logger.Logger
}

// Handler applies decoded frames to the relay state and the relay outputs.
type Handler struct {
	cfg Config
}

func NewHandler(cfg Config) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Handler{cfg: cfg}
}

// Apply decodes frame and applies its valid bytes. source names the origin
// of the frame in logs and journal events.
func (h *Handler) Apply(ctx context.Context, frame []byte, source string) (Decoded, error) {
	d, err := Decode(frame)
	if err != nil {
		h.cfg.Logger.Warn().Err(err).Str("source", source).Msg("Dropping malformed command frame")
		h.record(ctx, journal.KindInvalidCommand, 0, source, fmt.Sprintf("frame %q", frame))
		return d, err
	}

	for _, inv := range d.Invalid {
		h.cfg.Logger.Warn().
			Str("source", source).
			Str("channel", inv.Channel.String()).
			Str("value", fmt.Sprintf("%q", inv.Value)).
			Msg("Invalid command byte, relay unchanged")
		h.record(ctx, journal.KindInvalidCommand, inv.Channel, source, fmt.Sprintf("byte %q", inv.Value))
	}

	var errs []error
	for _, c := range d.Changes {
		if err := h.SetRelay(ctx, c.Channel, c.On, source); err != nil {
			errs = append(errs, err)
		}
	}

	return d, errors.Join(errs...)
}

// SetRelay switches the discharge relay of ch and records the new state.
// The store only changes once the relay output has switched.
func (h *Handler) SetRelay(ctx context.Context, ch state.ChannelID, on bool, source string) error {
	errFactory := errors.New()

	if !ch.Valid() {
		return errFactory.WithData(state.ErrInvalidChannel, int(ch))
	}

	if err := h.cfg.Actuators.SetRelay(ch, on); err != nil {
		h.cfg.Logger.Error().Err(err).Str("channel", ch.String()).Bool("on", on).Msg("Failed to switch relay")
		return errFactory.Wrap(ErrSetRelay, err)
	}

	changed, err := h.cfg.Store.SetRelay(ch, on)
	if err != nil {
		return err
	}

	if changed {
		h.cfg.Logger.Info().
			Str("source", source).
			Str("channel", ch.String()).
			Bool("on", on).
			Msg("Discharge relay switched")
		h.record(ctx, journal.KindRelayChange, ch, source, relayDetail(on))
	}

	return nil
}

// Run applies frames from src until ctx is done or src closes.
func (h *Handler) Run(ctx context.Context, src Source, name string) error {
	h.cfg.Logger.Info().Str("source", name).Msg("Command receiver started")

	for {
		frame, err := src.ReceiveCommand(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.HasCode(err, ErrSourceClosed) {
				h.cfg.Logger.Info().Str("source", name).Msg("Command source closed")
				return nil
			}

			h.cfg.Logger.Warn().Err(err).Str("source", name).Msg("Failed to receive command")
			if err := h.cfg.Clock.Sleep(ctx, retryDelay); err != nil {
				return err
			}
			continue
		}

		if _, err := h.Apply(ctx, frame, name); err != nil {
			h.cfg.Logger.Debug().Err(err).Str("source", name).Msg("Command applied with errors")
		}
	}
}

func (h *Handler) record(ctx context.Context, kind journal.Kind, ch state.ChannelID, source, detail string) {
	event := journal.Event{
		Time:    h.cfg.Clock.Now(),
		Kind:    kind,
		Channel: int(ch),
		Source:  source,
		Detail:  detail,
	}
	if err := h.cfg.Journal.Record(ctx, event); err != nil {
		h.cfg.Logger.Warn().Err(err).Msg("Failed to journal command")
	}
}

func relayDetail(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
