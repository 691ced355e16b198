package command_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/command"
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/hw"
	"codeberg.org/mutker/chargectl/internal/journal"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	d, err := command.Decode([]byte("10x"))
	require.NoError(t, err)

	assert.Equal(t, []command.Change{
		{Channel: 1, On: true},
		{Channel: 2, On: false},
	}, d.Changes)
	assert.Equal(t, []command.Invalid{{Channel: 3, Value: 'x'}}, d.Invalid)

	_, err = command.Decode([]byte("10"))
	assert.True(t, errors.HasCode(err, command.ErrFrameSize))
}

type recordingJournal struct {
	events []journal.Event
}

func (j *recordingJournal) Record(_ context.Context, e journal.Event) error {
	j.events = append(j.events, e)
	return nil
}

func (j *recordingJournal) Close() error { return nil }

func newHandler() (*command.Handler, *hw.Sim, *state.Store, *recordingJournal) {
	sim := hw.NewSim(hw.DefaultLayout())
	store := state.NewStore()
	j := &recordingJournal{}
	h := command.NewHandler(command.Config{
		Store:     store,
		Actuators: sim,
		Clock:     clock.NewFake(time.Unix(1700000000, 0)),
		Journal:   j,
		Logger:    logger.Nop(),
	})
	return h, sim, store, j
}

func TestApplySetsRelays(t *testing.T) {
	h, sim, store, j := newHandler()

	_, err := h.Apply(context.Background(), []byte("010"), "tcp")
	require.NoError(t, err)

	assert.Equal(t, state.RelayState{On: [3]bool{false, true, false}}, store.Relays())
	assert.False(t, sim.Relay(1))
	assert.True(t, sim.Relay(2))

	// Only the channel that changed is journaled.
	require.Len(t, j.events, 1)
	assert.Equal(t, journal.KindRelayChange, j.events[0].Kind)
	assert.Equal(t, 2, j.events[0].Channel)
	assert.Equal(t, "tcp", j.events[0].Source)
	assert.Equal(t, "on", j.events[0].Detail)

	_, err = h.Apply(context.Background(), []byte("010"), "tcp")
	require.NoError(t, err)
	assert.Len(t, j.events, 1)
}

func TestApplyInvalidByteLeavesRelay(t *testing.T) {
	h, sim, store, j := newHandler()

	_, err := h.Apply(context.Background(), []byte("111"), "mqtt")
	require.NoError(t, err)

	d, err := h.Apply(context.Background(), []byte("0?1"), "mqtt")
	require.NoError(t, err)
	require.Len(t, d.Invalid, 1)

	assert.Equal(t, [3]bool{false, true, true}, store.Relays().On)
	assert.True(t, sim.Relay(2))

	var invalid []journal.Event
	for _, e := range j.events {
		if e.Kind == journal.KindInvalidCommand {
			invalid = append(invalid, e)
		}
	}
	require.Len(t, invalid, 1)
	assert.Equal(t, 2, invalid[0].Channel)
	assert.Equal(t, "mqtt", invalid[0].Source)
	assert.Equal(t, `byte '?'`, invalid[0].Detail)
}

// failingRelays rejects every relay switch.
type failingRelays struct {
	*hw.Sim
}

func (failingRelays) SetRelay(state.ChannelID, bool) error {
	return assert.AnError
}

func TestSetRelayFailureLeavesStore(t *testing.T) {
	sim := hw.NewSim(hw.DefaultLayout())
	store := state.NewStore()
	j := &recordingJournal{}
	cfg := command.Config{
		Store:     store,
		Actuators: failingRelays{sim},
		Clock:     clock.NewFake(time.Unix(1700000000, 0)),
		Journal:   j,
		Logger:    logger.Nop(),
	}
	h := command.NewHandler(cfg)

	err := h.SetRelay(context.Background(), 1, true, "tcp")
	assert.True(t, errors.HasCode(err, command.ErrSetRelay))
	assert.False(t, store.Relays().IsOn(1))
	assert.False(t, sim.Relay(1))
	assert.Empty(t, j.events)

	// A retry on a working output is a real change and is journaled.
	cfg.Actuators = sim
	h = command.NewHandler(cfg)
	require.NoError(t, h.SetRelay(context.Background(), 1, true, "tcp"))
	assert.True(t, store.Relays().IsOn(1))
	assert.True(t, sim.Relay(1))
	require.Len(t, j.events, 1)
	assert.Equal(t, journal.KindRelayChange, j.events[0].Kind)
}

func TestSetRelayRejectsUnknownChannel(t *testing.T) {
	h, _, _, _ := newHandler()

	err := h.SetRelay(context.Background(), 4, true, "console")
	assert.True(t, errors.HasCode(err, state.ErrInvalidChannel))
}

func TestApplyMalformedFrame(t *testing.T) {
	h, _, store, j := newHandler()

	_, err := h.Apply(context.Background(), []byte("1111"), "tcp")
	assert.True(t, errors.HasCode(err, command.ErrFrameSize))
	assert.Equal(t, state.RelayState{}, store.Relays())
	require.Len(t, j.events, 1)
	assert.Equal(t, journal.KindInvalidCommand, j.events[0].Kind)
}

type scriptedSource struct {
	frames [][]byte
	errs   []error
}

func (s *scriptedSource) ReceiveCommand(context.Context) ([]byte, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if len(s.frames) == 0 {
		return nil, errors.New().New(command.ErrSourceClosed)
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func TestRunAppliesUntilClosed(t *testing.T) {
	h, sim, store, _ := newHandler()

	src := &scriptedSource{
		errs:   []error{assert.AnError},
		frames: [][]byte{[]byte("100"), []byte("001")},
	}

	require.NoError(t, h.Run(context.Background(), src, "test"))
	assert.Equal(t, [3]bool{false, false, true}, store.Relays().On)
	assert.True(t, sim.Relay(3))
	assert.False(t, sim.Relay(1))
}

func TestRunStopsOnCancel(t *testing.T) {
	h, _, _, _ := newHandler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &scriptedSource{errs: []error{context.Canceled}}
	assert.ErrorIs(t, h.Run(ctx, src, "test"), context.Canceled)
}
