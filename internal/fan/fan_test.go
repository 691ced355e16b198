package fan_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/chargectl/internal/clock"
	"codeberg.org/mutker/chargectl/internal/fan"
	"codeberg.org/mutker/chargectl/internal/hw"
	"codeberg.org/mutker/chargectl/internal/journal"
	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFanDuty(t *testing.T) {
	assert.Equal(t, 0, fan.ComputeFanDuty(20, 20, 40))
	assert.Equal(t, 100, fan.ComputeFanDuty(40, 20, 40))
	assert.Equal(t, 50, fan.ComputeFanDuty(30, 20, 40))
	assert.Equal(t, 0, fan.ComputeFanDuty(-5, 20, 40))
	assert.Equal(t, 100, fan.ComputeFanDuty(85, 20, 40))
	assert.Equal(t, 37, fan.ComputeFanDuty(27.49, 20, 40))
}

type recordingJournal struct {
	events []journal.Event
}

func (j *recordingJournal) Record(_ context.Context, e journal.Event) error {
	j.events = append(j.events, e)
	return nil
}

func (j *recordingJournal) Close() error { return nil }

func newController(sim *hw.Sim, store *state.Store, j journal.Journal) *fan.Controller {
	return fan.NewController(fan.Config{
		Sensors:   sim,
		Actuators: sim,
		Store:     store,
		Layout:    sim.Layout(),
		Clock:     clock.NewFake(time.Unix(0, 0)),
		Journal:   j,
		Logger:    logger.Nop(),
	})
}

func TestResistorFanUsesHottestBank(t *testing.T) {
	sim := hw.NewSim(hw.DefaultLayout())
	sim.SetTemperature(hw.ResistorProbe(1), 35)
	sim.SetTemperature(hw.ResistorProbe(2), 42)
	sim.SetTemperature(hw.ResistorProbe(3), 38)
	store := state.NewStore()

	c := newController(sim, store, journal.Nop())
	fans := c.Drive(c.Sample(context.Background()))

	want := fan.ComputeFanDuty(42, fan.ResistorFanLow, fan.ResistorFanHigh)
	assert.Equal(t, 73, want)
	assert.Equal(t, want, fans.Resistor)
	assert.Equal(t, want, sim.Duty(sim.Layout().ResistorFanPin))
	assert.Equal(t, fans, store.Fans())
}

func TestBatteryFansFollowTheirBattery(t *testing.T) {
	sim := hw.NewSim(hw.DefaultLayout())
	sim.SetTemperature(hw.BatteryProbe(1), 20)
	sim.SetTemperature(hw.BatteryProbe(2), 30)
	sim.SetTemperature(hw.BatteryProbe(3), 45)
	store := state.NewStore()

	c := newController(sim, store, journal.Nop())
	snap := c.Sample(context.Background())
	fans := c.Drive(snap)

	assert.Equal(t, [3]int{0, 50, 100}, fans.Battery)
	for _, ch := range state.Channels() {
		assert.Equal(t, fans.Battery[ch.Index()], sim.Duty(sim.Layout().BatteryFanPin(ch)))
	}

	got, ready := store.Temperatures()
	require.True(t, ready)
	assert.Equal(t, snap, got)
	assert.Equal(t, [3]float64{20, 30, 45}, got.Battery)
}

func TestSensorFaultRecordedOnce(t *testing.T) {
	sim := hw.NewSim(hw.DefaultLayout())
	store := state.NewStore()
	j := &recordingJournal{}
	c := newController(sim, store, j)

	sim.FailTemperature(hw.BatteryProbe(2), true)
	for i := 0; i < 3; i++ {
		snap := c.Sample(context.Background())
		assert.Zero(t, snap.Battery[1])
	}
	require.Len(t, j.events, 1)
	assert.Equal(t, journal.KindSensorFault, j.events[0].Kind)
	assert.Equal(t, 2, j.events[0].Channel)
	assert.Equal(t, "battery-2", j.events[0].Source)

	sim.FailTemperature(hw.BatteryProbe(2), false)
	snap := c.Sample(context.Background())
	assert.InDelta(t, 25.0, snap.Battery[1], 1e-9)
	require.Len(t, j.events, 2)
	assert.Equal(t, journal.KindSensorRecovered, j.events[1].Kind)
}

func TestRunStopsOnCancel(t *testing.T) {
	sim := hw.NewSim(hw.DefaultLayout())
	store := state.NewStore()
	fake := clock.NewFake(time.Unix(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	passes := 0
	fake.OnSleep(func(time.Duration) {
		passes++
		if passes == 3 {
			cancel()
		}
	})

	c := fan.NewController(fan.Config{
		Sensors:   sim,
		Actuators: sim,
		Store:     store,
		Layout:    sim.Layout(),
		Clock:     fake,
		Logger:    logger.Nop(),
		Interval:  500 * time.Millisecond,
	})

	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
	assert.Len(t, sim.Writes(sim.Layout().ResistorFanPin), 3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond}, fake.Sleeps())
}
