package charging

import (
	"testing"

	"codeberg.org/mutker/chargectl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow[float64](10)
	w.Push(1000)
	for i := 0; i < 10; i++ {
		w.Push(1)
	}

	assert.Equal(t, 10, w.Len())
	avg, ok := w.Average(nil)
	require.True(t, ok)
	assert.InDelta(t, 1.0, avg, 1e-9)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, w.Values())
}

func TestWindowAverageNoQualifyingSamples(t *testing.T) {
	w := NewWindow[int](5)
	_, ok := w.Average(nil)
	assert.False(t, ok)

	w.Push(3)
	w.Push(4)
	_, ok = w.Average(func(v int) bool { return v > 10 })
	assert.False(t, ok)

	avg, ok := w.Average(func(v int) bool { return v > 3 })
	require.True(t, ok)
	assert.InDelta(t, 4.0, avg, 1e-9)
}

func TestFilterCurrentPredicate(t *testing.T) {
	f := NewFilter()

	avg, ok := f.Push(Current, 400, 0)
	require.True(t, ok)
	assert.InDelta(t, 400.0, avg, 1e-9)

	// Discharge current counts by magnitude.
	avg, ok = f.Push(Current, -600, 0)
	require.True(t, ok)
	assert.InDelta(t, -100.0, avg, 1e-9)

	// Samples below the previous duty are ignored.
	avg, ok = f.Push(Current, 5, 50)
	require.True(t, ok)
	assert.InDelta(t, -100.0, avg, 1e-9)
}

func TestFilterHoldsLastGoodVoltage(t *testing.T) {
	f := NewFilter()

	avg, ok := f.Push(Voltage, 0, 0)
	assert.False(t, ok)
	assert.Zero(t, avg)

	avg, ok = f.Push(Voltage, 3.8, 0)
	require.True(t, ok)
	assert.InDelta(t, 3.8, avg, 1e-9)

	f = NewFilter()
	f.Push(Voltage, 3.9, 0)
	for i := 0; i < FilterWindow; i++ {
		avg, ok = f.Push(Voltage, 0.05, 0)
	}
	assert.False(t, ok)
	assert.InDelta(t, 3.9, avg, 1e-9)
	assert.InDelta(t, 3.9, f.Last(Voltage), 1e-9)
}

func TestEstimateSoC(t *testing.T) {
	assert.Equal(t, 100, EstimateSoC(4.20, false))
	assert.Equal(t, 100, EstimateSoC(4.35, false))
	assert.Equal(t, 0, EstimateSoC(2.99, false))
	assert.Equal(t, 2, EstimateSoC(3.00, false))
	assert.Equal(t, 60, EstimateSoC(3.76, false))
	assert.Equal(t, 12, EstimateSoC(3.435, false))
	assert.Equal(t, 8, EstimateSoC(3.42, false))

	// 3.5 + 0.6*1.3 = 4.28
	assert.Equal(t, 100, EstimateSoC(3.5, true))
}

func TestEstimateSoCMonotone(t *testing.T) {
	prev := EstimateSoC(2.5, false)
	for mv := 2500; mv <= 4400; mv++ {
		soc := EstimateSoC(float64(mv)/1000, false)
		require.GreaterOrEqual(t, soc, prev, "at %d mV", mv)
		prev = soc
	}
}

func TestSoCEstimatorTruncatedMean(t *testing.T) {
	e := NewSoCEstimator()
	assert.Equal(t, 100, e.Push(4.2, false))
	assert.Equal(t, 90, e.Push(3.96, false))
	assert.Equal(t, 84, e.Push(3.90, false))
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name    string
		temp    float64
		relayOn bool
		soc     int
		want    state.Mode
	}{
		{"overheated", 65, false, 50, state.ModeStop},
		{"discharging", 30, true, 50, state.ModeStop},
		{"full", 30, false, 100, state.ModeStop},
		{"warm", 55, false, 50, state.ModeStandard},
		{"warm and full", 55, false, 100, state.ModeStop},
		{"cool", 30, false, 50, state.ModeFast},
		{"at critical limit", 60, false, 50, state.ModeStandard},
		{"at safe limit", 50, false, 50, state.ModeFast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMode(tt.temp, tt.relayOn, tt.soc))
		})
	}
}

func TestControllerConstantCurrent(t *testing.T) {
	var c Controller

	assert.Equal(t, 1, c.Step(state.ModeFast, 3.7, 400, TargetVoltage))
	assert.Equal(t, 2, c.Step(state.ModeStandard, 3.7, 400, TargetVoltage))
	assert.Equal(t, 1, c.Step(state.ModeStandard, 3.7, 600, TargetVoltage))

	c.Arm()
	assert.Equal(t, 1+1+SoftStartRamp, c.Step(state.ModeFast, 3.7, 0, TargetVoltage))
	assert.Equal(t, SoftStartRamp-1, c.Ramp())
}

func TestControllerClamps(t *testing.T) {
	c := Controller{duty: 99}
	assert.Equal(t, MaxDuty, c.Step(state.ModeFast, 3.7, 0, TargetVoltage))
	assert.Equal(t, MaxDuty, c.Step(state.ModeFast, 3.7, 0, TargetVoltage))

	c = Controller{duty: 1, ramp: 3}
	assert.Equal(t, MinDuty, c.Step(state.ModeFast, 3.7, 2000, TargetVoltage))
}

func TestControllerConstantVoltageDecays(t *testing.T) {
	c := Controller{duty: 10}
	c.Arm()

	prev := c.Duty()
	for i := 0; i < 30; i++ {
		duty := c.Step(state.ModeFast, TargetVoltage, 0, TargetVoltage)
		require.LessOrEqual(t, duty, prev)
		require.GreaterOrEqual(t, duty, 0)
		prev = duty
	}
	assert.Zero(t, prev)
	assert.Zero(t, c.Ramp())
}

func TestControllerStopPinsDuty(t *testing.T) {
	c := Controller{duty: 70}
	c.Arm()
	assert.Zero(t, c.Step(state.ModeStop, 3.7, 0, TargetVoltage))
	assert.Zero(t, c.Ramp())
}
