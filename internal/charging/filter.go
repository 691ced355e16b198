package charging

import "codeberg.org/mutker/chargectl/internal/mathx"

// Quantity selects one of the filtered measurements.
type Quantity int

const (
	Current Quantity = iota
	Voltage
)

func (q Quantity) String() string {
	if q == Voltage {
		return "voltage"
	}
	return "current"
}

const (
	FilterWindow = 10

	// MinValidVoltage rejects readings of a disconnected monitor.
	MinValidVoltage = 0.1
)

// Filter smooths the raw current and bus voltage readings of one channel.
type Filter struct {
	windows [2]*Window[float64]
	last    [2]float64
}

func NewFilter() *Filter {
	return &Filter{
		windows: [2]*Window[float64]{
			NewWindow[float64](FilterWindow),
			NewWindow[float64](FilterWindow),
		},
	}
}

// Push adds raw to the window of q and returns the average of the qualifying
// samples. A current sample qualifies when its magnitude is at least the
// previous commanded duty; a voltage sample when it is at least
// MinValidVoltage. With no qualifying sample Push returns the last good
// average and false.
func (f *Filter) Push(q Quantity, raw float64, prevDuty int) (float64, bool) {
	w := f.windows[q]
	w.Push(raw)

	var valid func(float64) bool
	switch q {
	case Current:
		threshold := float64(prevDuty)
		valid = func(v float64) bool { return mathx.Abs(v) >= threshold }
	case Voltage:
		valid = func(v float64) bool { return v >= MinValidVoltage }
	}

	avg, ok := w.Average(valid)
	if !ok {
		return f.last[q], false
	}

	f.last[q] = avg
	return avg, true
}

// Last returns the most recent good average of q.
func (f *Filter) Last(q Quantity) float64 {
	return f.last[q]
}
