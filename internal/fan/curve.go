package fan

// Fan curve breakpoints in °C.
const (
	BatteryFanLow   = 20.0
	BatteryFanHigh  = 40.0
	ResistorFanLow  = 20.0
	ResistorFanHigh = 50.0
)

// ComputeFanDuty maps t linearly onto 0..100 percent between lo and hi,
// truncating toward zero.
func ComputeFanDuty(t, lo, hi float64) int {
	switch {
	case t <= lo:
		return 0
	case t >= hi:
		return 100
	default:
		return int((t - lo) / (hi - lo) * 100)
	}
}
