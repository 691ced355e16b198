package charging

// SoCWindow is the number of estimates averaged into the published SoC.
const SoCWindow = 5

// Open-circuit voltage measured while discharging sags below rest voltage;
// the estimate is shifted up by dischargeGain per volt above dischargeKnee.
const (
	dischargeKnee = 2.9
	dischargeGain = 1.3
)

type socStep struct {
	volts float64
	soc   int
}

// socCurve maps rest voltage to state of charge for a single Li-ion cell,
// highest breakpoint first. There is no 10% step: 12% covers [3.43, 3.44).
var socCurve = []socStep{
	{4.20, 100},
	{4.16, 98}, {4.14, 96}, {4.12, 94}, {4.10, 92}, {4.08, 90},
	{4.06, 88}, {4.04, 86}, {4.02, 84}, {3.99, 82}, {3.96, 80},
	{3.94, 78}, {3.91, 76}, {3.89, 74}, {3.87, 72}, {3.85, 70},
	{3.83, 68}, {3.81, 66}, {3.79, 64}, {3.77, 62}, {3.75, 60},
	{3.73, 58}, {3.71, 56}, {3.69, 54}, {3.67, 52}, {3.65, 50},
	{3.64, 48}, {3.63, 46}, {3.62, 44}, {3.61, 42}, {3.60, 40},
	{3.59, 38}, {3.58, 36}, {3.57, 34}, {3.56, 32}, {3.55, 30},
	{3.54, 28}, {3.53, 26}, {3.52, 24}, {3.51, 22}, {3.50, 20},
	{3.48, 18}, {3.46, 16}, {3.44, 14}, {3.43, 12},
	{3.40, 8}, {3.30, 6}, {3.10, 4}, {3.00, 2},
}

// EstimateSoC returns the instantaneous state of charge in percent for a
// filtered voltage v.
func EstimateSoC(v float64, discharging bool) int {
	if discharging {
		v += (v - dischargeKnee) * dischargeGain
	}

	for _, step := range socCurve {
		if v >= step.volts {
			return step.soc
		}
	}
	return 0
}

// SoCEstimator smooths instantaneous estimates over SoCWindow cycles.
type SoCEstimator struct {
	window *Window[int]
}

func NewSoCEstimator() *SoCEstimator {
	return &SoCEstimator{window: NewWindow[int](SoCWindow)}
}

// Push records the estimate for avgV and returns the truncated mean of the
// window.
func (e *SoCEstimator) Push(avgV float64, discharging bool) int {
	e.window.Push(EstimateSoC(avgV, discharging))
	avg, _ := e.window.Average(nil)
	return int(avg)
}
