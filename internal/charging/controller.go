package charging

import (
	"time"

	"codeberg.org/mutker/chargectl/internal/mathx"
	"codeberg.org/mutker/chargectl/internal/state"
)

const (
	// TargetVoltage is the constant-voltage setpoint in V.
	TargetVoltage = 4.2

	FastCurrent     = 1000.0 // mA
	StandardCurrent = 500.0  // mA

	// SoftStartRamp is loaded into the ramp counter when a channel leaves
	// STOP. Each cycle widens CC steps by the counter and holds CV steps
	// until it reaches zero.
	SoftStartRamp = 4

	// Blackout is how long the charge output stays off before the rest
	// voltage is sampled.
	Blackout = 100 * time.Millisecond

	MinDuty = 0
	MaxDuty = 100
)

// TargetCurrent returns the constant-current setpoint of mode in mA.
func TargetCurrent(mode state.Mode) float64 {
	switch mode {
	case state.ModeFast:
		return FastCurrent
	case state.ModeStandard:
		return StandardCurrent
	default:
		return 0
	}
}

// Controller is the CC/CV duty-cycle controller of one channel. It is the
// only place a channel's duty changes.
type Controller struct {
	duty int
	ramp int
}

func (c *Controller) Duty() int {
	return c.duty
}

func (c *Controller) Ramp() int {
	return c.ramp
}

// Arm starts a soft-start ramp.
func (c *Controller) Arm() {
	c.ramp = SoftStartRamp
}

// Step computes the next duty from the filtered readings. Below targetV the
// controller regulates current toward the mode's target; at or above it,
// it backs the duty off. STOP pins the duty to zero without ramping.
func (c *Controller) Step(mode state.Mode, avgV, avgI, targetV float64) int {
	if mode == state.ModeStop {
		c.duty = 0
		c.ramp = 0
		return c.duty
	}

	if avgV < targetV {
		step := 1 + c.ramp
		if avgI < TargetCurrent(mode) {
			c.duty += step
		} else {
			c.duty -= step
		}
	} else {
		c.duty -= max(0, 1-c.ramp)
	}

	c.duty = mathx.Clamp(c.duty, MinDuty, MaxDuty)
	c.ramp = max(0, c.ramp-1)

	return c.duty
}
