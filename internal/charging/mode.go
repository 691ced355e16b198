package charging

import "codeberg.org/mutker/chargectl/internal/state"

// Battery temperature limits in °C.
const (
	CriticalTemp = 60.0
	SafeTemp     = 50.0
)

// SelectMode picks the charging mode for a channel. The first matching rule
// wins: discharging, overheated and full channels stop; warm channels charge
// at the standard rate; everything else fast charges.
func SelectMode(temp float64, relayOn bool, soc int) state.Mode {
	switch {
	case relayOn:
		return state.ModeStop
	case temp > CriticalTemp:
		return state.ModeStop
	case soc == 100:
		return state.ModeStop
	case temp > SafeTemp:
		return state.ModeStandard
	default:
		return state.ModeFast
	}
}
