// Package command turns inbound relay command frames into relay state.
package command

import (
	"codeberg.org/mutker/chargectl/internal/errors"
	"codeberg.org/mutker/chargectl/internal/state"
)

// FrameSize is the length of a command frame: one byte per channel.
const FrameSize = state.NumChannels

const (
	relayOn  = '1'
	relayOff = '0'
)

// Change sets the discharge relay of one channel.
type Change struct {
	Channel state.ChannelID
	On      bool
}

// Invalid is a frame byte that is neither '0' nor '1'.
type Invalid struct {
	Channel state.ChannelID
	Value   byte
}

type Decoded struct {
	Changes []Change
	Invalid []Invalid
}

// Decode maps byte i of frame to the relay of channel i+1. Invalid bytes
// are reported and leave their relay alone.
func Decode(frame []byte) (Decoded, error) {
	if len(frame) != FrameSize {
		return Decoded{}, errors.New().WithData(ErrFrameSize, len(frame))
	}

	var d Decoded
	for i, b := range frame {
		ch := state.ChannelID(i + 1)
		switch b {
		case relayOn:
			d.Changes = append(d.Changes, Change{Channel: ch, On: true})
		case relayOff:
			d.Changes = append(d.Changes, Change{Channel: ch, On: false})
		default:
			d.Invalid = append(d.Invalid, Invalid{Channel: ch, Value: b})
		}
	}
	return d, nil
}
