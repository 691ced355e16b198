package journal

import (
	"context"
	"time"
)

// Journal records operator-relevant events.
type Journal interface {
	Record(ctx context.Context, event Event) error
	Close() error
}

// Repository stores events.
type Repository interface {
	Record(event Event) error
	Close() error
}

// Kind classifies an event.
type Kind string

const (
	KindRelayChange     Kind = "relay_change"
	KindInvalidCommand  Kind = "invalid_command"
	KindModeChange      Kind = "mode_change"
	KindSensorFault     Kind = "sensor_fault"
	KindSensorRecovered Kind = "sensor_recovered"
)

// Event is one journal entry. Channel is 0 for events not tied to a
// channel.
type Event struct {
	Time    time.Time
	Kind    Kind
	Channel int
	Source  string
	Detail  string
}
