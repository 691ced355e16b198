package telemetry

import (
	"context"

	"codeberg.org/mutker/chargectl/internal/state"
)

// Sink delivers telemetry records to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec state.TelemetryRecord) error
}
