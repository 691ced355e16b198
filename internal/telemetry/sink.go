package telemetry

import (
	"context"

	"codeberg.org/mutker/chargectl/internal/logger"
	"codeberg.org/mutker/chargectl/internal/state"
)

// LogSink writes every record to the debug log.
type LogSink struct {
	Logger logger.Logger
}

func (LogSink) Name() string {
	return "log"
}

func (s LogSink) Publish(_ context.Context, rec state.TelemetryRecord) error {
	b, err := Encode(rec)
	if err != nil {
		return err
	}
	s.Logger.Debug().RawJSON("record", b).Msg("Telemetry record")
	return nil
}
