package middleware

import (
	"context"

	"github.com/rs/zerolog"
)

// NewLoggingHook returns a Hook that writes one structured log line per
// event via logger, grounded on the teacher's zerolog usage throughout
// mbflow.go/factory.go (this replaces the teacher's dedicated
// console_logger.go/clickhouse_logger.go observers with a single function).
func NewLoggingHook(logger zerolog.Logger) Hook {
	return func(_ context.Context, ev Event) {
		l := logger.With().
			Str("event", string(ev.Kind)).
			Str("workflow_id", ev.WorkflowID).
			Str("execution_id", ev.ExecutionID).
			Logger()

		switch ev.Kind {
		case EventNodeStarting:
			l.Debug().Str("node_key", ev.NodeKey).Str("node_type", ev.NodeType).Msg("node starting")
		case EventNodeCompleted:
			l.Debug().Str("node_key", ev.NodeKey).Str("output_port", ev.OutputPort).
				Int64("duration_ms", ev.DurationMs).Int("retry_count", ev.RetryCount).Msg("node completed")
		case EventNodeSuspended:
			l.Info().Str("node_key", ev.NodeKey).Msg("node suspended")
		case EventNodeFailed:
			l.Warn().Str("node_key", ev.NodeKey).Str("error_kind", ev.ErrorKind).
				Str("error_message", ev.ErrorMessage).Msg("node failed")
		case EventExecutionStarted:
			l.Info().Msg("execution started")
		case EventExecutionCompleted:
			l.Info().Msg("execution completed")
		case EventExecutionSuspended:
			l.Info().Msg("execution suspended")
		case EventExecutionFailed:
			l.Error().Str("error_kind", ev.ErrorKind).Str("error_message", ev.ErrorMessage).Msg("execution failed")
		}
	}
}
