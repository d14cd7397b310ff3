// Package sink delivers operator notices raised by the bridge.
package sink

import (
	"context"

	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/model"
)

// Sink receives operator notices. Implementations must return promptly;
// anything that does I/O queues it, as KafkaSink does.
type Sink interface {
	Notify(ctx context.Context, n model.Notice)
}

// LogSink writes notices to the structured log, at a level matching their
// severity.
type LogSink struct {
	log logging.Logger
}

// NewLogSink returns a sink that logs through log.
func NewLogSink(log logging.Logger) *LogSink {
	if log == nil {
		log = logging.Noop()
	}
	return &LogSink{log: log}
}

// Notify logs n.
func (s *LogSink) Notify(ctx context.Context, n model.Notice) {
	fields := []logging.Field{
		logging.String("notice_id", n.ID),
		logging.String("severity", n.Severity.String()),
	}
	switch n.Severity {
	case model.SeverityCritical:
		s.log.Error(ctx, n.Text, fields...)
	case model.SeverityWarning:
		s.log.Warn(ctx, n.Text, fields...)
	default:
		s.log.Info(ctx, n.Text, fields...)
	}
}

// Fanout forwards each notice to every non-nil sink in order.
type Fanout []Sink

// Notify forwards n.
func (f Fanout) Notify(ctx context.Context, n model.Notice) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}
