package diag

import (
	"github.com/tliron/commonlog"
)

// LogSink forwards diagnostics to a commonlog logger.
type LogSink struct {
	log commonlog.Logger
}

// NewLogSink creates a sink logging under the given logger name.
func NewLogSink(name string) *LogSink {
	return &LogSink{log: commonlog.GetLogger(name)}
}

// Report logs d at the level matching its severity.
func (s *LogSink) Report(d Diagnostic) {
	switch d.Severity {
	case SeverityError:
		s.log.Error(d.Message, "code", d.Code.String(), "line", d.Span.Start.Line, "column", d.Span.Start.Column, "file", d.Span.File)
	case SeverityWarning:
		s.log.Warning(d.Message, "code", d.Code.String(), "line", d.Span.Start.Line, "column", d.Span.Start.Column, "file", d.Span.File)
	default:
		s.log.Notice(d.Message, "code", d.Code.String(), "line", d.Span.Start.Line, "column", d.Span.Start.Column, "file", d.Span.File)
	}
}
