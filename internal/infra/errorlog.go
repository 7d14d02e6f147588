package infra

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

// ErrorLog implements domain.ErrorLog as append-only JSON lines with a
// "time" and "msg" key per record.
type ErrorLog struct {
	logger *zap.Logger
}

// NewErrorLog opens (or creates) the error log at path in append mode.
func NewErrorLog(path string) (*ErrorLog, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Sampling = nil // every failure must be recorded
	config.DisableCaller = true
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &ErrorLog{logger: logger}, nil
}

// Append writes rec and flushes it to disk.
func (l *ErrorLog) Append(rec domain.ErrorRecord) error {
	ce := l.logger.Check(zapcore.ErrorLevel, rec.Message)
	if ce == nil {
		return nil
	}
	if !rec.Time.IsZero() {
		ce.Time = rec.Time
	}

	fields := make([]zap.Field, 0, 2)
	if rec.Kind != "" {
		fields = append(fields, zap.String("kind", rec.Kind))
	}
	if rec.CycleID != "" {
		fields = append(fields, zap.String("cycle_id", rec.CycleID))
	}
	ce.Write(fields...)

	return l.logger.Sync()
}

// Close flushes the log.
func (l *ErrorLog) Close() error {
	return l.logger.Sync()
}

// Ensure ErrorLog implements domain.ErrorLog.
var _ domain.ErrorLog = (*ErrorLog)(nil)
