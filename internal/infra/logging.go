package infra

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/wallmon/internal/domain"
)

func consoleEncoderConfig(withTime bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if withTime {
		cfg.TimeKey = "time"
	}
	return cfg
}

// splitCores routes entries below ERROR to stdout and the rest to stderr.
func splitCores(enc zapcore.Encoder, stdout, stderr io.Writer, min zapcore.LevelEnabler) []zapcore.Core {
	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return min.Enabled(l) && l < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return min.Enabled(l) && l >= zapcore.ErrorLevel
	})
	return []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(stdout)), low),
		zapcore.NewCore(enc.Clone(), zapcore.Lock(zapcore.AddSync(stderr)), high),
	}
}

// NewConsoleLogger builds the worker's logger. Errors go to stderr, everything
// else to stdout. Under the supervisor withTime is false since the supervisor
// stamps every line it reads.
func NewConsoleLogger(stdout, stderr io.Writer, level zapcore.Level, withTime bool) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(consoleEncoderConfig(withTime))
	return zap.New(zapcore.NewTee(splitCores(enc, stdout, stderr, level)...))
}

// LogSink implements domain.LogSink: every record goes to the log file and is
// echoed to the terminal, stdout records at INFO and stderr records at ERROR.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to file and echoing to stdout/stderr.
func NewLogSink(file, stdout, stderr io.Writer) *LogSink {
	enc := zapcore.NewConsoleEncoder(consoleEncoderConfig(true))
	cores := append([]zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(file)), zapcore.DebugLevel),
	}, splitCores(enc.Clone(), stdout, stderr, zapcore.DebugLevel)...)

	return &LogSink{logger: zap.New(zapcore.NewTee(cores...))}
}

// Record writes one log record stamped with rec.Time.
func (s *LogSink) Record(rec domain.LogRecord) {
	level := zapcore.InfoLevel
	if rec.Stream == domain.StreamStderr {
		level = zapcore.ErrorLevel
	}

	ce := s.logger.Check(level, rec.Message)
	if ce == nil {
		return
	}
	if !rec.Time.IsZero() {
		ce.Time = rec.Time
	}
	ce.Write(zap.String("stream", string(rec.Stream)))
}

// Sync flushes all outputs.
func (s *LogSink) Sync() error {
	return s.logger.Sync()
}

// Ensure LogSink implements domain.LogSink.
var _ domain.LogSink = (*LogSink)(nil)
