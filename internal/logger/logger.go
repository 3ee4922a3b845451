// Package logger holds the process-wide structured logger.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names, used instead of raw strings for consistent keys
const (
	FieldHandle      = "handle"
	FieldPerson      = "person"
	FieldRelative    = "relative"
	FieldPhase       = "phase"
	FieldScope       = "scope"
	FieldDepth       = "depth"
	FieldKind        = "kind"
	FieldSource      = "source"
	FieldError       = "error"
	FieldCount       = "count"
	FieldRunID       = "run_id"
	FieldDurationMS  = "duration_ms"
	FieldExplanation = "explanation"
	FieldAddress     = "address"
)

// Logger is the global logger. It is a no-op until Initialize is called.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize replaces the global logger. JSON output uses the production
// encoder; otherwise a console encoder writes to stderr. Verbose lowers the
// level to debug.
func Initialize(jsonOutput, verbose bool) error {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stderr"}
		zapLogger, err := config.Build()
		if err != nil {
			return err
		}
		Logger = zapLogger.Sugar()
		return nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.TimeKey = ""
	Logger = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)).Sugar()
	return nil
}

// Or returns l, or the global logger when l is nil
func Or(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l != nil {
		return l
	}
	return Logger
}

// Sync flushes buffered log entries, ignoring errors from unsyncable sinks
func Sync() {
	_ = Logger.Sync()
}
