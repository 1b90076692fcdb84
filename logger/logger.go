package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"oiwatch/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a zap.Logger for the watcher: a console core on stdout plus an
// optional rotated JSON file core.
func New(opts config.LogConfig) (*zap.Logger, error) {
	return newWithStdout(opts, os.Stdout)
}

func newWithStdout(opts config.LogConfig, stdout io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stdoutEncoder(opts), zapcore.Lock(zapcore.AddSync(stdout)), lvl),
	}

	if opts.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.OutputFile,
			MaxSize:    10, // MB before rotation
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			fileWriter,
			lvl,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger.With(zap.String("service", "oiwatch")), nil
}

// stdoutEncoder picks a human readable encoder in dev and JSON in prod unless the
// format is set explicitly.
func stdoutEncoder(opts config.LogConfig) zapcore.Encoder {
	switch {
	case opts.Format == "json":
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case opts.Format == "console" || opts.Environment == "dev":
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
}
