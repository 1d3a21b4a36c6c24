// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"sync"

	"kvsql/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Logger is a structured logger wrapping zap, with both a typed and a
// sugared (printf-style) API.
type Logger struct {
	zap    *zap.Logger
	sugar  *zap.SugaredLogger
	config *Config
}

// Config configures a Logger.
type Config struct {
	// Level is the minimum level logged: debug, info, warn, error,
	// dpanic, panic, fatal.
	Level string

	// OutputPaths are the sinks for every record at or above Level, e.g.
	// ["stdout", "/var/log/kvsql/app.log"].
	OutputPaths []string

	// ErrorOutputPaths are extra sinks for Error-and-above records; paths
	// already listed in OutputPaths are skipped.
	ErrorOutputPaths []string

	// Encoding is "json" or "console".
	Encoding string

	// Development puts zap in development mode, where DPanic panics.
	Development bool

	// DisableCaller omits the calling file:line from each record.
	DisableCaller bool

	// DisableStacktrace omits automatic stack traces on Error+.
	DisableStacktrace bool

	// EnableColor colorizes level names (console encoding only).
	EnableColor bool
}

// DefaultConfig is a sensible console logger for local development.
var DefaultConfig = &Config{
	Level:             "info",
	OutputPaths:       []string{"stdout"},
	ErrorOutputPaths:  []string{"stderr"},
	Encoding:          "console",
	Development:       false,
	DisableCaller:     false,
	DisableStacktrace: false,
	EnableColor:       true,
}

// ProductionConfig is a JSON logger suitable for log aggregation.
var ProductionConfig = &Config{
	Level:             "info",
	OutputPaths:       []string{"stdout"},
	ErrorOutputPaths:  []string{"stderr"},
	Encoding:          "json",
	Development:       false,
	DisableCaller:     false,
	DisableStacktrace: true,
	EnableColor:       false,
}

// DevelopmentConfig is a verbose console logger for local debugging.
var DevelopmentConfig = &Config{
	Level:             "debug",
	OutputPaths:       []string{"stdout"},
	ErrorOutputPaths:  []string{"stderr"},
	Encoding:          "console",
	Development:       true,
	DisableCaller:     false,
	DisableStacktrace: false,
	EnableColor:       true,
}

// NewLogger builds a Logger from cfg. A nil cfg uses DefaultConfig.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Encoding == "console" && cfg.EnableColor {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var cores []zapcore.Core

	for _, path := range cfg.OutputPaths {
		writer := getWriter(path)
		var encoder zapcore.Encoder
		if cfg.Encoding == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}

	for _, path := range cfg.ErrorOutputPaths {
		if contains(cfg.OutputPaths, path) {
			continue
		}
		writer := getWriter(path)
		var encoder zapcore.Encoder
		if cfg.Encoding == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), zapcore.ErrorLevel))
	}

	core := zapcore.NewTee(cores...)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.DisableCaller {
		opts = []zap.Option{}
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zapLogger := zap.New(core, opts...)

	return &Logger{
		zap:    zapLogger,
		sugar:  zapLogger.Sugar(),
		config: cfg,
	}, nil
}

// InitGlobalLogger initializes the package-level global logger exactly
// once; later calls are no-ops.
func InitGlobalLogger(cfg *Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = NewLogger(cfg)
	})
	return err
}

// InitFromConfig initializes the global logger from a config.LogConfig,
// as loaded from the application's YAML configuration file.
func InitFromConfig(cfg *config.LogConfig) error {
	if cfg == nil {
		return InitGlobalLogger(DefaultConfig)
	}

	return InitGlobalLogger(&Config{
		Level:            cfg.Level,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
		Encoding:         cfg.Encoding,
		EnableColor:      cfg.Encoding == "console",
	})
}

// GetLogger returns the global logger, lazily initializing it with
// DefaultConfig if InitGlobalLogger was never called.
func GetLogger() *Logger {
	if globalLogger == nil {
		_ = InitGlobalLogger(DefaultConfig)
	}
	return globalLogger
}

// ReplaceGlobalLogger swaps the global logger — mainly for tests.
func ReplaceGlobalLogger(logger *Logger) {
	globalLogger = logger
}

func (l *Logger) Sync() error { return l.zap.Sync() }

// Zap returns the underlying *zap.Logger, for handing to packages that
// take one directly (pkg/metrics, pkg/health).
func (l *Logger) Zap() *zap.Logger { return l.zap }

// With returns a child logger with fields attached to every record.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		zap:    l.zap.With(fields...),
		sugar:  l.sugar.With(fields),
		config: l.config,
	}
}

// Named returns a child logger scoped under name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		zap:    l.zap.Named(name),
		sugar:  l.sugar.Named(name),
		config: l.config,
	}
}

func (l *Logger) Debug(msg string, fields ...zap.Field)  { l.zap.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)   { l.zap.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)   { l.zap.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)  { l.zap.Error(msg, fields...) }
func (l *Logger) DPanic(msg string, fields ...zap.Field) { l.zap.DPanic(msg, fields...) }
func (l *Logger) Panic(msg string, fields ...zap.Field)  { l.zap.Panic(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field)  { l.zap.Fatal(msg, fields...) }

func (l *Logger) Debugf(template string, args ...interface{})  { l.sugar.Debugf(template, args...) }
func (l *Logger) Infof(template string, args ...interface{})   { l.sugar.Infof(template, args...) }
func (l *Logger) Warnf(template string, args ...interface{})   { l.sugar.Warnf(template, args...) }
func (l *Logger) Errorf(template string, args ...interface{})  { l.sugar.Errorf(template, args...) }
func (l *Logger) DPanicf(template string, args ...interface{}) { l.sugar.DPanicf(template, args...) }
func (l *Logger) Panicf(template string, args ...interface{})  { l.sugar.Panicf(template, args...) }
func (l *Logger) Fatalf(template string, args ...interface{})  { l.sugar.Fatalf(template, args...) }

func getWriter(path string) zapcore.WriteSyncer {
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zapcore.AddSync(os.Stdout)
		}
		return zapcore.AddSync(file)
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Debug logs at Debug level on the global logger.
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }

// Info logs at Info level on the global logger.
func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }

// Warn logs at Warn level on the global logger.
func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }

// Error logs at Error level on the global logger.
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// Fatal logs at Fatal level on the global logger and exits.
func Fatal(msg string, fields ...zap.Field) { GetLogger().Fatal(msg, fields...) }

func Debugf(template string, args ...interface{}) { GetLogger().Debugf(template, args...) }
func Infof(template string, args ...interface{})  { GetLogger().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { GetLogger().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { GetLogger().Errorf(template, args...) }
func Fatalf(template string, args ...interface{}) { GetLogger().Fatalf(template, args...) }

// Sync flushes the global logger's buffer.
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
