// Copyright (c) 2026 Scott McLesly
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package logger provides the daemon-wide logging functions. Notices are
// always emitted, debug messages only when debug logging is enabled.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the minimal interface the daemon logs against. The default
// implementation is backed by zap; tests install their own.
type Logger interface {
	// Notice logs a message that the operator should see.
	Notice(msg string)
	// Debug logs verbose development output.
	Debug(msg string)
}

var (
	lock   sync.Mutex
	logger Logger = newZapLogger("info")
)

// SetLogger replaces the process logger and returns the previous one.
func SetLogger(l Logger) Logger {
	lock.Lock()
	defer lock.Unlock()
	old := logger
	logger = l
	return old
}

// SetDebug switches the default zap logger between info and debug level.
// A logger installed via SetLogger is replaced.
func SetDebug(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	SetLogger(newZapLogger(level))
}

// Noticef logs a message the operator should see.
func Noticef(format string, v ...any) {
	lock.Lock()
	defer lock.Unlock()
	logger.Notice(fmt.Sprintf(format, v...))
}

// Debugf logs a verbose development message.
func Debugf(format string, v ...any) {
	lock.Lock()
	defer lock.Unlock()
	logger.Debug(fmt.Sprintf(format, v...))
}

// Panicf logs a notice and panics. Reserved for conditions where
// continuing could corrupt the boot partition bookkeeping.
func Panicf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	lock.Lock()
	logger.Notice(msg)
	lock.Unlock()
	panic(msg)
}

type zapLogger struct {
	core *zap.SugaredLogger
}

func newZapLogger(level string) *zapLogger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:  "message",
		LevelKey:    "level",
		TimeKey:     "timestamp",
		LineEnding:  zapcore.DefaultLineEnding,
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	core, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("cannot build zap logger: %v", err))
	}
	return &zapLogger{core: core.Sugar()}
}

func (z *zapLogger) Notice(msg string) {
	z.core.Info(msg)
}

func (z *zapLogger) Debug(msg string) {
	z.core.Debug(msg)
}
