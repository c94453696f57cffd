// Copyright 2018 The rill Authors
// This file is part of the rill library.
//
// The rill library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The rill library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the rill library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides the module-scoped structured logger used throughout
// the rill codebase.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes key/value structured log records. ctx holds alternating
// keys and values, keys must be strings.
type Logger interface {
	NewWith(ctx ...interface{}) Logger

	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	// Crit logs the message and terminates the process.
	Crit(msg string, ctx ...interface{})
}

type zapLogger struct {
	sugared *zap.SugaredLogger
}

func (l *zapLogger) NewWith(ctx ...interface{}) Logger {
	return &zapLogger{l.sugared.With(ctx...)}
}

func (l *zapLogger) Debug(msg string, ctx ...interface{}) {
	l.sugared.Debugw(msg, ctx...)
}

func (l *zapLogger) Info(msg string, ctx ...interface{}) {
	l.sugared.Infow(msg, ctx...)
}

func (l *zapLogger) Warn(msg string, ctx ...interface{}) {
	l.sugared.Warnw(msg, ctx...)
}

func (l *zapLogger) Error(msg string, ctx ...interface{}) {
	l.sugared.Errorw(msg, ctx...)
}

func (l *zapLogger) Crit(msg string, ctx ...interface{}) {
	l.sugared.Fatalw(msg, ctx...)
}

var baseLogger = genBaseLogger()

func genBaseLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return logger
}

// NewModuleLogger creates a Logger tagged with the given module id.
func NewModuleLogger(mi ModuleID) Logger {
	return &zapLogger{baseLogger.Sugar().With("module", mi.String())}
}

// Fatalf logs a formatted message at critical level and exits.
// It is meant for use from package main before a module logger exists.
func Fatalf(format string, args ...interface{}) {
	baseLogger.Sugar().Fatalf(format, args...)
}
