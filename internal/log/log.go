// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the process-wide printf-style logger.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Level = logrus.Level

const (
	DebugLevel = logrus.DebugLevel
	InfoLevel  = logrus.InfoLevel
	WarnLevel  = logrus.WarnLevel
	ErrorLevel = logrus.ErrorLevel
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// SetLogLevel changes the minimum level that is written.
func SetLogLevel(l Level) { std.SetLevel(l) }

// SetOutput redirects log output, e.g. away from stdout while serving MCP over stdio.
func SetOutput(w io.Writer) { std.SetOutput(w) }

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (Level, error) { return logrus.ParseLevel(s) }

// Logger exposes the underlying logger for adapters.
func Logger() *logrus.Logger { return std }

func Debug(format string, args ...any) { std.Debugf(format, args...) }

func Info(format string, args ...any) { std.Infof(format, args...) }

func Warn(format string, args ...any) { std.Warnf(format, args...) }

func Error(format string, args ...any) { std.Errorf(format, args...) }
