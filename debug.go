// Copyright 2026 The go-tau2 Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package tau2

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// debugEnabled controls whether debug messages reach the console logger.
var debugEnabled = false

// logger receives console output. Command confirmations are logged at info
// level, protocol chatter at debug level.
var logger = newConsoleLogger()

func init() {
	if os.Getenv("TAU2_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		SetDebugEnabled(true)
	}
}

func newConsoleLogger() *log.Logger {
	l := log.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(log.InfoLevel)
	l.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Logger returns the console logger used by the package.
func Logger() *log.Logger {
	return logger
}

// SetLogger replaces the console logger. Passing nil restores the default.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = newConsoleLogger()
	}
	logger = l
	if debugEnabled {
		logger.SetLevel(log.DebugLevel)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
	if enabled {
		logger.SetLevel(log.DebugLevel)
	} else if logger.GetLevel() == log.DebugLevel {
		logger.SetLevel(log.InfoLevel)
	}
}

// Debugf logs protocol details. Always written to the session log (if
// initialized); printed to the console only when debug mode is enabled.
func Debugf(format string, args ...any) {
	emit(log.DebugLevel, fmt.Sprintf(format, args...))
}

// Debugln is Debugf with fmt.Sprintln formatting.
func Debugln(args ...any) {
	emit(log.DebugLevel, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// Infof logs camera confirmations such as "CMD : GAIN MODE IS CONFIGURED PROPERLY".
func Infof(format string, args ...any) {
	emit(log.InfoLevel, fmt.Sprintf(format, args...))
}

// Warnf logs recoverable protocol problems.
func Warnf(format string, args ...any) {
	emit(log.WarnLevel, fmt.Sprintf(format, args...))
}

func emit(level log.Level, message string) {
	if sessionLogger != nil {
		sessionLogger.Log(level, message)
	}
	if level == log.DebugLevel && !debugEnabled {
		return
	}
	logger.Log(level, message)
}
