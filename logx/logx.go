/*
Copyright (C) 2023-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package logx is a small leveled-logging wrapper, the same
// Info/Errorf shape the teacher used via its vendored xlog dependency
// (dropped with third_party/go-mysqlstack — see DESIGN.md), rebuilt
// here on the standard library's log package since no third-party
// logger remained in the dependency surface after that removal.
package logx

import (
	"fmt"
	"log"
	"os"
)

// Level selects which severities a Logger actually writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// Logger is a minimal leveled logger over the standard library's
// *log.Logger, safe for concurrent use (log.Logger already is).
type Logger struct {
	level Level
	std   *log.Logger
}

// New returns a Logger writing to stderr with timestamps, the
// teacher's own default output target for diagnostic messages.
func New(level Level) *Logger {
	return &Logger{level: level, std: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, "DEBUG", format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, "INFO", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, "ERROR", format, args...)
}

func (l *Logger) logf(level Level, tag, format string, args ...any) {
	if level < l.level {
		return
	}
	l.std.Output(3, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}
