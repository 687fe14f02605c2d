// pkg/logging/testing.go - observable logger for package tests.

package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger wraps Logger with observation of every entry.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a logger that records everything down to DEBUG.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core)},
		observed: observed,
	}
}

// Messages returns the messages logged at level, in order.
func (t *TestLogger) Messages(level LogLevel) []string {
	var out []string
	for _, entry := range t.observed.All() {
		if entry.Level == level.zapLevel() {
			out = append(out, entry.Message)
		}
	}
	return out
}

// All returns every logged message regardless of level.
func (t *TestLogger) All() []string {
	var out []string
	for _, entry := range t.observed.All() {
		out = append(out, entry.Message)
	}
	return out
}

// CountContaining counts entries at level whose message contains substr.
func (t *TestLogger) CountContaining(level LogLevel, substr string) int {
	n := 0
	for _, msg := range t.Messages(level) {
		if strings.Contains(msg, substr) {
			n++
		}
	}
	return n
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level LogLevel, substr string) {
	tb.Helper()
	if t.CountContaining(level, substr) == 0 {
		tb.Errorf("expected %s log containing %q, got: %v", level, substr, t.All())
	}
}
