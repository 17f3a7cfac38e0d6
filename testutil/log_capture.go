package testutil

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// LogCapture records zap entries for assertions.
type LogCapture struct {
	logs *observer.ObservedLogs
}

// NewLogCapture returns a debug-level logger writing into the capture.
func NewLogCapture() (*zap.Logger, *LogCapture) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), &LogCapture{logs: logs}
}

// Contains reports whether any message contains substr.
func (lc *LogCapture) Contains(substr string) bool {
	for _, e := range lc.logs.All() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// Count returns the number of entries whose message contains substr.
func (lc *LogCapture) Count(substr string) int {
	n := 0
	for _, e := range lc.logs.All() {
		if strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}
