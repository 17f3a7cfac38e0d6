// Package diaglog writes NDJSON diagnostic events for capture cycles.
// Enabled by VOICECAP_DEBUG_CAPTURE=true; otherwise every Log call is a no-op
// and no file is created.
package diaglog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnvDebug enables diagnostic logging when set to "true".
const EnvDebug = "VOICECAP_DEBUG_CAPTURE"

// maxLogSize caps the live log file before it is rotated.
const maxLogSize = 10 * 1024 * 1024

const (
	ComponentAcquirer     = "stream-acquirer"
	ComponentRecorder     = "recording-session"
	ComponentSynth        = "synthesis-bridge"
	ComponentOrchestrator = "capture-orchestrator"
	ComponentServer       = "http-server"
	ComponentDaemon       = "daemon"
	ComponentDiagExport   = "diag-export"
)

const (
	EventCycleStart      = "cycle_start"
	EventTransition      = "transition"
	EventStreamAcquired  = "stream_acquired"
	EventStreamReleased  = "stream_released"
	EventAcquireFailed   = "acquire_failed"
	EventFormatChosen    = "format_chosen"
	EventRecordingStart  = "recording_start"
	EventRecordingStop   = "recording_stop"
	EventSpeechStart     = "speech_start"
	EventSpeechSettled   = "speech_settled"
	EventResultReady     = "result_ready"
	EventURLRevoked      = "url_revoked"
	EventCycleFailed     = "cycle_failed"
	EventTeardown        = "teardown"
	EventCommandReceived = "command_received"
)

// LogEntry is one event, written as a single JSON line.
type LogEntry struct {
	Timestamp string      `json:"ts"`
	Component string      `json:"component"`
	Event     string      `json:"event"`
	CycleID   string      `json:"cycle_id,omitempty"`
	State     string      `json:"state,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Logger appends entries to a rotating NDJSON file.
type Logger struct {
	rw      *rollingWriter
	mu      sync.Mutex
	enabled bool
}

// New opens the log at path. When debug logging is disabled path is ignored
// and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return NewNoOp(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	rw, err := newRollingWriter(path, maxLogSize)
	if err != nil {
		return nil, err
	}
	return &Logger{rw: rw, enabled: true}, nil
}

// Log writes entry with a UTC timestamp. Sensitive payload keys are redacted.
func (l *Logger) Log(entry LogEntry) {
	if !l.Enabled() {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if entry.Payload != nil {
		entry.Payload = Redact(entry.Payload)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.rw.Write(append(data, '\n'))
}

// Enabled reports whether entries are written. Safe on a nil logger.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Close closes the file. Safe on a nil or disabled logger.
func (l *Logger) Close() error {
	if !l.Enabled() || l.rw == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rw.close()
}

// IsDebugEnabled reports whether VOICECAP_DEBUG_CAPTURE is "true".
func IsDebugEnabled() bool {
	return os.Getenv(EnvDebug) == "true"
}

// NewNoOp returns a logger that drops every entry.
func NewNoOp() *Logger {
	return &Logger{}
}

// DefaultPath is ~/.cache/voicecap/capture-debug.ndjson.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "voicecap", "capture-debug.ndjson")
}
