// Package ipc exchanges commands and status with a running daemon through
// files in the cache directory.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tiroq/voicecap/internal/synth"
)

const (
	commandFile = "cmd.json"
	statusFile  = "status.json"
)

// ErrInvalidCommand is returned for a command file that does not parse or
// names an unknown action.
var ErrInvalidCommand = errors.New("invalid command")

// Action is a control verb sent from ctl to the daemon.
type Action string

const (
	ActRecord Action = "record" // speak and capture the utterance
	ActSpeak  Action = "speak"  // speak without capturing
	ActStop   Action = "stop"   // stop the active cycle or utterance
	ActSave   Action = "save"   // write the ready result to disk
	ActQuit   Action = "quit"   // shut the daemon down
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActRecord, ActSpeak, ActStop, ActSave, ActQuit:
		return true
	}
	return false
}

// Command is one request written to cmd.json.
type Command struct {
	Action   Action         `json:"action"`
	Task     *synth.Request `json:"task,omitempty"`
	Dir      string         `json:"dir,omitempty"` // save destination, daemon default when empty
	IssuedAt time.Time      `json:"issued_at"`
}

// DefaultDir returns ~/.cache/voicecap.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".cache", "voicecap")
}

// CommandPath returns the command file inside dir.
func CommandPath(dir string) string { return filepath.Join(dir, commandFile) }

// StatusPath returns the status file inside dir.
func StatusPath(dir string) string { return filepath.Join(dir, statusFile) }

// WriteCommand writes cmd to dir/cmd.json.
func WriteCommand(dir string, cmd Command) error {
	if !cmd.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Action)
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return atomicWriteJSON(CommandPath(dir), cmd)
}

// ReadCommand reads and removes dir/cmd.json.
// Returns nil if no command is pending.
func ReadCommand(dir string) (*Command, error) {
	path := CommandPath(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// Remove immediately to prevent re-execution
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if len(data) == 0 {
		return nil, nil
	}

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if !cmd.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Action)
	}
	return &cmd, nil
}
