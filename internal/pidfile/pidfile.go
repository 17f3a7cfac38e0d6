// Package pidfile keeps a single voicecap daemon or server per user.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrRunning is returned when the PID file belongs to a live process.
var ErrRunning = errors.New("another instance is already running")

// PIDFile is a PID file owned by this process.
type PIDFile struct {
	path string
	pid  int
}

// Alive reports whether pid is a running process. Replaced in tests.
var Alive = func(pid int) bool {
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// New writes the current PID to path. A PID file naming a live process is an
// ErrRunning error; one naming a dead process or holding garbage is replaced.
func New(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}

	if pid, err := Read(path); err == nil && pid != os.Getpid() && Alive(pid) {
		return nil, fmt.Errorf("%w (PID %d)", ErrRunning, pid)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Read returns the PID stored at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

// Running returns the PID recorded at path when that process is alive.
func Running(path string) (int, bool) {
	pid, err := Read(path)
	if err != nil || !Alive(pid) {
		return 0, false
	}
	return pid, true
}

// Remove deletes the file if it still holds our PID. Safe on nil.
func (p *PIDFile) Remove() error {
	if p == nil {
		return nil
	}
	if pid, err := Read(p.path); err == nil && pid == p.pid {
		return os.Remove(p.path)
	}
	return nil
}

// Path returns ~/.cache/voicecap/<name>.pid.
func Path(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "voicecap", name+".pid")
}
