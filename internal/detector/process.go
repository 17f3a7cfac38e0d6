package detector

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessLister returns the names of running processes.
type ProcessLister func() ([]string, error)

// ProcessDetection matches running process names against patterns.
type ProcessDetection struct {
	list ProcessLister
}

// NewProcessDetection creates a process detector backed by the system
// process table.
func NewProcessDetection() *ProcessDetection {
	return &ProcessDetection{list: systemProcessNames}
}

// NewProcessDetectionWith creates a process detector over a custom lister.
func NewProcessDetectionWith(list ProcessLister) *ProcessDetection {
	return &ProcessDetection{list: list}
}

// IsProcessRunning reports whether any process name equals one of the
// patterns (case-insensitive) and returns the matching name.
func (pd *ProcessDetection) IsProcessRunning(patterns []string) (bool, string, error) {
	names, err := pd.list()
	if err != nil {
		return false, "", fmt.Errorf("list processes: %w", err)
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, pattern := range patterns {
			if lower == strings.ToLower(pattern) {
				return true, name, nil
			}
		}
	}
	return false, "", nil
}

func systemProcessNames() ([]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		// Processes can exit between listing and inspection.
		name, err := p.Name()
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
