package detector

import (
	"runtime"
	"time"
)

// AudioServer identifies the sound server a capture source reads from.
type AudioServer string

const (
	ServerNone       AudioServer = ""
	ServerPipeWire   AudioServer = "pipewire"
	ServerPulseAudio AudioServer = "pulseaudio"
	ServerCoreAudio  AudioServer = "coreaudio"
	ServerWASAPI     AudioServer = "wasapi"
)

// Rule maps an audio server to the process names that indicate it is running.
type Rule struct {
	Server       AudioServer
	ProcessNames []string
}

// DetectionState is the result of one audio server check.
type DetectionState struct {
	Server      AudioServer `json:"server"`
	ProcessName string      `json:"process_name"`
	Available   bool        `json:"available"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// DefaultRules returns the detection order for the current platform. PipeWire is
// checked before PulseAudio because pipewire-pulse also answers Pulse clients.
func DefaultRules() []Rule {
	switch runtime.GOOS {
	case "darwin":
		return []Rule{{Server: ServerCoreAudio, ProcessNames: []string{"coreaudiod"}}}
	case "windows":
		return []Rule{{Server: ServerWASAPI, ProcessNames: []string{"audiodg", "svchost"}}}
	default:
		return []Rule{
			{Server: ServerPipeWire, ProcessNames: []string{"pipewire-pulse", "pipewire"}},
			{Server: ServerPulseAudio, ProcessNames: []string{"pulseaudio"}},
		}
	}
}

// Detector looks for a running audio server.
type Detector interface {
	Detect() (*DetectionState, error)
}

// AudioServerDetector checks rules in order against the process table.
type AudioServerDetector struct {
	pd    *ProcessDetection
	rules []Rule
}

// NewAudioServerDetector creates a detector over pd. Nil rules selects
// DefaultRules.
func NewAudioServerDetector(pd *ProcessDetection, rules []Rule) *AudioServerDetector {
	if rules == nil {
		rules = DefaultRules()
	}
	return &AudioServerDetector{pd: pd, rules: rules}
}

// Detect returns the first rule whose process is running.
func (d *AudioServerDetector) Detect() (*DetectionState, error) {
	state := &DetectionState{EvaluatedAt: time.Now()}
	for _, rule := range d.rules {
		running, name, err := d.pd.IsProcessRunning(rule.ProcessNames)
		if err != nil {
			return nil, err
		}
		if running {
			state.Server = rule.Server
			state.ProcessName = name
			state.Available = true
			return state, nil
		}
	}
	return state, nil
}
