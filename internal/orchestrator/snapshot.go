package orchestrator

import (
	"time"

	"github.com/tiroq/voicecap/internal/statemachine"
)

// SuggestedBaseName is the download filename before the extension.
const SuggestedBaseName = "tts-recording"

// Snapshot is the externally visible orchestrator state.
type Snapshot struct {
	State     statemachine.State    `json:"state"`
	Controls  statemachine.Controls `json:"controls"`
	Path      []statemachine.State  `json:"path,omitempty"`
	CycleID   string                `json:"cycle_id,omitempty"`
	Speaking  bool                  `json:"speaking"`
	ResultURL string                `json:"result_url,omitempty"`
	Filename  string                `json:"filename,omitempty"`
	MIMEType  string                `json:"mime_type,omitempty"`
	Bytes     int                   `json:"bytes"`
	Duration  time.Duration         `json:"duration_ns,omitempty"`
	ErrorCode string                `json:"error_code,omitempty"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Terminal reports whether the cycle has ended in Ready or Failed.
func (s Snapshot) Terminal() bool {
	return s.State == statemachine.Ready || s.State == statemachine.Failed
}
