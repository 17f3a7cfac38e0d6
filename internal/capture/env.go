package capture

import (
	"fmt"
	"os/exec"

	"github.com/tiroq/voicecap/internal/detector"
)

// CheckEnvironment returns a check that fails when the encoder binary is
// missing or no audio server is running. A nil detector skips the server check.
func CheckEnvironment(ffmpegPath string, d detector.Detector) EnvironmentCheck {
	return func() error {
		if _, err := exec.LookPath(ffmpegPath); err != nil {
			return fmt.Errorf("%s not found in PATH", ffmpegPath)
		}
		if d == nil {
			return nil
		}
		state, err := d.Detect()
		if err != nil {
			return fmt.Errorf("audio server check: %w", err)
		}
		if !state.Available {
			return fmt.Errorf("no audio server running")
		}
		return nil
	}
}
