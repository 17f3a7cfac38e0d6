// Package validation checks the external tools and audio environment that
// capture depends on. Results feed the doctor command.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/detector"
	"github.com/tiroq/voicecap/internal/format"
)

// ValidationResult contains the result of one environment check
type ValidationResult struct {
	Name     string   `json:"name"`
	OK       bool     `json:"ok"`
	Message  string   `json:"message"`
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Fixes    []string `json:"fixes,omitempty"`
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// Minimum versions. ffmpeg 4.0 is the first release whose webm muxer honours
// cluster_time_limit with libopus; espeak-ng 1.49 added --stdin.
const (
	minFFmpegMajor = 4
	minEspeakMajor = 1
	minEspeakMinor = 49
	versionTimeout = 5 * time.Second
)

// ToolVersion runs binary with flag and returns its first output line.
func ToolVersion(ctx context.Context, binary, flag string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, flag).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", binary, flag, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// ValidateFFmpegVersion checks output like "ffmpeg version 6.1.1-3ubuntu5".
// Git snapshot builds ("ffmpeg version N-112233-g...") are accepted with a warning.
func ValidateFFmpegVersion(versionLine string) *ValidationResult {
	result := &ValidationResult{Name: "ffmpeg", OK: true}

	fields := strings.Fields(versionLine)
	if len(fields) >= 3 && fields[1] == "version" && strings.HasPrefix(fields[2], "N-") {
		result.Message = fmt.Sprintf("ffmpeg snapshot build %s", fields[2])
		result.Warnings = append(result.Warnings, "Snapshot build version cannot be compared; assuming compatible")
		return result
	}

	matches := versionRe.FindStringSubmatch(versionLine)
	if matches == nil {
		result.OK = false
		result.Message = fmt.Sprintf("Could not parse ffmpeg version: %s", versionLine)
		result.Issues = append(result.Issues, "Invalid version format")
		result.Fixes = append(result.Fixes, "Install ffmpeg from your package manager or https://ffmpeg.org")
		return result
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])

	if major < minFFmpegMajor {
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("ffmpeg %d.%d is too old (requires %d.0+)", major, minor, minFFmpegMajor))
		result.Fixes = append(result.Fixes, fmt.Sprintf("Update ffmpeg to %d.0 or later", minFFmpegMajor))
		result.Message = fmt.Sprintf("ffmpeg %d.%d requires update", major, minor)
		return result
	}

	result.Message = fmt.Sprintf("ffmpeg %d.%d is compatible (requires %d.0+)", major, minor, minFFmpegMajor)
	return result
}

// ValidateEspeakVersion checks output like
// "eSpeak NG text-to-speech: 1.51  Data at: /usr/lib/x86_64-linux-gnu/espeak-ng-data".
func ValidateEspeakVersion(versionLine string) *ValidationResult {
	result := &ValidationResult{Name: "espeak-ng", OK: true}

	if !strings.Contains(versionLine, "eSpeak NG") {
		result.OK = false
		result.Message = "Speech engine is not espeak-ng"
		result.Issues = append(result.Issues, fmt.Sprintf("Unexpected version output: %s", versionLine))
		result.Fixes = append(result.Fixes, "Install espeak-ng (apt install espeak-ng, brew install espeak-ng)")
		return result
	}

	matches := versionRe.FindStringSubmatch(versionLine)
	if matches == nil {
		result.OK = false
		result.Message = fmt.Sprintf("Could not parse espeak-ng version: %s", versionLine)
		result.Issues = append(result.Issues, "Invalid version format")
		return result
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])

	if major < minEspeakMajor || (major == minEspeakMajor && minor < minEspeakMinor) {
		result.OK = false
		result.Issues = append(result.Issues, fmt.Sprintf("espeak-ng %d.%d is too old (requires %d.%d+)", major, minor, minEspeakMajor, minEspeakMinor))
		result.Fixes = append(result.Fixes, fmt.Sprintf("Update espeak-ng to %d.%d or later", minEspeakMajor, minEspeakMinor))
		result.Message = fmt.Sprintf("espeak-ng %d.%d requires update", major, minor)
		return result
	}

	result.Message = fmt.Sprintf("espeak-ng %d.%d is compatible", major, minor)
	return result
}

// ValidateFormats checks that at least one candidate encoding is supported.
// Unsupported candidates after the first supported one are only warnings.
func ValidateFormats(candidates []format.Encoding, support format.Support) *ValidationResult {
	result := &ValidationResult{Name: "formats", OK: true}

	chosen, err := format.Negotiate(candidates, support)
	if err != nil {
		result.OK = false
		result.Message = "No recording format is supported"
		result.Issues = append(result.Issues, err.Error())
		result.Fixes = append(result.Fixes, "Install an ffmpeg build with libopus (ffmpeg -encoders | grep opus)")
		return result
	}

	for _, c := range candidates {
		if !support.IsTypeSupported(string(c)) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s not supported", c))
		}
	}
	result.Message = fmt.Sprintf("Recording as %s", chosen)
	return result
}

// ValidateAudioServer checks the detector found a running audio server.
func ValidateAudioServer(state *detector.DetectionState) *ValidationResult {
	result := &ValidationResult{Name: "audio server", OK: true}

	if state == nil || !state.Available {
		result.OK = false
		result.Message = "No audio server running"
		result.Issues = append(result.Issues, "Capture sources cannot be opened without an audio server")
		result.Fixes = append(result.Fixes, "Start PipeWire or PulseAudio (systemctl --user start pipewire-pulse)")
		return result
	}

	result.Message = fmt.Sprintf("%s running (%s)", state.Server, state.ProcessName)
	return result
}

// SuggestedFixes returns user-friendly troubleshooting for a capture failure
func SuggestedFixes(err error) []string {
	var fixes []string

	switch {
	case err == nil:
		return nil
	case errors.Is(err, capture.ErrPermissionDenied):
		fixes = append(fixes, "Capture permission was not granted")
		fixes = append(fixes, "Answer the source prompt, or set capture.auto_grant to a configured source name")
	case errors.Is(err, capture.ErrNoAudioTrack):
		fixes = append(fixes, "The chosen source does not share audio")
		fixes = append(fixes, "Pick a monitor source, or set audio: true on the source in voicecap.yaml")
	case errors.Is(err, capture.ErrEnvironmentUnsupported):
		fixes = append(fixes, "Capture is unavailable on this machine")
		fixes = append(fixes, "Run 'voicecap doctor' to see which tool or service is missing")
	case errors.Is(err, format.ErrNoSupportedFormat):
		fixes = append(fixes, "ffmpeg cannot encode any configured format")
		fixes = append(fixes, "Install an ffmpeg build with libopus, or edit recording.candidates")
	default:
		fixes = append(fixes, fmt.Sprintf("Error: %s", err))
		fixes = append(fixes, "Set VOICECAP_DEBUG_CAPTURE=true and run 'voicecap export-diag' for details")
	}

	return fixes
}

// Summarize folds check results into one result.
func Summarize(checks ...*ValidationResult) *ValidationResult {
	result := &ValidationResult{Name: "doctor", OK: true}
	var messages []string

	for _, c := range checks {
		if c == nil {
			continue
		}
		if !c.OK {
			result.OK = false
		}
		result.Issues = append(result.Issues, c.Issues...)
		result.Warnings = append(result.Warnings, c.Warnings...)
		result.Fixes = append(result.Fixes, c.Fixes...)
		messages = append(messages, c.Message)
	}

	result.Message = strings.Join(messages, " | ")
	if result.OK {
		result.Message = "Health check passed: " + result.Message
	} else {
		result.Message = "Health check FAILED: " + result.Message
	}
	return result
}
