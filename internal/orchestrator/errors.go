package orchestrator

import (
	"errors"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/format"
	"github.com/tiroq/voicecap/internal/recorder"
	"github.com/tiroq/voicecap/internal/synth"
)

var (
	// ErrBusy rejects a request while a capture cycle is in progress.
	ErrBusy = errors.New("capture cycle in progress")
	// ErrEmptyText rejects a task with no text to speak.
	ErrEmptyText = errors.New("text is empty")
	// ErrNotReady is returned when no recording is available.
	ErrNotReady = errors.New("no recording ready")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// Code returns a stable identifier for err, or "" for nil.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, capture.ErrNoAudioTrack):
		return "no_audio_track"
	case errors.Is(err, capture.ErrEnvironmentUnsupported):
		return "environment_unsupported"
	case errors.Is(err, format.ErrNoSupportedFormat):
		return "no_supported_format"
	case errors.Is(err, recorder.ErrAlreadyRecording):
		return "already_recording"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrEmptyText):
		return "empty_text"
	case errors.Is(err, synth.ErrInvalidTask):
		return "invalid_task"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "capture_failed"
	}
}

// Describe returns the one message shown to the user for err.
func Describe(err error) string {
	switch Code(err) {
	case "":
		return ""
	case "permission_denied":
		return "Capture permission was not granted. Choose a source and allow audio sharing to try again."
	case "no_audio_track":
		return "The selected source does not share audio. Pick a source with audio sharing enabled."
	case "environment_unsupported":
		return "Audio capture is not available here. Install ffmpeg and make sure an audio server is running."
	case "no_supported_format":
		return "This ffmpeg build cannot record any supported format (WebM with Opus is required)."
	case "already_recording":
		return "A recording is already in progress."
	case "busy":
		return "A capture is already running. Stop it or wait for it to finish."
	case "empty_text":
		return "Enter some text to speak."
	case "invalid_task":
		return "Invalid speech settings: " + err.Error()
	case "not_ready":
		return "No recording is ready to download yet."
	case "closed":
		return "The capture service has shut down."
	default:
		return "Capture failed: " + err.Error()
	}
}
