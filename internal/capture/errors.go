package capture

import "errors"

var (
	// ErrPermissionDenied means the user declined the capture prompt or the
	// request was cancelled before consent.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrNoAudioTrack means the granted stream does not share audio.
	ErrNoAudioTrack = errors.New("capture stream has no audio track")
	// ErrEnvironmentUnsupported means capture or recording is unavailable.
	ErrEnvironmentUnsupported = errors.New("capture not supported in this environment")
)
