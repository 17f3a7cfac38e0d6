package fileutil

import (
	"fmt"
	"os"

	"github.com/tiroq/voicecap/internal/recorder"
)

// SaveResult writes result into dir as base plus the result's extension,
// numbering the name on collision (safe across concurrent saves), and writes meta as its sidecar when meta
// is non-nil. It returns the recording path.
func SaveResult(dir, base string, result *recorder.RecordingResult, meta *RecordingMetadata) (string, error) {
	if result == nil {
		return "", fmt.Errorf("save recording: no result")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path, err := ReservePath(dir, SanitizeForFilename(base, "tts-recording"), result.Extension())
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, result.Reader()); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save recording: %w", err)
	}

	if meta != nil {
		meta.OutputFile = path
		meta.MIMEType = result.MIMEType
		meta.Bytes = result.Len()
		meta.StartedAt = result.StartedAt
		meta.Duration = result.Duration.String()
		meta.DurationMs = result.Duration.Milliseconds()
		if err := WriteMetadata(path, meta); err != nil {
			return path, err
		}
	}
	return path, nil
}
