package fileutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// RecordingMetadata is the sidecar written next to a saved recording. The
// spoken text itself is not stored, only its length.
type RecordingMetadata struct {
	Version    string    `json:"version"`
	CycleID    string    `json:"cycle_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
	DurationMs int64     `json:"duration_ms"`
	MIMEType   string    `json:"mime_type"`
	Bytes      int       `json:"bytes"`
	Voice      string    `json:"voice,omitempty"`
	Rate       float64   `json:"rate"`
	Pitch      float64   `json:"pitch"`
	TextChars  int       `json:"text_chars"`
	Source     string    `json:"source,omitempty"`
	OutputFile string    `json:"output_file"`
}

// WriteMetadata atomically writes <recording without ext>.meta.json.
func WriteMetadata(recordingPath string, meta *RecordingMetadata) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeAtomic(MetadataPath(recordingPath), &buf); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// MetadataPath returns the sidecar path for a recording.
func MetadataPath(recordingPath string) string {
	return strings.TrimSuffix(recordingPath, filepath.Ext(recordingPath)) + ".meta.json"
}
