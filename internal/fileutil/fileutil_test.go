package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tts-recording", "tts-recording"},
		{"Hello world", "Hello-world"},
		{"a/b\\c:d*e?f\"g<h>i|j", "a-b-c-d-e-f-g-h-i-j"},
		{"  __spaces__  ", "spaces"},
		{"../../etc/passwd", "etc-passwd"},
		{"", "fallback"},
		{"???", "fallback"},
		{"this is a rather long title that keeps going well past fifty bytes", "this-is-a-rather-long-title-that-keeps-going-well"},
	}
	for _, tt := range tests {
		if got := SanitizeForFilename(tt.in, "fallback"); got != tt.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReservePath(t *testing.T) {
	dir := t.TempDir()

	first, err := ReservePath(dir, "tts-recording", ".webm")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first) != "tts-recording.webm" {
		t.Errorf("first = %s", first)
	}
	if _, err := os.Stat(first); err != nil {
		t.Errorf("reserved path not created: %v", err)
	}

	second, err := ReservePath(dir, "tts-recording", ".webm")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(second) != "tts-recording-2.webm" {
		t.Errorf("second = %s", second)
	}

	third, _ := ReservePath(dir, "tts-recording", ".webm")
	if filepath.Base(third) != "tts-recording-3.webm" {
		t.Errorf("third = %s", third)
	}
}

func TestReservePathMissingDir(t *testing.T) {
	if _, err := ReservePath(filepath.Join(t.TempDir(), "missing"), "x", ".webm"); err == nil {
		t.Error("ReservePath in a missing directory succeeded")
	}
}

func TestWriteMetadata(t *testing.T) {
	dir := t.TempDir()
	recPath := filepath.Join(dir, "tts-recording.webm")
	meta := &RecordingMetadata{
		Version:    "1.0.0",
		CycleID:    "c-1",
		MIMEType:   "audio/webm;codecs=opus",
		Bytes:      460,
		Voice:      "en-us",
		Rate:       1,
		Pitch:      1,
		TextChars:  11,
		OutputFile: recPath,
	}
	if err := WriteMetadata(recPath, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "tts-recording.meta.json"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var got RecordingMetadata
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.CycleID != "c-1" || got.Bytes != 460 || got.Voice != "en-us" {
		t.Errorf("metadata = %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestMetadataPath(t *testing.T) {
	if got := MetadataPath("/x/tts-recording-2.webm"); got != "/x/tts-recording-2.meta.json" {
		t.Errorf("MetadataPath() = %s", got)
	}
}
