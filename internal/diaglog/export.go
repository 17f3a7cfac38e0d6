package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Version is set from the main package at startup.
var Version = "dev"

// DiagBundle is the header line of an export.
type DiagBundle struct {
	ExportedAt      string   `json:"exported_at"`
	VoicecapVersion string   `json:"voicecap_version"`
	GoVersion       string   `json:"go_version"`
	OS              string   `json:"os"`
	Arch            string   `json:"arch"`
	LogFiles        []string `json:"log_files"`
	EntryCount      int      `json:"entry_count"`
}

// Export writes dest/voicecap-diag-<ts>.ndjson: a DiagBundle line followed by
// the rotated log (if any) and then the live log, oldest first. It returns
// the output path and the number of entries copied.
func Export(logPath, dest string) (string, int, error) {
	if _, err := os.Stat(logPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, fmt.Errorf("log file not found at %s: %w", logPath, os.ErrNotExist)
		}
		return "", 0, fmt.Errorf("log file unreadable: %w", err)
	}

	sources := []string{logPath}
	if _, err := os.Stat(rotatedPath(logPath)); err == nil {
		sources = []string{rotatedPath(logPath), logPath}
	}

	var lines [][]byte
	for _, src := range sources {
		read, err := readLines(src)
		if err != nil {
			return "", 0, err
		}
		lines = append(lines, read...)
	}

	outPath := filepath.Join(dest, "voicecap-diag-"+time.Now().UTC().Format("20060102T150405")+".ndjson")
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("create export: %w", err)
	}
	defer func() { _ = out.Close() }()

	header, err := json.Marshal(DiagBundle{
		ExportedAt:      time.Now().UTC().Format(time.RFC3339),
		VoicecapVersion: Version,
		GoVersion:       runtime.Version(),
		OS:              runtime.GOOS,
		Arch:            runtime.GOARCH,
		LogFiles:        sources,
		EntryCount:      len(lines),
	})
	if err != nil {
		return "", 0, err
	}

	w := bufio.NewWriter(out)
	if _, err := w.Write(append(header, '\n')); err != nil {
		return "", 0, err
	}
	for _, line := range lines {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return "", 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	return outPath, len(lines), nil
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("log file unreadable: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLogSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("log file unreadable: %w", err)
	}
	return lines, nil
}
