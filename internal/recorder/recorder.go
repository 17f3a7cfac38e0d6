// Package recorder binds a capture stream to an encoder and assembles the
// encoded fragments into one immutable result.
package recorder

import (
	"bytes"
	"io"
	"time"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/format"
)

// FragmentFunc receives encoded bytes in delivery order. The slice is only
// valid for the duration of the call.
type FragmentFunc func(data []byte)

// Recorder is the encoder boundary. Stop returns only after the final
// fragment has been delivered.
type Recorder interface {
	IsTypeSupported(mime string) bool
	Start(stream capture.Stream, enc format.Encoding, onFragment FragmentFunc) error
	Stop() error
}

// RecordingResult is the assembled output of one session. The bytes are
// never mutated after assembly.
type RecordingResult struct {
	data      []byte
	MIMEType  string
	Encoding  format.Encoding
	Fragments int
	StartedAt time.Time
	Duration  time.Duration
}

func newResult(fragments [][]byte, enc format.Encoding, startedAt time.Time) *RecordingResult {
	size := 0
	for _, f := range fragments {
		size += len(f)
	}
	data := make([]byte, 0, size)
	for _, f := range fragments {
		data = append(data, f...)
	}
	return &RecordingResult{
		data:      data,
		MIMEType:  string(enc),
		Encoding:  enc,
		Fragments: len(fragments),
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}
}

// Len returns the byte length of the result.
func (r *RecordingResult) Len() int { return len(r.data) }

// Bytes returns a copy of the result bytes.
func (r *RecordingResult) Bytes() []byte {
	return append([]byte(nil), r.data...)
}

// Reader returns a reader over the result bytes.
func (r *RecordingResult) Reader() io.ReadSeeker {
	return bytes.NewReader(r.data)
}

// Extension returns the file extension for the result's container.
func (r *RecordingResult) Extension() string {
	return r.Encoding.Extension()
}
