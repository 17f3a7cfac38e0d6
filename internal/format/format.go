// Package format selects the container/codec pair a recording session encodes
// with. Negotiation is a pure function of the candidate list and the runtime's
// reported capabilities.
package format

import (
	"errors"
	"strings"
)

// Encoding identifies a container/codec pair as a MIME type with optional
// codecs parameter, e.g. "audio/webm;codecs=opus".
type Encoding string

// ErrNoSupportedFormat is returned when no candidate is accepted by the runtime.
var ErrNoSupportedFormat = errors.New("no supported recording format")

// DefaultCandidates is the priority-ordered list tried for every session.
var DefaultCandidates = []Encoding{
	"audio/webm;codecs=opus",
	"audio/webm",
	"video/webm;codecs=vp9,opus",
	"video/webm",
}

// Support reports whether the runtime can record a MIME type.
type Support interface {
	IsTypeSupported(mime string) bool
}

// SupportFunc adapts a plain function to Support.
type SupportFunc func(mime string) bool

// IsTypeSupported calls f(mime).
func (f SupportFunc) IsTypeSupported(mime string) bool { return f(mime) }

// Negotiate returns the first candidate the runtime supports. The result is
// deterministic for a fixed candidate list and capability set.
func Negotiate(candidates []Encoding, support Support) (Encoding, error) {
	if support == nil {
		return "", ErrNoSupportedFormat
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if support.IsTypeSupported(string(c)) {
			return c, nil
		}
	}
	return "", ErrNoSupportedFormat
}

// Container returns the MIME type without parameters ("audio/webm").
func (e Encoding) Container() string {
	mime, _, _ := strings.Cut(string(e), ";")
	return strings.TrimSpace(strings.ToLower(mime))
}

// Codecs returns the codecs listed in the codecs= parameter, if any.
func (e Encoding) Codecs() []string {
	_, params, ok := strings.Cut(string(e), ";")
	if !ok {
		return nil
	}
	for _, p := range strings.Split(params, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(key, "codecs") {
			continue
		}
		val = strings.Trim(val, `"`)
		var out []string
		for _, c := range strings.Split(val, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, strings.ToLower(c))
			}
		}
		return out
	}
	return nil
}

// IsVideo reports whether the container is a video container.
func (e Encoding) IsVideo() bool {
	return strings.HasPrefix(e.Container(), "video/")
}

// Extension returns the file extension for the encoding's container,
// including the leading dot.
func (e Encoding) Extension() string {
	switch e.Container() {
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "video/mp4":
		return ".mp4"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}

func (e Encoding) String() string { return string(e) }
