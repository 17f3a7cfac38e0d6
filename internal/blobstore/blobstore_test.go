package blobstore

import (
	"errors"
	"strings"
	"testing"

	"github.com/tiroq/voicecap/internal/recorder"
)

func TestCreateGetRevoke(t *testing.T) {
	s := New()
	result := &recorder.RecordingResult{MIMEType: "audio/webm"}

	url := s.Create(result)
	if !strings.HasPrefix(url, URLPrefix) {
		t.Fatalf("Create() = %q, want prefix %q", url, URLPrefix)
	}

	got, err := s.Get(url)
	if err != nil || got != result {
		t.Fatalf("Get(url) = %v, %v", got, err)
	}
	got, err = s.Get(ID(url))
	if err != nil || got != result {
		t.Fatalf("Get(id) = %v, %v", got, err)
	}

	s.Revoke(url)
	if _, err := s.Get(url); !errors.Is(err, ErrRevoked) {
		t.Errorf("Get() after revoke error = %v, want ErrRevoked", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	s.Revoke(url)
}

func TestCreateUniqueURLs(t *testing.T) {
	s := New()
	r := &recorder.RecordingResult{}
	a, b := s.Create(r), s.Create(r)
	if a == b {
		t.Errorf("Create() returned %q twice", a)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
