// Package blobstore holds recording results behind revocable transient URLs.
package blobstore

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tiroq/voicecap/internal/recorder"
)

// URLPrefix prefixes every transient URL.
const URLPrefix = "blob:voicecap/"

// ErrRevoked is returned for an unknown or revoked URL.
var ErrRevoked = errors.New("transient url revoked or unknown")

// Store maps transient URLs to results.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]*recorder.RecordingResult
}

// New returns an empty store.
func New() *Store {
	return &Store{blobs: make(map[string]*recorder.RecordingResult)}
}

// Create registers result and returns its URL.
func (s *Store) Create(result *recorder.RecordingResult) string {
	url := URLPrefix + uuid.NewString()
	s.mu.Lock()
	s.blobs[url] = result
	s.mu.Unlock()
	return url
}

// Get resolves a URL or a bare ID.
func (s *Store) Get(ref string) (*recorder.RecordingResult, error) {
	if !strings.HasPrefix(ref, URLPrefix) {
		ref = URLPrefix + ref
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.blobs[ref]
	if !ok {
		return nil, ErrRevoked
	}
	return result, nil
}

// Revoke drops url. Revoking an unknown URL is a no-op.
func (s *Store) Revoke(url string) {
	s.mu.Lock()
	delete(s.blobs, url)
	s.mu.Unlock()
}

// Len returns the number of live URLs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// ID returns the part of url after URLPrefix.
func ID(url string) string {
	return strings.TrimPrefix(url, URLPrefix)
}
