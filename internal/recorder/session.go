package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/format"
)

// ErrAlreadyRecording is returned by Start on a session that is not idle.
var ErrAlreadyRecording = errors.New("recording session already started")

// SessionState is the lifecycle state of a Session.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateRecording SessionState = "recording"
	StateStopped   SessionState = "stopped"
)

// Session records one borrowed stream with one negotiated encoding. It never
// stops the stream; the caller owns stream lifetime.
type Session struct {
	rec        Recorder
	candidates []format.Encoding
	log        *zap.Logger

	// stopMu serializes Stop so a second caller waits for the first result.
	stopMu sync.Mutex

	mu        sync.Mutex
	state     SessionState
	enc       format.Encoding
	fragments [][]byte
	result    *RecordingResult
	startedAt time.Time
}

// NewSession creates an idle session. Nil candidates selects
// format.DefaultCandidates.
func NewSession(rec Recorder, candidates []format.Encoding, log *zap.Logger) *Session {
	if candidates == nil {
		candidates = format.DefaultCandidates
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{rec: rec, candidates: candidates, log: log, state: StateIdle}
}

// Start negotiates the encoding and starts the recorder on stream.
func (s *Session) Start(stream capture.Stream) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	enc, err := format.Negotiate(s.candidates, s.rec)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.enc = enc
	s.state = StateRecording
	s.startedAt = time.Now()
	s.mu.Unlock()

	// The recorder may deliver fragments before Start returns.
	if err := s.rec.Start(stream, enc, s.OnFragment); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.enc = ""
		s.fragments = nil
		s.mu.Unlock()
		return fmt.Errorf("start recorder: %w", err)
	}

	s.log.Debug("recording started", zap.String("encoding", string(enc)), zap.String("stream_id", stream.ID()))
	return nil
}

// OnFragment appends a copy of data. Zero-length fragments and fragments
// arriving outside the recording state are ignored.
func (s *Session) OnFragment(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return
	}
	s.fragments = append(s.fragments, append([]byte(nil), data...))
}

// Stop ends recording and assembles the fragments in arrival order. Calling
// Stop again returns the same result without reassembling; calling it on an
// idle session returns nil. A recorder stop error is returned alongside the
// assembled result.
func (s *Session) Stop() (*RecordingResult, error) {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return nil, nil
	case StateStopped:
		result := s.result
		s.mu.Unlock()
		return result, nil
	}
	s.mu.Unlock()

	// Fragments flushed by the recorder during Stop still land in the session.
	stopErr := s.rec.Stop()

	s.mu.Lock()
	s.result = newResult(s.fragments, s.enc, s.startedAt)
	s.fragments = nil
	s.state = StateStopped
	result := s.result
	s.mu.Unlock()

	if stopErr != nil {
		s.log.Warn("recorder stop reported an error", zap.Error(stopErr))
		return result, fmt.Errorf("stop recorder: %w", stopErr)
	}
	s.log.Debug("recording stopped",
		zap.Int("bytes", result.Len()),
		zap.Int("fragments", result.Fragments),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Encoding returns the negotiated encoding, empty before Start.
func (s *Session) Encoding() format.Encoding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc
}
