package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/format"
	"github.com/tiroq/voicecap/internal/recorder"
	"github.com/tiroq/voicecap/internal/synth"
)

// FakeStream is a capture.Stream that counts Stop calls.
type FakeStream struct {
	id     string
	source capture.Source
	tracks []capture.Track
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	stops int
}

// NewFakeStream returns a live stream with an audio track when audio is set.
func NewFakeStream(audio bool) *FakeStream {
	ctx, cancel := context.WithCancel(context.Background())
	s := &FakeStream{
		id:     uuid.NewString(),
		source: capture.Source{Name: "fake", Device: "fake", Audio: audio},
		ctx:    ctx,
		cancel: cancel,
	}
	if audio {
		s.tracks = []capture.Track{{ID: uuid.NewString(), Kind: capture.KindAudio, Label: "fake"}}
	}
	return s
}

func (s *FakeStream) ID() string               { return s.id }
func (s *FakeStream) Source() capture.Source   { return s.source }
func (s *FakeStream) Tracks() []capture.Track  { return s.tracks }
func (s *FakeStream) Context() context.Context { return s.ctx }

func (s *FakeStream) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	s.cancel()
}

// StopCount returns how many times Stop was called.
func (s *FakeStream) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// FakeAcquirer hands out FakeStreams. With Block set, Acquire waits until
// Block is closed or the context ends, the latter surfacing as
// capture.ErrPermissionDenied.
type FakeAcquirer struct {
	Err     error
	NoAudio bool
	Block   chan struct{}

	mu      sync.Mutex
	calls   int
	streams []*FakeStream
}

func (a *FakeAcquirer) Acquire(ctx context.Context) (capture.Stream, error) {
	a.mu.Lock()
	a.calls++
	block, err, noAudio := a.Block, a.Err, a.NoAudio
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", capture.ErrPermissionDenied, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	if noAudio {
		return nil, capture.ErrNoAudioTrack
	}

	s := NewFakeStream(true)
	a.mu.Lock()
	a.streams = append(a.streams, s)
	a.mu.Unlock()
	return s, nil
}

// Calls returns the number of Acquire calls.
func (a *FakeAcquirer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Streams returns every stream handed out.
func (a *FakeAcquirer) Streams() []*FakeStream {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*FakeStream(nil), a.streams...)
}

// Held returns the number of handed-out streams not yet stopped.
func (a *FakeAcquirer) Held() int {
	held := 0
	for _, s := range a.Streams() {
		if s.StopCount() == 0 {
			held++
		}
	}
	return held
}

// FakeRecorder is a recorder.Recorder that delivers Fragments on Start.
// A nil Supported map accepts every type.
type FakeRecorder struct {
	Supported map[string]bool
	Fragments [][]byte
	StartErr  error

	mu      sync.Mutex
	onFrag  recorder.FragmentFunc
	enc     format.Encoding
	starts  int
	stops   int
	running bool
}

func (r *FakeRecorder) IsTypeSupported(mime string) bool {
	if r.Supported == nil {
		return true
	}
	return r.Supported[mime]
}

func (r *FakeRecorder) Start(_ capture.Stream, enc format.Encoding, onFragment recorder.FragmentFunc) error {
	r.mu.Lock()
	if r.StartErr != nil {
		r.mu.Unlock()
		return r.StartErr
	}
	r.starts++
	r.enc = enc
	r.onFrag = onFragment
	r.running = true
	frags := r.Fragments
	r.mu.Unlock()

	for _, f := range frags {
		onFragment(f)
	}
	return nil
}

func (r *FakeRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.running = false
	return nil
}

// Emit delivers data while the recorder is running.
func (r *FakeRecorder) Emit(data []byte) {
	r.mu.Lock()
	on, running := r.onFrag, r.running
	r.mu.Unlock()
	if running && on != nil {
		on(data)
	}
}

// Encoding returns the encoding of the last Start.
func (r *FakeRecorder) Encoding() format.Encoding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc
}

// Counts returns the number of Start and Stop calls.
func (r *FakeRecorder) Counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

// FakeEngine is a synth.Engine driven by the test. With AutoEnd set every
// utterance ends on its own.
type FakeEngine struct {
	AutoEnd   bool
	StartErr  error
	VoiceList []synth.Voice

	mu       sync.Mutex
	tasks    []synth.Task
	handlers []synth.Handlers
	cancels  int
}

func (e *FakeEngine) Speak(task synth.Task, h synth.Handlers) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartErr != nil {
		return e.StartErr
	}
	e.tasks = append(e.tasks, task)
	e.handlers = append(e.handlers, h)
	if e.AutoEnd {
		go h.OnEnd()
	}
	return nil
}

// Cancel reports ErrCancelled for the latest utterance, like a killed
// engine process.
func (e *FakeEngine) Cancel() {
	e.mu.Lock()
	e.cancels++
	var h synth.Handlers
	if n := len(e.handlers); n > 0 {
		h = e.handlers[n-1]
	}
	e.mu.Unlock()
	if h.OnError != nil {
		go h.OnError(synth.ErrCancelled)
	}
}

func (e *FakeEngine) Voices(context.Context) ([]synth.Voice, error) {
	return e.VoiceList, nil
}

// End completes the latest utterance.
func (e *FakeEngine) End() {
	if h, ok := e.last(); ok {
		h.OnEnd()
	}
}

// Fail errors the latest utterance.
func (e *FakeEngine) Fail(err error) {
	if h, ok := e.last(); ok {
		h.OnError(err)
	}
}

// Tasks returns every task spoken.
func (e *FakeEngine) Tasks() []synth.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]synth.Task(nil), e.tasks...)
}

// Cancels returns the number of Cancel calls.
func (e *FakeEngine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

func (e *FakeEngine) last() (synth.Handlers, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handlers) == 0 {
		return synth.Handlers{}, false
	}
	return e.handlers[len(e.handlers)-1], true
}
