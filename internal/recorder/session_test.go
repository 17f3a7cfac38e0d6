package recorder

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/format"
)

type fakeRecorder struct {
	mu        sync.Mutex
	supported map[string]bool
	started   int
	stopped   int
	startErr  error
	flush     []byte // delivered during Stop
	onFrag    FragmentFunc
	enc       format.Encoding
}

func (f *fakeRecorder) IsTypeSupported(mime string) bool { return f.supported[mime] }

func (f *fakeRecorder) Start(_ capture.Stream, enc format.Encoding, onFragment FragmentFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	f.enc = enc
	f.onFrag = onFragment
	return nil
}

func (f *fakeRecorder) Stop() error {
	f.mu.Lock()
	f.stopped++
	onFrag, flush := f.onFrag, f.flush
	f.mu.Unlock()
	if len(flush) > 0 {
		onFrag(flush)
	}
	return nil
}

func newTestStream() *capture.LiveStream {
	src := capture.Source{Name: "Monitor", Format: "pulse", Device: "default.monitor", Audio: true}
	return capture.NewLiveStream(src, capture.Constraints{Audio: true})
}

func opusOnly() *fakeRecorder {
	return &fakeRecorder{supported: map[string]bool{"audio/webm;codecs=opus": true}}
}

func TestSessionAssemblesFragmentsInOrder(t *testing.T) {
	rec := opusOnly()
	s := NewSession(rec, nil, nil)
	if err := s.Start(newTestStream()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.Encoding() != "audio/webm;codecs=opus" {
		t.Errorf("Encoding() = %q", s.Encoding())
	}

	a := bytes.Repeat([]byte{'a'}, 120)
	b := bytes.Repeat([]byte{'b'}, 340)
	s.OnFragment(nil)
	s.OnFragment([]byte{})
	s.OnFragment(a)
	s.OnFragment(b)

	res, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if res.Len() != 460 {
		t.Errorf("Len() = %d, want 460", res.Len())
	}
	if !bytes.Equal(res.Bytes(), append(append([]byte{}, a...), b...)) {
		t.Error("result bytes are not the fragments in arrival order")
	}
	if res.Fragments != 2 {
		t.Errorf("Fragments = %d, want 2", res.Fragments)
	}
	if res.MIMEType != "audio/webm;codecs=opus" {
		t.Errorf("MIMEType = %q", res.MIMEType)
	}
	if res.Extension() != ".webm" {
		t.Errorf("Extension() = %q", res.Extension())
	}
}

func TestSessionCopiesFragments(t *testing.T) {
	s := NewSession(opusOnly(), nil, nil)
	if err := s.Start(newTestStream()); err != nil {
		t.Fatal(err)
	}
	buf := []byte("abc")
	s.OnFragment(buf)
	buf[0] = 'z'
	res, _ := s.Stop()
	if string(res.Bytes()) != "abc" {
		t.Errorf("Bytes() = %q, want abc", res.Bytes())
	}
}

func TestSessionStopIsIdempotent(t *testing.T) {
	rec := opusOnly()
	s := NewSession(rec, nil, nil)
	if err := s.Start(newTestStream()); err != nil {
		t.Fatal(err)
	}
	s.OnFragment([]byte("first"))

	first, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	s.OnFragment([]byte("late"))
	second, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second Stop() returned a different result")
	}
	if string(second.Bytes()) != "first" {
		t.Errorf("Bytes() = %q, fragment after stop was kept", second.Bytes())
	}
	if rec.stopped != 1 {
		t.Errorf("recorder stopped %d times, want 1", rec.stopped)
	}
	if s.State() != StateStopped {
		t.Errorf("State() = %s", s.State())
	}
}

func TestSessionStopIdle(t *testing.T) {
	s := NewSession(opusOnly(), nil, nil)
	res, err := s.Stop()
	if res != nil || err != nil {
		t.Errorf("Stop() on idle = %v, %v; want nil, nil", res, err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %s", s.State())
	}
}

func TestSessionStartTwice(t *testing.T) {
	s := NewSession(opusOnly(), nil, nil)
	if err := s.Start(newTestStream()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(newTestStream()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRecording", err)
	}
	s.Stop()
	if err := s.Start(newTestStream()); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("Start() after stop error = %v, want ErrAlreadyRecording", err)
	}
}

func TestSessionNoSupportedFormat(t *testing.T) {
	rec := &fakeRecorder{supported: map[string]bool{}}
	s := NewSession(rec, nil, nil)
	err := s.Start(newTestStream())
	if !errors.Is(err, format.ErrNoSupportedFormat) {
		t.Fatalf("Start() error = %v, want ErrNoSupportedFormat", err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %s, want idle", s.State())
	}
	if rec.started != 0 {
		t.Error("recorder started without a supported format")
	}
}

func TestSessionRecorderStartFailure(t *testing.T) {
	boom := errors.New("boom")
	rec := opusOnly()
	rec.startErr = boom
	s := NewSession(rec, nil, nil)
	if err := s.Start(newTestStream()); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want wrapped boom", err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %s, want idle", s.State())
	}
}

func TestSessionKeepsFragmentFlushedOnStop(t *testing.T) {
	rec := opusOnly()
	rec.flush = []byte("tail")
	s := NewSession(rec, nil, nil)
	if err := s.Start(newTestStream()); err != nil {
		t.Fatal(err)
	}
	s.OnFragment([]byte("head-"))
	res, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Bytes()) != "head-tail" {
		t.Errorf("Bytes() = %q, want head-tail", res.Bytes())
	}
}

func TestSessionStopWithoutFragments(t *testing.T) {
	s := NewSession(opusOnly(), nil, nil)
	if err := s.Start(newTestStream()); err != nil {
		t.Fatal(err)
	}
	res, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Len() != 0 {
		t.Errorf("Stop() = %v, want empty result", res)
	}
}

func TestSessionDoesNotReleaseStream(t *testing.T) {
	stream := newTestStream()
	s := NewSession(opusOnly(), nil, nil)
	if err := s.Start(stream); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if stream.Stopped() {
		t.Error("session stopped the borrowed stream")
	}
	stream.Stop()
}

func TestSessionUsesCandidateOrder(t *testing.T) {
	rec := &fakeRecorder{supported: map[string]bool{
		"audio/webm": true,
		"video/webm": true,
	}}
	s := NewSession(rec, []format.Encoding{"video/webm", "audio/webm"}, nil)
	if err := s.Start(newTestStream()); err != nil {
		t.Fatal(err)
	}
	if rec.enc != "video/webm" {
		t.Errorf("recorder started with %q, want video/webm", rec.enc)
	}
}
