package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeEspeak writes an executable shell script standing in for espeak-ng.
func fakeEspeak(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engines need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "espeak-ng")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

type signals struct {
	ended chan struct{}
	errs  chan error
}

func newSignals() *signals {
	return &signals{ended: make(chan struct{}, 2), errs: make(chan error, 2)}
}

func (s *signals) handlers() Handlers {
	return Handlers{
		OnEnd:   func() { s.ended <- struct{}{} },
		OnError: func(err error) { s.errs <- err },
	}
}

// wait returns nil for OnEnd or the error passed to OnError.
func (s *signals) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-s.ended:
		return nil
	case err := <-s.errs:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("utterance never settled")
		return nil
	}
}

func TestEspeakSpeakCompletes(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "spoken")
	bin := fakeEspeak(t, `echo "$@" > "`+out+`.args"; cat > "`+out+`"`)
	e := NewEspeakEngine(bin, nil)

	s := newSignals()
	if err := e.Speak(Task{Text: "hello there", Voice: "en-us", Rate: 1, Pitch: 0}, s.handlers()); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if err := s.wait(t); err != nil {
		t.Fatalf("settled with error %v, want end", err)
	}

	text, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "hello there" {
		t.Errorf("stdin = %q, want hello there", text)
	}
	args, _ := os.ReadFile(out + ".args")
	if got := strings.TrimSpace(string(args)); got != "-s 175 -p 0 -v en-us --stdin" {
		t.Errorf("args = %q", got)
	}
}

func TestEspeakFailureReportsStderr(t *testing.T) {
	bin := fakeEspeak(t, `echo "unknown voice" >&2; exit 1`)
	e := NewEspeakEngine(bin, nil)

	s := newSignals()
	if err := e.Speak(Task{Text: "hi", Rate: 1, Pitch: 1}, s.handlers()); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	err := s.wait(t)
	if err == nil || !strings.Contains(err.Error(), "unknown voice") {
		t.Errorf("err = %v, want stderr in message", err)
	}
	if errors.Is(err, ErrCancelled) {
		t.Errorf("engine failure reported as cancellation: %v", err)
	}
}

func TestEspeakCancel(t *testing.T) {
	bin := fakeEspeak(t, `exec sleep 10`)
	e := NewEspeakEngine(bin, nil)

	s := newSignals()
	if err := e.Speak(Task{Text: "a long utterance", Rate: 1, Pitch: 1}, s.handlers()); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	start := time.Now()
	e.Cancel()
	if err := s.wait(t); !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("cancel took %s", elapsed)
	}
	e.Cancel()
}

func TestEspeakMissingBinary(t *testing.T) {
	e := NewEspeakEngine(filepath.Join(t.TempDir(), "missing"), nil)
	if err := e.Speak(Task{Text: "hi", Rate: 1, Pitch: 1}, newSignals().handlers()); err == nil {
		t.Error("Speak with a missing binary succeeded")
	}
}

func TestEspeakVoices(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "voices.txt")
	if err := os.WriteFile(table, []byte(espeakVoices), 0o644); err != nil {
		t.Fatal(err)
	}
	bin := fakeEspeak(t, `[ "$1" = "--voices" ] && cat "`+table+`"`)

	voices, err := NewEspeakEngine(bin, nil).Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 4 {
		t.Errorf("got %d voices, want 4", len(voices))
	}
}
