package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tiroq/voicecap/internal/config"
	"github.com/tiroq/voicecap/internal/diaglog"
	"github.com/tiroq/voicecap/internal/fileutil"
	"github.com/tiroq/voicecap/internal/orchestrator"
	"github.com/tiroq/voicecap/internal/statemachine"
	"github.com/tiroq/voicecap/internal/synth"
	"github.com/tiroq/voicecap/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Engine:    config.EngineConfig{Binary: "espeak-ng", DefaultVoice: "en-gb", Rate: 1, Pitch: 1},
		Capture:   config.CaptureConfig{FFmpeg: "ffmpeg"},
		Recording: config.RecordingConfig{Candidates: []string{"audio/webm;codecs=opus", "audio/webm"}},
		Output:    config.OutputConfig{Dir: t.TempDir()},
	}
}

func newTestApp(t *testing.T, eng *testutil.FakeEngine) *App {
	t.Helper()
	t.Setenv(diaglog.EnvDebug, "")
	a, err := New(testConfig(t), nil, Options{
		Acquirer: &testutil.FakeAcquirer{},
		Recorder: &testutil.FakeRecorder{Fragments: [][]byte{bytes.Repeat([]byte{1}, 64)}},
		Engine:   eng,
	})
	testutil.AssertNoError(t, err, "New")
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestTaskDefaults(t *testing.T) {
	a := newTestApp(t, &testutil.FakeEngine{})

	got, err := a.Task(synth.Request{Text: "hi"})
	testutil.AssertNoError(t, err, "Task")
	testutil.AssertEqual(t, "en-gb", got.Voice, "voice")
	testutil.AssertEqual(t, 1.0, got.Rate, "rate")
	testutil.AssertEqual(t, 1.0, got.Pitch, "pitch")

	rate, pitch := 1.5, 0.0
	got, err = a.Task(synth.Request{Text: "hi", Voice: "de", Rate: &rate, Pitch: &pitch})
	testutil.AssertNoError(t, err, "Task")
	testutil.AssertEqual(t, synth.Task{Text: "hi", Voice: "de", Rate: 1.5, Pitch: 0}, got, "explicit values kept")
}

func TestTaskRejectsOutOfRange(t *testing.T) {
	a := newTestApp(t, &testutil.FakeEngine{})
	rate := 7.0
	_, err := a.Task(synth.Request{Text: "hi", Rate: &rate})
	testutil.AssertErrorIs(t, err, synth.ErrInvalidTask, "rate 7")
}

func TestRecordAndSave(t *testing.T) {
	eng := &testutil.FakeEngine{AutoEnd: true}
	a := newTestApp(t, eng)
	task, err := a.Task(synth.Request{Text: "save me"})
	testutil.AssertNoError(t, err, "Task")

	testutil.AssertNoError(t, a.Orchestrator.Record(task), "Record")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := a.Orchestrator.Await(ctx, orchestrator.Snapshot.Terminal)
	testutil.AssertNoError(t, err, "Await")
	testutil.AssertEqual(t, statemachine.Ready, snap.State, "state")

	path, err := a.Save("", task)
	testutil.AssertNoError(t, err, "Save")
	testutil.AssertEqual(t, filepath.Join(a.Config.Output.Dir, "tts-recording.webm"), path, "path")

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err, "read recording")
	testutil.AssertEqual(t, 64, len(data), "bytes")

	raw, err := os.ReadFile(fileutil.MetadataPath(path))
	testutil.AssertNoError(t, err, "read sidecar")
	var meta fileutil.RecordingMetadata
	testutil.AssertNoError(t, json.Unmarshal(raw, &meta), "decode sidecar")
	testutil.AssertEqual(t, snap.CycleID, meta.CycleID, "cycle id")
	testutil.AssertEqual(t, "en-gb", meta.Voice, "voice")
	testutil.AssertEqual(t, 7, meta.TextChars, "text chars")

	second, err := a.Save("", task)
	testutil.AssertNoError(t, err, "second Save")
	testutil.AssertEqual(t, filepath.Join(a.Config.Output.Dir, "tts-recording-2.webm"), second, "collision-free name")
}

func TestSaveWithoutResult(t *testing.T) {
	a := newTestApp(t, &testutil.FakeEngine{})
	_, err := a.Save(t.TempDir(), synth.Task{})
	if !errors.Is(err, orchestrator.ErrNotReady) {
		t.Fatalf("Save() error = %v, want ErrNotReady", err)
	}
}

func TestVoicesMarksConfiguredDefault(t *testing.T) {
	a := newTestApp(t, &testutil.FakeEngine{VoiceList: []synth.Voice{
		{ID: "en-us", Language: "en-us"},
		{ID: "en-gb", Language: "en-gb"},
	}})
	voices, err := a.Voices(context.Background())
	testutil.AssertNoError(t, err, "Voices")
	testutil.AssertTrue(t, !voices[0].Default && voices[1].Default, "en-gb is default")
}

type silentEngine struct{}

func (silentEngine) Speak(synth.Task, synth.Handlers) error { return nil }
func (silentEngine) Cancel()                                {}

func TestVoicesUnsupportedEngine(t *testing.T) {
	t.Setenv(diaglog.EnvDebug, "")
	a, err := New(testConfig(t), nil, Options{Acquirer: &testutil.FakeAcquirer{}, Recorder: &testutil.FakeRecorder{}, Engine: silentEngine{}})
	testutil.AssertNoError(t, err, "New")
	defer a.Close()
	if _, err := a.Voices(context.Background()); err == nil {
		t.Fatal("expected error for engine without voice listing")
	}
}

func TestDiagLogOpenedWhenDebugEnabled(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(diaglog.EnvDebug, "true")

	a, err := New(testConfig(t), nil, Options{Acquirer: &testutil.FakeAcquirer{}, Recorder: &testutil.FakeRecorder{}, Engine: &testutil.FakeEngine{AutoEnd: true}})
	testutil.AssertNoError(t, err, "New")
	testutil.AssertTrue(t, a.Diag.Enabled(), "diag enabled")

	testutil.AssertNoError(t, a.Orchestrator.Record(synth.Task{Text: "log me", Rate: 1, Pitch: 1}), "Record")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = a.Orchestrator.Await(ctx, orchestrator.Snapshot.Terminal)
	testutil.AssertNoError(t, err, "Await")
	testutil.AssertNoError(t, a.Close(), "Close")

	data, err := os.ReadFile(filepath.Join(home, ".cache", "voicecap", "capture-debug.ndjson"))
	testutil.AssertNoError(t, err, "read diag log")
	testutil.AssertTrue(t, bytes.Contains(data, []byte(`"event":"transition"`)), "transitions logged")
	testutil.AssertTrue(t, !bytes.Contains(data, []byte("log me")), "text never logged")
}
