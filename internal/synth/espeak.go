package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	espeakBaseWPM   = 175
	espeakBasePitch = 50
)

// ErrCancelled is reported to OnError when Cancel interrupts an utterance.
var ErrCancelled = errors.New("speech cancelled")

// EspeakEngine speaks through the espeak-ng command line on the default
// audio output.
type EspeakEngine struct {
	Binary string
	Logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewEspeakEngine returns an engine running the binary at path.
func NewEspeakEngine(path string, log *zap.Logger) *EspeakEngine {
	if path == "" {
		path = "espeak-ng"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EspeakEngine{Binary: path, Logger: log}
}

// EspeakArgs maps a task onto espeak-ng flags. Rate 1 is 175 words per
// minute and pitch 1 is espeak's default of 50. The text is read from stdin.
func EspeakArgs(task Task) []string {
	wpm := int(math.Round(espeakBaseWPM * task.Rate))
	if wpm < 1 {
		wpm = 1
	}
	pitch := int(math.Round(espeakBasePitch * task.Pitch))
	pitch = min(max(pitch, 0), 99)

	args := []string{"-s", strconv.Itoa(wpm), "-p", strconv.Itoa(pitch)}
	if task.Voice != "" {
		args = append(args, "-v", task.Voice)
	}
	return append(args, "--stdin")
}

// Speak starts espeak-ng and returns. The handlers fire when the process
// exits.
func (e *EspeakEngine) Speak(task Task, h Handlers) error {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, e.Binary, EspeakArgs(task)...)
	cmd.Stdin = strings.NewReader(task.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", e.Binary, err)
	}

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	e.Logger.Debug("espeak started", zap.Int("pid", cmd.Process.Pid), zap.String("voice", task.Voice))

	go func() {
		err := cmd.Wait()
		cancelled := ctx.Err() != nil
		cancel()
		switch {
		case cancelled:
			h.OnError(ErrCancelled)
		case err != nil:
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
			h.OnError(fmt.Errorf("espeak-ng: %w", err))
		default:
			h.OnEnd()
		}
	}()
	return nil
}

// Cancel kills the running utterance, if any.
func (e *EspeakEngine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Voices lists installed voices via `espeak-ng --voices`.
func (e *EspeakEngine) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, e.Binary, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return ParseEspeakVoices(out), nil
}
