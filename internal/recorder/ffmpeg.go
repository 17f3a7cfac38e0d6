package recorder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/format"
)

const (
	defaultChunkSize   = 16 * 1024
	defaultStopTimeout = 5 * time.Second
)

// ErrNotStarted is returned by FFmpegRecorder.Stop when nothing is running.
var ErrNotStarted = errors.New("recorder not started")

// codecEncoders maps MIME codec names to ffmpeg encoder names.
var codecEncoders = map[string]string{
	"opus":   "libopus",
	"vorbis": "libvorbis",
	"vp8":    "libvpx",
	"vp9":    "libvpx-vp9",
}

// muxers maps container MIME types to ffmpeg output formats.
var muxers = map[string]string{
	"audio/webm": "webm",
	"video/webm": "webm",
	"audio/ogg":  "ogg",
}

// FFmpegRecorder encodes a capture source with an ffmpeg child process and
// delivers its stdout as fragments. One recorder runs one encode at a time.
type FFmpegRecorder struct {
	Binary      string
	ChunkSize   int
	StopTimeout time.Duration
	// Timeslice bounds the WebM cluster length so fragments arrive steadily.
	Timeslice time.Duration
	Logger    *zap.Logger

	encodersOnce sync.Once
	encoders     map[string]bool
	listEncoders func() ([]byte, error)

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	done   chan struct{}
	stderr *bytes.Buffer
}

// NewFFmpegRecorder returns a recorder running the ffmpeg binary at path.
func NewFFmpegRecorder(path string, log *zap.Logger) *FFmpegRecorder {
	if path == "" {
		path = "ffmpeg"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpegRecorder{
		Binary:      path,
		ChunkSize:   defaultChunkSize,
		StopTimeout: defaultStopTimeout,
		Logger:      log,
	}
}

// IsTypeSupported reports whether ffmpeg can mux the container and encode
// every codec named by mime. Encoders are listed once per recorder.
func (r *FFmpegRecorder) IsTypeSupported(mime string) bool {
	enc := format.Encoding(mime)
	if _, ok := muxers[enc.Container()]; !ok {
		return false
	}
	r.encodersOnce.Do(r.loadEncoders)
	for _, codec := range codecsFor(enc) {
		name, ok := codecEncoders[codec]
		if !ok || !r.encoders[name] {
			return false
		}
	}
	return true
}

func (r *FFmpegRecorder) loadEncoders() {
	list := r.listEncoders
	if list == nil {
		list = func() ([]byte, error) {
			return exec.Command(r.Binary, "-hide_banner", "-encoders").Output()
		}
	}
	out, err := list()
	if err != nil {
		r.Logger.Warn("ffmpeg encoder listing failed", zap.String("binary", r.Binary), zap.Error(err))
		r.encoders = map[string]bool{}
		return
	}
	r.encoders = ParseEncoders(out)
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output.
// Listing lines look like " A....D libopus   libopus Opus".
func ParseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	listing := false
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !listing {
			// The legend ends with a " ------" separator line.
			listing = strings.HasPrefix(fields[0], "---")
			continue
		}
		if len(fields) >= 2 && len(fields[0]) == 6 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// codecsFor returns the codecs named by enc, or the container defaults.
func codecsFor(enc format.Encoding) []string {
	if codecs := enc.Codecs(); len(codecs) > 0 {
		return codecs
	}
	switch enc.Container() {
	case "video/webm":
		return []string{"vp8", "opus"}
	case "audio/ogg":
		return []string{"opus"}
	default:
		return []string{"opus"}
	}
}

// Args builds the ffmpeg argument list encoding stream with enc to stdout.
func Args(stream capture.Stream, enc format.Encoding, timeslice time.Duration) []string {
	src := stream.Source()
	args := []string{"-hide_banner", "-loglevel", "error", "-nostats"}
	if src.Format != "" {
		args = append(args, "-f", src.Format)
	}
	args = append(args, "-i", src.Device)

	var hasVideo bool
	for _, t := range stream.Tracks() {
		if t.Kind == capture.KindVideo {
			hasVideo = true
		}
	}
	for _, codec := range codecsFor(enc) {
		name := codecEncoders[codec]
		switch codec {
		case "opus", "vorbis":
			args = append(args, "-c:a", name)
		case "vp8", "vp9":
			if hasVideo {
				args = append(args, "-c:v", name, "-deadline", "realtime")
			}
		}
	}
	if !hasVideo {
		args = append(args, "-vn")
	}
	if timeslice > 0 {
		args = append(args, "-flush_packets", "1")
		if muxers[enc.Container()] == "webm" {
			args = append(args, "-cluster_time_limit", strconv.FormatInt(timeslice.Milliseconds(), 10))
		}
	}
	return append(args, "-f", muxers[enc.Container()], "pipe:1")
}

// Start launches ffmpeg bound to the stream's context, so releasing the
// stream also ends the encode.
func (r *FFmpegRecorder) Start(stream capture.Stream, enc format.Encoding, onFragment FragmentFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return ErrAlreadyRecording
	}

	cmd := exec.CommandContext(stream.Context(), r.Binary, Args(stream, enc, r.Timeslice)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	r.Logger.Debug("ffmpeg started", zap.Int("pid", cmd.Process.Pid), zap.Strings("args", cmd.Args))

	done := make(chan struct{})
	go r.pump(stdout, onFragment, done)

	r.cmd = cmd
	r.stdin = stdin
	r.done = done
	r.stderr = stderr
	return nil
}

func (r *FFmpegRecorder) pump(stdout io.Reader, onFragment FragmentFunc, done chan struct{}) {
	defer close(done)
	size := r.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	buf := make([]byte, size)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			onFragment(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.Logger.Debug("ffmpeg stdout closed", zap.Error(err))
			}
			return
		}
	}
}

// Stop asks ffmpeg to finish ("q" on stdin), waits for stdout to drain and
// reaps the process. ffmpeg is killed if it does not exit within StopTimeout.
func (r *FFmpegRecorder) Stop() error {
	r.mu.Lock()
	cmd, stdin, done, stderr := r.cmd, r.stdin, r.done, r.stderr
	r.cmd, r.stdin, r.done, r.stderr = nil, nil, nil, nil
	r.mu.Unlock()
	if cmd == nil {
		return ErrNotStarted
	}

	_, _ = io.WriteString(stdin, "q")
	_ = stdin.Close()

	timeout := r.StopTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	select {
	case <-done:
	case <-time.After(timeout):
		r.Logger.Warn("ffmpeg did not exit, killing", zap.Int("pid", cmd.Process.Pid))
		_ = cmd.Process.Kill()
		<-done
	}

	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg exited: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg exited: %w", err)
	}
	return nil
}
