package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tiroq/voicecap/internal/capture"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "voicecap")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
	if cfg.Engine.Binary != "espeak-ng" || cfg.Engine.Rate != 1 || cfg.Engine.Pitch != 1 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Capture.Timeslice != 250*time.Millisecond {
		t.Errorf("Timeslice = %s", cfg.Capture.Timeslice)
	}
	if got := cfg.Candidates(); len(got) != 4 || got[0] != "audio/webm;codecs=opus" {
		t.Errorf("Candidates() = %v", got)
	}
	if len(cfg.Capture.Sources) != 1 || !cfg.Capture.Sources[0].Audio {
		t.Errorf("Sources = %+v", cfg.Capture.Sources)
	}
	if cfg.Server.Addr != "127.0.0.1:8765" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	yaml := `
engine:
  binary: /usr/bin/espeak-ng
  default_voice: de
  rate: 1.25
  pitch: 0.5
capture:
  ffmpeg: /opt/ffmpeg
  timeslice: 500ms
  auto_grant: Speakers
  sources:
    - name: Speakers
      format: pulse
      device: alsa_output.pci.monitor
      audio: true
    - name: Webcam
      format: v4l2
      device: /dev/video0
      video: true
recording:
  candidates:
    - audio/webm
server:
  addr: ":9000"
log:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(dir, "voicecap.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasSuffix(cfg.File, "voicecap.yaml") {
		t.Errorf("File = %q", cfg.File)
	}
	if cfg.Engine.DefaultVoice != "de" || cfg.Engine.Rate != 1.25 || cfg.Engine.Pitch != 0.5 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Capture.Timeslice != 500*time.Millisecond || cfg.Capture.AutoGrant != "Speakers" {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	want := capture.Source{Name: "Webcam", Format: "v4l2", Device: "/dev/video0", Video: true}
	if len(cfg.Capture.Sources) != 2 || cfg.Capture.Sources[1] != want {
		t.Errorf("Sources = %+v", cfg.Capture.Sources)
	}
	if got := cfg.Candidates(); len(got) != 1 || got[0] != "audio/webm" {
		t.Errorf("Candidates() = %v", got)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(file, []byte("engine:\n  rate: 0.75\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOICECAP_ENGINE_RATE", "1.5")
	t.Setenv("VOICECAP_LOG_LEVEL", "warn")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Rate != 1.5 {
		t.Errorf("Rate = %g, want env value 1.5", cfg.Engine.Rate)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("VOICECAP_SERVER_ADDR=127.0.0.1:7000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// Registered so the value godotenv sets is removed after the test.
	t.Setenv("VOICECAP_SERVER_ADDR", "")
	os.Unsetenv("VOICECAP_SERVER_ADDR")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("Server.Addr = %q, want value from .env", cfg.Server.Addr)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() of a missing explicit file succeeded")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(file, []byte("engine:\n  pitch: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(file)
	if err == nil || !strings.Contains(err.Error(), "engine.pitch") {
		t.Fatalf("Load() error = %v, want pitch range error", err)
	}
}

func validConfig() *Config {
	return &Config{
		Engine:    EngineConfig{Binary: "espeak-ng", Rate: 1, Pitch: 1},
		Capture:   CaptureConfig{FFmpeg: "ffmpeg", Sources: DefaultSources()},
		Recording: RecordingConfig{Candidates: []string{"audio/webm"}},
		Server:    ServerConfig{Addr: ":8765"},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"rate low", func(c *Config) { c.Engine.Rate = 0.4 }, "engine.rate"},
		{"rate high", func(c *Config) { c.Engine.Rate = 2.1 }, "engine.rate"},
		{"rate bounds", func(c *Config) { c.Engine.Rate = 2 }, ""},
		{"pitch negative", func(c *Config) { c.Engine.Pitch = -0.1 }, "engine.pitch"},
		{"pitch zero", func(c *Config) { c.Engine.Pitch = 0 }, ""},
		{"no engine", func(c *Config) { c.Engine.Binary = "" }, "engine.binary"},
		{"no ffmpeg", func(c *Config) { c.Capture.FFmpeg = "" }, "capture.ffmpeg"},
		{"negative timeslice", func(c *Config) { c.Capture.Timeslice = -time.Second }, "timeslice"},
		{"source without device", func(c *Config) { c.Capture.Sources = []capture.Source{{Name: "x"}} }, "capture.sources[0]"},
		{"duplicate source", func(c *Config) {
			s := capture.Source{Name: "x", Device: "d"}
			c.Capture.Sources = []capture.Source{s, s}
		}, "duplicate"},
		{"unknown auto grant", func(c *Config) { c.Capture.AutoGrant = "nope" }, "auto_grant"},
		{"no candidates", func(c *Config) { c.Recording.Candidates = nil }, "recording.candidates"},
		{"blank candidate", func(c *Config) { c.Recording.Candidates = []string{" "} }, "recording.candidates[0]"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := NewLogger(LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("NewLogger(%s) error = %v", format, err)
		}
		if !log.Core().Enabled(-1) {
			t.Errorf("%s logger does not enable debug", format)
		}
	}
	if _, err := NewLogger(LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("NewLogger() accepted an unknown level")
	}
}
