// Package config loads voicecap settings from voicecap.yaml, VOICECAP_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/format"
	"github.com/tiroq/voicecap/internal/synth"
)

// EnvPrefix prefixes environment overrides, e.g. VOICECAP_ENGINE_RATE.
const EnvPrefix = "VOICECAP"

// Config holds all voicecap configuration.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Recording RecordingConfig `mapstructure:"recording"`
	Server    ServerConfig    `mapstructure:"server"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// EngineConfig selects the speech engine and utterance defaults.
type EngineConfig struct {
	Binary       string  `mapstructure:"binary"`
	DefaultVoice string  `mapstructure:"default_voice"`
	Rate         float64 `mapstructure:"rate"`
	Pitch        float64 `mapstructure:"pitch"`
}

// CaptureConfig describes capture sources and consent.
type CaptureConfig struct {
	FFmpeg string           `mapstructure:"ffmpeg"`
	Sources []capture.Source `mapstructure:"sources"`
	// AutoGrant names a source that is granted without prompting.
	AutoGrant string `mapstructure:"auto_grant"`
	// Timeslice is the target interval between recorder fragments.
	Timeslice time.Duration `mapstructure:"timeslice"`
}

// RecordingConfig holds the ordered encoding candidates.
type RecordingConfig struct {
	Candidates []string `mapstructure:"candidates"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.binary", "espeak-ng")
	v.SetDefault("engine.default_voice", "")
	v.SetDefault("engine.rate", 1.0)
	v.SetDefault("engine.pitch", 1.0)
	v.SetDefault("capture.ffmpeg", "ffmpeg")
	v.SetDefault("capture.auto_grant", "")
	v.SetDefault("capture.timeslice", 250*time.Millisecond)
	candidates := make([]string, len(format.DefaultCandidates))
	for i, c := range format.DefaultCandidates {
		candidates[i] = string(c)
	}
	v.SetDefault("recording.candidates", candidates)
	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("output.dir", defaultOutputDir())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration. An explicit file must exist; otherwise
// voicecap.yaml is looked up in the config directory and the working
// directory, and a missing file is not an error. Environment variables
// override file values, and a .env file in the working directory or the
// config directory is loaded first without replacing variables already set.
func Load(file string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("voicecap")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if len(cfg.Capture.Sources) == 0 {
		cfg.Capture.Sources = DefaultSources()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() {
	for _, path := range []string{".env", filepath.Join(Dir(), ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if c.Engine.Binary == "" {
		return errors.New("engine.binary must be set")
	}
	if err := (synth.Task{Rate: c.Engine.Rate, Pitch: synth.MinPitch}).Validate(); err != nil {
		return fmt.Errorf("engine.rate: %w", err)
	}
	if err := (synth.Task{Rate: synth.MinRate, Pitch: c.Engine.Pitch}).Validate(); err != nil {
		return fmt.Errorf("engine.pitch: %w", err)
	}
	if c.Capture.FFmpeg == "" {
		return errors.New("capture.ffmpeg must be set")
	}
	if c.Capture.Timeslice < 0 {
		return fmt.Errorf("capture.timeslice must not be negative, got %s", c.Capture.Timeslice)
	}

	names := make(map[string]bool, len(c.Capture.Sources))
	for i, s := range c.Capture.Sources {
		if s.Name == "" || s.Device == "" {
			return fmt.Errorf("capture.sources[%d] needs a name and a device", i)
		}
		if names[s.Name] {
			return fmt.Errorf("capture.sources: duplicate source name %q", s.Name)
		}
		names[s.Name] = true
	}
	if c.Capture.AutoGrant != "" && !names[c.Capture.AutoGrant] {
		return fmt.Errorf("capture.auto_grant names unknown source %q", c.Capture.AutoGrant)
	}

	if len(c.Recording.Candidates) == 0 {
		return errors.New("recording.candidates must list at least one encoding")
	}
	for i, cand := range c.Recording.Candidates {
		if strings.TrimSpace(cand) == "" {
			return fmt.Errorf("recording.candidates[%d] is empty", i)
		}
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Candidates returns the encoding candidates in order.
func (c *Config) Candidates() []format.Encoding {
	out := make([]format.Encoding, len(c.Recording.Candidates))
	for i, cand := range c.Recording.Candidates {
		out[i] = format.Encoding(strings.TrimSpace(cand))
	}
	return out
}

// DefaultSources returns the platform's default loopback source.
func DefaultSources() []capture.Source {
	switch runtime.GOOS {
	case "darwin":
		return []capture.Source{{Name: "System audio", Format: "avfoundation", Device: ":0", Audio: true}}
	case "windows":
		return []capture.Source{{Name: "Stereo Mix", Format: "dshow", Device: "audio=Stereo Mix", Audio: true}}
	default:
		return []capture.Source{{Name: "Default monitor", Format: "pulse", Device: "@DEFAULT_MONITOR@", Audio: true}}
	}
}

// Dir returns $XDG_CONFIG_HOME/voicecap, falling back to ~/.config/voicecap.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "voicecap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "voicecap")
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Music", "voicecap")
}
