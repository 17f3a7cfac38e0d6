// Package app assembles the capture pipeline from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/blobstore"
	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/config"
	"github.com/tiroq/voicecap/internal/detector"
	"github.com/tiroq/voicecap/internal/diaglog"
	"github.com/tiroq/voicecap/internal/fileutil"
	"github.com/tiroq/voicecap/internal/format"
	"github.com/tiroq/voicecap/internal/orchestrator"
	"github.com/tiroq/voicecap/internal/recorder"
	"github.com/tiroq/voicecap/internal/synth"
	"github.com/tiroq/voicecap/internal/version"
)

// Options replaces pieces of the pipeline. Zero values select the
// configured ffmpeg, espeak-ng and capture sources.
type Options struct {
	Prompter capture.Prompter
	Acquirer orchestrator.Acquirer
	Recorder recorder.Recorder
	Engine   synth.Engine
	Diag     *diaglog.Logger
}

type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Diag         *diaglog.Logger
	Blobs        *blobstore.Store
	Detector     detector.Detector
	Recorder     recorder.Recorder
	Engine       synth.Engine
	Orchestrator *orchestrator.Orchestrator

	ownsDiag bool
}

func New(cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		Config:   cfg,
		Logger:   log,
		Blobs:    blobstore.New(),
		Detector: detector.NewAudioServerDetector(detector.NewProcessDetection(), nil),
		Diag:     opts.Diag,
	}

	if a.Diag == nil {
		a.Diag = diaglog.NewNoOp()
		if diaglog.IsDebugEnabled() {
			d, err := diaglog.New(diaglog.DefaultPath())
			if err != nil {
				log.Warn("could not open diagnostic log, continuing", zap.String("path", diaglog.DefaultPath()), zap.Error(err))
			} else {
				a.Diag = d
				a.ownsDiag = true
			}
		}
	}

	a.Recorder = opts.Recorder
	if a.Recorder == nil {
		ff := recorder.NewFFmpegRecorder(cfg.Capture.FFmpeg, log.Named("recorder"))
		ff.Timeslice = cfg.Capture.Timeslice
		a.Recorder = ff
	}

	a.Engine = opts.Engine
	if a.Engine == nil {
		a.Engine = synth.NewEspeakEngine(cfg.Engine.Binary, log.Named("synth"))
	}

	acquirer := opts.Acquirer
	if acquirer == nil {
		prompter := opts.Prompter
		if prompter == nil || cfg.Capture.AutoGrant != "" {
			prompter = capture.AutoGrant{Name: cfg.Capture.AutoGrant}
		}
		video := false
		for _, s := range cfg.Capture.Sources {
			video = video || s.Video
		}
		acquirer = capture.NewAcquirer(
			capture.NewSourceProvider(cfg.Capture.Sources, prompter),
			capture.WithEnvironmentCheck(capture.CheckEnvironment(cfg.Capture.FFmpeg, a.Detector)),
			capture.WithVideo(video),
			capture.WithLogger(log.Named("capture")),
		)
	}

	candidates := cfg.Candidates()
	sessionLog := log.Named("session")
	a.Orchestrator = orchestrator.New(orchestrator.Config{
		Acquirer: acquirer,
		NewSession: func() orchestrator.Session {
			return recorder.NewSession(a.Recorder, candidates, sessionLog)
		},
		Speaker: synth.NewBridge(a.Engine, log.Named("bridge")),
		Blobs:   a.Blobs,
		Logger:  log.Named("orchestrator"),
		Diag:    a.Diag,
	})
	return a, nil
}

// Defaults returns the configured voice, rate and pitch.
func (a *App) Defaults() synth.Task {
	return synth.Task{
		Voice: a.Config.Engine.DefaultVoice,
		Rate:  a.Config.Engine.Rate,
		Pitch: a.Config.Engine.Pitch,
	}
}

// Task resolves req against the configured defaults and checks its ranges.
func (a *App) Task(req synth.Request) (synth.Task, error) {
	return req.Resolve(a.Defaults())
}

// Save writes the ready result into dir, or the configured output directory
// when dir is empty, with a metadata sidecar describing task.
func (a *App) Save(dir string, task synth.Task) (string, error) {
	if dir == "" {
		dir = a.Config.Output.Dir
	}
	result, _, err := a.Orchestrator.Result()
	if err != nil {
		return "", err
	}
	meta := &fileutil.RecordingMetadata{
		Version:   version.Version,
		CycleID:   a.Orchestrator.Snapshot().CycleID,
		Voice:     task.Voice,
		Rate:      task.Rate,
		Pitch:     task.Pitch,
		TextChars: len([]rune(task.Text)),
	}
	path, err := fileutil.SaveResult(dir, orchestrator.SuggestedBaseName, result, meta)
	if err != nil {
		return path, err
	}
	a.Logger.Info("recording saved", zap.String("path", path), zap.Int("bytes", result.Len()))
	return path, nil
}

// Voices lists engine voices with the configured default flagged.
func (a *App) Voices(ctx context.Context) ([]synth.Voice, error) {
	lister, ok := a.Engine.(synth.VoiceLister)
	if !ok {
		return nil, fmt.Errorf("speech engine cannot list voices")
	}
	voices, err := lister.Voices(ctx)
	if err != nil {
		return nil, err
	}
	synth.MarkDefault(voices, a.Config.Engine.DefaultVoice)
	return voices, nil
}

// Support reports the recorder's format support, for doctor.
func (a *App) Support() format.Support {
	return a.Recorder
}

func (a *App) Close() error {
	err := a.Orchestrator.Close()
	if a.ownsDiag {
		if cerr := a.Diag.Close(); err == nil {
			err = cerr
		}
	}
	_ = a.Logger.Sync()
	return err
}
