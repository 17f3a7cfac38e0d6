package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/app"
	"github.com/tiroq/voicecap/internal/output"
	"github.com/tiroq/voicecap/internal/pidfile"
	"github.com/tiroq/voicecap/internal/validation"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)
			cfg := deps.Config

			a, err := deps.NewApp(cfg, deps.Logger, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			var checks []*validation.ValidationResult
			report := func(r *validation.ValidationResult) {
				f.SetupCheck(r.Name, r.OK, r.Message)
				checks = append(checks, r)
			}

			if line, err := validation.ToolVersion(cmd.Context(), cfg.Capture.FFmpeg, "-version"); err != nil {
				report(&validation.ValidationResult{
					Name:    "ffmpeg",
					Message: fmt.Sprintf("not found (%v)", err),
					Fixes:   []string{"Install ffmpeg: apt install ffmpeg, brew install ffmpeg"},
				})
			} else {
				report(validation.ValidateFFmpegVersion(line))
			}

			if line, err := validation.ToolVersion(cmd.Context(), cfg.Engine.Binary, "--version"); err != nil {
				report(&validation.ValidationResult{
					Name:    "espeak-ng",
					Message: fmt.Sprintf("not found (%v)", err),
					Fixes:   []string{"Install espeak-ng: apt install espeak-ng, brew install espeak-ng"},
				})
			} else {
				report(validation.ValidateEspeakVersion(line))
			}

			report(validation.ValidateFormats(cfg.Candidates(), a.Support()))

			state, err := a.Detector.Detect()
			if err != nil {
				deps.Logger.Debug("audio server check failed", zap.Error(err))
			}
			report(validation.ValidateAudioServer(state))

			for _, s := range cfg.Capture.Sources {
				detail := fmt.Sprintf("%s %s", s.Format, s.Device)
				if !s.Audio {
					detail += " (no audio)"
				}
				f.SetupCheck("Source "+s.Name, s.Audio, detail)
			}

			if cfg.File != "" {
				f.SetupCheck("Config", true, cfg.File)
			} else {
				f.SetupCheck("Config", true, "defaults (no voicecap.yaml found)")
			}
			if pid, ok := pidfile.Running(pidfile.Path(daemonName)); ok {
				f.SetupCheck("Daemon", true, fmt.Sprintf("running (pid %d)", pid))
			}
			f.SetupCheck("Output directory", true, cfg.Output.Dir)

			summary := validation.Summarize(checks...)
			for _, w := range summary.Warnings {
				f.Warning(w)
			}
			if summary.OK {
				f.Success("\nAll prerequisites met. Ready to record!")
			} else {
				f.Warning("\nSome prerequisites are missing.")
				f.Fixes(summary.Fixes)
			}
			return nil
		},
	}
}
