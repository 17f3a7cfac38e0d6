package cli

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiroq/voicecap/internal/app"
	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/orchestrator"
	"github.com/tiroq/voicecap/internal/output"
	"github.com/tiroq/voicecap/internal/statemachine"
	"github.com/tiroq/voicecap/internal/validation"
)

var errNoPromptTerminal = errors.New("text was read from stdin and no terminal is available to choose a capture source; pass --yes to use capture.auto_grant")

func openTTY(deps *Dependencies) (io.ReadCloser, error) {
	if deps.OpenTTY == nil {
		return nil, errors.New("no terminal")
	}
	return deps.OpenTTY()
}

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var tf taskFlags
	var outDir string
	var yes bool

	cmd := &cobra.Command{
		Use:   "record [text...]",
		Short: "Speak text and record it to a file",
		Long: "Ask for a capture source, speak the text while recording the source, and save the result.\n" +
			"Ctrl+C stops speech early; the recording so far is still saved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(deps.Out)

			text, err := textArg(args, deps.In)
			if err != nil {
				return err
			}
			req, err := tf.request(cmd, text)
			if err != nil {
				return err
			}

			opts := app.Options{}
			if !yes {
				promptIn := deps.In
				if len(args) == 0 {
					// stdin held the text, so ask on the terminal
					tty, err := openTTY(deps)
					if err != nil {
						return errNoPromptTerminal
					}
					defer tty.Close()
					promptIn = tty
				}
				opts.Prompter = capture.NewTerminalPrompt(promptIn, deps.Err)
			}
			a, err := deps.NewApp(deps.Config, deps.Logger, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			updates, cancel := a.Orchestrator.Subscribe()
			defer cancel()

			task, err := a.Task(req)
			if err != nil {
				return err
			}
			if err := a.Orchestrator.Record(task); err != nil {
				return errors.New(orchestrator.Describe(err))
			}
			formatter.Speaking(text)

			interrupt := ctx.Done()
			last := statemachine.Idle
			var final orchestrator.Snapshot
		wait:
			for {
				select {
				case snap, ok := <-updates:
					if !ok {
						return orchestrator.ErrClosed
					}
					if snap.State != last {
						formatter.Progress(snap.State)
						last = snap.State
					}
					if snap.Terminal() {
						final = snap
						break wait
					}
				case <-interrupt:
					interrupt = nil
					_ = a.Orchestrator.Stop()
				}
			}

			if final.State == statemachine.Failed {
				cycleErr := a.Orchestrator.Err()
				formatter.Fixes(validation.SuggestedFixes(cycleErr))
				return errors.New(orchestrator.Describe(cycleErr))
			}

			path, err := a.Save(outDir, task)
			if err != nil {
				return err
			}
			formatter.Saved(path, final.Bytes, final.Duration)
			return nil
		},
	}

	tf.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default output.dir)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Grant capture.auto_grant (or the first source) without prompting")
	return cmd
}
