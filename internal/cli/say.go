package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiroq/voicecap/internal/app"
	"github.com/tiroq/voicecap/internal/orchestrator"
	"github.com/tiroq/voicecap/internal/output"
)

func NewSayCmd(deps *Dependencies) *cobra.Command {
	var tf taskFlags

	cmd := &cobra.Command{
		Use:   "say [text...]",
		Short: "Speak text without recording",
		Long:  "Speak the given text, or stdin when no text is given. Ctrl+C stops the utterance.",
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

			a, err := deps.NewApp(deps.Config, deps.Logger, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			task, err := a.Task(req)
			if err != nil {
				return err
			}
			if err := a.Orchestrator.Speak(task); err != nil {
				return errors.New(orchestrator.Describe(err))
			}
			formatter.Speaking(text)

			if _, err := a.Orchestrator.Await(ctx, func(s orchestrator.Snapshot) bool { return !s.Speaking }); err != nil {
				if ctx.Err() != nil {
					_ = a.Orchestrator.Stop()
					formatter.Info("Stopped")
					return nil
				}
				return err
			}
			return nil
		},
	}

	tf.register(cmd)
	return cmd
}
