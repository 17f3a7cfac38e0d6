package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiroq/voicecap/internal/app"
	"github.com/tiroq/voicecap/internal/output"
	"github.com/tiroq/voicecap/internal/server"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API and WebSocket feed",
		Long: "Serve record, speak and stop controls over HTTP, stream state over /ws and offer the\n" +
			"ready recording at /download/{id}. Capture uses capture.auto_grant or the first source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(deps.Out)
			if addr == "" {
				addr = deps.Config.Server.Addr
			}

			a, err := deps.NewApp(deps.Config, deps.Logger, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(server.Config{
				Controller: a.Orchestrator,
				Blobs:      a.Blobs,
				Voices:     a,
				Defaults:   a.Defaults(),
				Logger:     deps.Logger.Named("server"),
				Diag:       a.Diag,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			formatter.Info("Serving on http://" + addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default server.addr)")
	return cmd
}
