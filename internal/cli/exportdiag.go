package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiroq/voicecap/internal/diaglog"
	"github.com/tiroq/voicecap/internal/output"
)

func NewExportDiagCmd(deps *Dependencies) *cobra.Command {
	var logPath, dest string

	cmd := &cobra.Command{
		Use:   "export-diag",
		Short: "Bundle the diagnostic log for a bug report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logPath == "" {
				logPath = diaglog.DefaultPath()
			}
			path, n, err := diaglog.Export(logPath, dest)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("%w\nhint: run with %s=true to enable logging", err, diaglog.EnvDebug)
				}
				return err
			}
			output.NewFormatter(deps.Out).Success(fmt.Sprintf("Wrote: %s (%d lines)", path, n))
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "", "Diagnostic log (default ~/.cache/voicecap/capture-debug.ndjson)")
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "Directory to write the bundle into")
	return cmd
}
