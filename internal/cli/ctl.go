package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiroq/voicecap/internal/ipc"
	"github.com/tiroq/voicecap/internal/output"
	"github.com/tiroq/voicecap/internal/pidfile"
)

// errDaemonNotRunning is returned by ctl when no daemon holds the PID file.
var errDaemonNotRunning = errors.New("voicecap daemon is not running (start it with 'voicecap daemon')")

func NewCtlCmd(deps *Dependencies) *cobra.Command {
	var dir string

	ctl := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running daemon",
	}
	ctl.PersistentFlags().StringVar(&dir, "dir", "", "Command and status directory (default ~/.cache/voicecap)")

	ipcDir := func() string {
		if dir == "" {
			return ipc.DefaultDir()
		}
		return dir
	}

	send := func(cmd ipc.Command) error {
		if _, ok := pidfile.Running(pidfile.Path(daemonName)); !ok {
			return errDaemonNotRunning
		}
		if err := ipc.WriteCommand(ipcDir(), cmd); err != nil {
			return fmt.Errorf("sending %s: %w", cmd.Action, err)
		}
		output.NewFormatter(deps.Out).Success(fmt.Sprintf("Sent %s", cmd.Action))
		return nil
	}

	taskCmd := func(action ipc.Action, short string) *cobra.Command {
		var tf taskFlags
		c := &cobra.Command{
			Use:   string(action) + " [text...]",
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				text, err := textArg(args, deps.In)
				if err != nil {
					return err
				}
				req, err := tf.request(cmd, text)
				if err != nil {
					return err
				}
				return send(ipc.Command{Action: action, Task: &req})
			},
		}
		tf.register(c)
		return c
	}

	simpleCmd := func(action ipc.Action, short string) *cobra.Command {
		return &cobra.Command{
			Use:   string(action),
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(ipc.Command{Action: action})
			},
		}
	}

	var saveDir string
	save := &cobra.Command{
		Use:   "save",
		Short: "Save the ready recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(ipc.Command{Action: ipc.ActSave, Dir: saveDir})
		},
	}
	save.Flags().StringVarP(&saveDir, "out", "o", "", "Output directory (default output.dir)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's last published state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ipc.ReadStatus(ipcDir())
			if err != nil {
				if os.IsNotExist(err) {
					return errDaemonNotRunning
				}
				return fmt.Errorf("reading status: %w", err)
			}
			formatter := output.NewFormatter(deps.Out)
			if _, ok := pidfile.Running(pidfile.Path(daemonName)); !ok {
				formatter.Warning("Daemon is not running; showing its last status")
			}
			formatter.DaemonStatus(st)
			return nil
		},
	}

	ctl.AddCommand(
		taskCmd(ipc.ActRecord, "Speak and record text"),
		taskCmd(ipc.ActSpeak, "Speak text without recording"),
		simpleCmd(ipc.ActStop, "Stop the current utterance or recording"),
		save,
		simpleCmd(ipc.ActQuit, "Shut the daemon down"),
		status,
	)
	return ctl
}
