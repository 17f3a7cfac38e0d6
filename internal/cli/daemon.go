package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/app"
	"github.com/tiroq/voicecap/internal/ipc"
	"github.com/tiroq/voicecap/internal/orchestrator"
	"github.com/tiroq/voicecap/internal/pidfile"
	"github.com/tiroq/voicecap/internal/statemachine"
	"github.com/tiroq/voicecap/internal/synth"
)

func NewDaemonCmd(deps *Dependencies) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run in the background, controlled with 'voicecap ctl'",
		Long: "Watch ~/.cache/voicecap/cmd.json for commands and publish state to status.json after\n" +
			"every transition. Capture uses capture.auto_grant or the first source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = ipc.DefaultDir()
			}
			log := deps.Logger.Named("daemon")

			pidPath := pidfile.Path(daemonName)
			pf, err := pidfile.New(pidPath)
			if err != nil {
				return fmt.Errorf("%w (if no other instance is running, remove %s)", err, pidPath)
			}
			defer func() {
				if err := pf.Remove(); err != nil {
					log.Warn("failed to remove PID file", zap.Error(err))
				}
			}()

			a, err := deps.NewApp(deps.Config, deps.Logger, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, quit := context.WithCancel(ctx)
			defer quit()

			d := &daemon{app: a, dir: dir, log: log, quit: quit}
			d.status.PID = os.Getpid()
			d.publish(a.Orchestrator.Snapshot())

			updates, cancel := a.Orchestrator.Subscribe()
			defer cancel()
			go func() {
				for snap := range updates {
					d.publish(snap)
				}
			}()

			log.Info("daemon started", zap.Int("pid", d.status.PID), zap.String("dir", dir))
			watcher := ipc.NewWatcher(dir, log.Named("ipc"))
			err = watcher.Run(ctx, d.handle)

			log.Info("shutting down")
			if a.Orchestrator.Snapshot().State.Active() {
				_ = a.Orchestrator.Teardown()
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Command and status directory (default ~/.cache/voicecap)")
	return cmd
}

// daemon applies ipc commands to the orchestrator and mirrors its state into
// status.json.
type daemon struct {
	app  *app.App
	dir  string
	log  *zap.Logger
	quit context.CancelFunc

	mu       sync.Mutex
	status   ipc.StatusSnapshot
	lastTask synth.Task
}

func (d *daemon) handle(cmd ipc.Command) {
	var (
		err   error
		saved string
	)
	switch cmd.Action {
	case ipc.ActRecord, ipc.ActSpeak:
		var task synth.Task
		task, err = d.task(cmd.Task)
		if err != nil {
			break
		}
		if cmd.Action == ipc.ActRecord {
			err = d.app.Orchestrator.Record(task)
		} else {
			err = d.app.Orchestrator.Speak(task)
		}
		if err == nil {
			d.mu.Lock()
			d.lastTask = task
			d.mu.Unlock()
		}
	case ipc.ActStop:
		err = d.app.Orchestrator.Stop()
	case ipc.ActSave:
		d.mu.Lock()
		task := d.lastTask
		d.mu.Unlock()
		saved, err = d.app.Save(cmd.Dir, task)
	case ipc.ActQuit:
		d.quit()
	}

	if err != nil {
		d.log.Warn("command failed", zap.String("action", string(cmd.Action)), zap.Error(err))
	}

	d.mu.Lock()
	d.status.LastAction = cmd.Action
	d.status.LastError = orchestrator.Describe(err)
	if saved != "" {
		d.status.SavedFile = saved
	}
	d.mu.Unlock()
	d.publish(d.app.Orchestrator.Snapshot())
}

func (d *daemon) task(req *synth.Request) (synth.Task, error) {
	if req == nil {
		req = &synth.Request{}
	}
	return d.app.Task(*req)
}

func (d *daemon) publish(snap orchestrator.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if snap.UpdatedAt.Before(d.status.Capture.UpdatedAt) {
		return
	}
	d.status.Capture = snap
	if snap.State == statemachine.Failed && snap.Error != "" {
		d.status.LastError = snap.Error
	}
	d.status.Timestamp = time.Now()
	if err := ipc.WriteStatus(d.dir, &d.status); err != nil {
		d.log.Error("failed to write status", zap.Error(err))
	}
}
