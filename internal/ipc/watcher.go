package ipc

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultPollInterval is the fallback check period when fsnotify events are
// missed or unavailable.
const DefaultPollInterval = time.Second

// Handler receives each command read from the command file.
type Handler func(Command)

// Watcher delivers commands written to dir/cmd.json.
type Watcher struct {
	Dir          string
	PollInterval time.Duration
	Logger       *zap.Logger

	// newWatcher is swapped in tests to force the polling path.
	newWatcher func() (*fsnotify.Watcher, error)
}

// NewWatcher returns a Watcher on dir.
func NewWatcher(dir string, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		Dir:          dir,
		PollInterval: DefaultPollInterval,
		Logger:       log,
		newWatcher:   fsnotify.NewWatcher,
	}
}

// Run blocks until ctx is done, calling handle for every command. It uses
// fsnotify on the directory and falls back to polling when watching fails.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}

	// A command left over from before startup is consumed first.
	w.consume(handle)

	fw, err := w.newWatcher()
	if err != nil {
		w.Logger.Warn("fsnotify not available, falling back to polling", zap.Error(err))
		return w.poll(ctx, handle)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			w.Logger.Warn("failed to close watcher", zap.Error(err))
		}
	}()

	if err := fw.Add(w.Dir); err != nil {
		w.Logger.Warn("failed to watch command directory, falling back to polling", zap.Error(err))
		return w.poll(ctx, handle)
	}
	w.Logger.Debug("command watcher started", zap.String("dir", w.Dir))

	cmdPath := CommandPath(w.Dir)
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				w.Logger.Info("fsnotify watcher closed, switching to polling")
				return w.poll(ctx, handle)
			}
			if event.Name == cmdPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.consume(handle)
			}
		case err, ok := <-fw.Errors:
			if ok {
				w.Logger.Warn("fsnotify error", zap.Error(err))
			}
		case <-ticker.C:
			w.consume(handle)
		}
	}
}

func (w *Watcher) poll(ctx context.Context, handle Handler) error {
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.consume(handle)
		}
	}
}

func (w *Watcher) consume(handle Handler) {
	cmd, err := ReadCommand(w.Dir)
	if err != nil {
		if errors.Is(err, ErrInvalidCommand) {
			w.Logger.Warn("ignoring invalid command", zap.Error(err))
		} else {
			w.Logger.Error("read command", zap.Error(err))
		}
		return
	}
	if cmd == nil {
		return
	}
	w.Logger.Debug("command received", zap.String("action", string(cmd.Action)))
	handle(*cmd)
}

func (w *Watcher) interval() time.Duration {
	if w.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return w.PollInterval
}
