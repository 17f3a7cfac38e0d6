// Package synth drives a speech engine and reduces its end/error signals to
// exactly one settlement per utterance.
package synth

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrSuperseded settles a task replaced by a newer Speak call.
	ErrSuperseded = errors.New("speech superseded")
	// ErrUserStopped settles a task ended by Stop.
	ErrUserStopped = errors.New("speech stopped by user")
)

// Status is the terminal status of a task.
type Status string

const (
	Completed Status = "completed"
	Errored   Status = "errored"
)

// Outcome is the single settlement of a task. Err is set when Status is
// Errored.
type Outcome struct {
	Status Status
	Err    error
}

// Interrupted reports whether the outcome came from Stop or supersession
// rather than an engine failure.
func (o Outcome) Interrupted() bool {
	return errors.Is(o.Err, ErrSuperseded) || errors.Is(o.Err, ErrUserStopped)
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s(%v)", o.Status, o.Err)
	}
	return string(o.Status)
}

// Handlers receive the engine's terminal signals for one utterance. Engines
// may call them from any goroutine, more than once, or both.
type Handlers struct {
	OnEnd   func()
	OnError func(error)
}

// Engine is the speech engine boundary. Speak starts an utterance and
// returns; Cancel ends the current utterance immediately.
type Engine interface {
	Speak(task Task, h Handlers) error
	Cancel()
}

type pending struct {
	task      Task
	once      sync.Once
	onSettled func(Outcome)
}

func (p *pending) settle(o Outcome) bool {
	settled := false
	p.once.Do(func() {
		settled = true
		if p.onSettled != nil {
			p.onSettled(o)
		}
	})
	return settled
}

// Bridge holds at most one active task.
type Bridge struct {
	engine Engine
	log    *zap.Logger

	mu     sync.Mutex
	active *pending
}

// NewBridge wraps engine.
func NewBridge(engine Engine, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{engine: engine, log: log}
}

// Speak starts task. An outstanding task is settled as Errored(ErrSuperseded)
// before the new one starts. onSettled is called exactly once, never with the
// bridge lock held.
func (b *Bridge) Speak(task Task, onSettled func(Outcome)) {
	p := &pending{task: task, onSettled: onSettled}

	b.mu.Lock()
	prev := b.active
	b.active = p
	b.mu.Unlock()

	if prev != nil {
		prev.settle(Outcome{Status: Errored, Err: ErrSuperseded})
		b.engine.Cancel()
		b.log.Debug("speech superseded")
	}

	h := Handlers{
		OnEnd: func() { b.finish(p, Outcome{Status: Completed}) },
		OnError: func(err error) {
			if err == nil {
				err = errors.New("speech engine error")
			}
			b.finish(p, Outcome{Status: Errored, Err: err})
		},
	}
	if err := b.engine.Speak(task, h); err != nil {
		b.finish(p, Outcome{Status: Errored, Err: fmt.Errorf("start speech: %w", err)})
	}
}

// Stop settles the active task as Errored(ErrUserStopped) and cancels the
// engine. It reports whether a task was active.
func (b *Bridge) Stop() bool {
	b.mu.Lock()
	p := b.active
	b.active = nil
	b.mu.Unlock()
	if p == nil {
		return false
	}
	p.settle(Outcome{Status: Errored, Err: ErrUserStopped})
	b.engine.Cancel()
	return true
}

// Active reports whether a task is outstanding.
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil
}

func (b *Bridge) finish(p *pending, o Outcome) {
	b.mu.Lock()
	if b.active == p {
		b.active = nil
	}
	b.mu.Unlock()
	if !p.settle(o) {
		b.log.Debug("late speech signal ignored", zap.Stringer("outcome", o))
	}
}
