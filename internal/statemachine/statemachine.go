package statemachine

import (
	"errors"
	"fmt"
)

// State is the capture cycle state.
type State string

const (
	Idle              State = "idle"
	AcquiringStream   State = "acquiring_stream"
	RecordingSpeaking State = "recording_speaking"
	Finalizing        State = "finalizing"
	Ready             State = "ready"
	Failed            State = "failed"
)

// Event drives a transition.
type Event string

const (
	EventRecord             Event = "record"
	EventStreamAcquired     Event = "stream_acquired"
	EventAcquireFailed      Event = "acquire_failed"
	EventSessionStartFailed Event = "session_start_failed"
	EventSpeechSettled      Event = "speech_settled"
	EventFinalized          Event = "finalized"
	EventTeardown           Event = "teardown"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Event]State{
	Idle: {
		EventRecord: AcquiringStream,
	},
	AcquiringStream: {
		EventStreamAcquired: RecordingSpeaking,
		EventAcquireFailed:  Failed,
	},
	RecordingSpeaking: {
		EventSpeechSettled:      Finalizing,
		EventSessionStartFailed: Failed,
	},
	Finalizing: {
		EventFinalized: Ready,
	},
	Ready: {
		EventRecord: AcquiringStream,
	},
	Failed: {
		EventRecord: AcquiringStream,
	},
}

// Transition returns the state reached from s on ev. Teardown reaches Idle
// from every state.
func Transition(s State, ev Event) (State, error) {
	if ev == EventTeardown {
		return Idle, nil
	}
	if next, ok := transitions[s][ev]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}

// AcceptsRecord reports whether a record request may start a new cycle.
func (s State) AcceptsRecord() bool {
	return s == Idle || s == Ready || s == Failed
}

// Active reports whether a cycle is in progress.
func (s State) Active() bool {
	return s == AcquiringStream || s == RecordingSpeaking || s == Finalizing
}

// Controls is the set of user actions enabled in a state.
type Controls struct {
	EnableCapture bool `json:"enable_capture"`
	Record        bool `json:"record"`
	Stop          bool `json:"stop"`
	Download      bool `json:"download"`
}

// ControlsFor returns the controls enabled in s.
func ControlsFor(s State) Controls {
	return Controls{
		EnableCapture: s.AcceptsRecord(),
		Record:        s.AcceptsRecord(),
		Stop:          s == RecordingSpeaking,
		Download:      s == Ready,
	}
}

// StateMachine tracks the current state and the path taken by the current
// cycle. A record event starts a new path from the state it leaves.
type StateMachine struct {
	state State
	path  []State
}

// NewStateMachine creates a state machine in Idle.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: Idle, path: []State{Idle}}
}

// Fire applies ev. The state is unchanged on error.
func (sm *StateMachine) Fire(ev Event) (State, error) {
	next, err := Transition(sm.state, ev)
	if err != nil {
		return sm.state, err
	}
	if ev == EventRecord {
		sm.path = []State{sm.state}
	}
	sm.state = next
	sm.path = append(sm.path, next)
	return next, nil
}

// State returns the current state.
func (sm *StateMachine) State() State {
	return sm.state
}

// Path returns the states visited by the current cycle.
func (sm *StateMachine) Path() []State {
	return append([]State(nil), sm.path...)
}
