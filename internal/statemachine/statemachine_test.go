package statemachine

import (
	"errors"
	"reflect"
	"testing"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{"record from idle", Idle, EventRecord, AcquiringStream, false},
		{"record from ready", Ready, EventRecord, AcquiringStream, false},
		{"retry from failed", Failed, EventRecord, AcquiringStream, false},
		{"stream granted", AcquiringStream, EventStreamAcquired, RecordingSpeaking, false},
		{"permission denied", AcquiringStream, EventAcquireFailed, Failed, false},
		{"session start fails", RecordingSpeaking, EventSessionStartFailed, Failed, false},
		{"speech settles", RecordingSpeaking, EventSpeechSettled, Finalizing, false},
		{"result assembled", Finalizing, EventFinalized, Ready, false},
		{"record while acquiring", AcquiringStream, EventRecord, AcquiringStream, true},
		{"record while recording", RecordingSpeaking, EventRecord, RecordingSpeaking, true},
		{"record while finalizing", Finalizing, EventRecord, Finalizing, true},
		{"settled while idle", Idle, EventSpeechSettled, Idle, true},
		{"finalizing cannot fail", Finalizing, EventAcquireFailed, Finalizing, true},
		{"acquired twice", RecordingSpeaking, EventStreamAcquired, RecordingSpeaking, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Transition() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error %v does not wrap ErrInvalidTransition", err)
			}
			if got != tt.want {
				t.Errorf("Transition() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTeardownFromEveryState(t *testing.T) {
	for _, s := range []State{Idle, AcquiringStream, RecordingSpeaking, Finalizing, Ready, Failed} {
		got, err := Transition(s, EventTeardown)
		if err != nil || got != Idle {
			t.Errorf("Transition(%s, teardown) = %s, %v; want idle", s, got, err)
		}
	}
}

func TestControlsFor(t *testing.T) {
	tests := []struct {
		state State
		want  Controls
	}{
		{Idle, Controls{EnableCapture: true, Record: true}},
		{AcquiringStream, Controls{}},
		{RecordingSpeaking, Controls{Stop: true}},
		{Finalizing, Controls{}},
		{Ready, Controls{EnableCapture: true, Record: true, Download: true}},
		{Failed, Controls{EnableCapture: true, Record: true}},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := ControlsFor(tt.state); got != tt.want {
				t.Errorf("ControlsFor(%s) = %+v, want %+v", tt.state, got, tt.want)
			}
		})
	}
}

func TestStateMachinePath(t *testing.T) {
	sm := NewStateMachine()
	for _, ev := range []Event{EventRecord, EventStreamAcquired, EventSpeechSettled, EventFinalized} {
		if _, err := sm.Fire(ev); err != nil {
			t.Fatalf("Fire(%s) error = %v", ev, err)
		}
	}
	want := []State{Idle, AcquiringStream, RecordingSpeaking, Finalizing, Ready}
	if got := sm.Path(); !reflect.DeepEqual(got, want) {
		t.Errorf("Path() = %v, want %v", got, want)
	}
}

func TestStateMachineRejectsInvalidEvent(t *testing.T) {
	sm := NewStateMachine()
	if _, err := sm.Fire(EventFinalized); err == nil {
		t.Fatal("Fire(finalized) from idle succeeded")
	}
	if sm.State() != Idle || len(sm.Path()) != 1 {
		t.Errorf("state changed on rejected event: %s %v", sm.State(), sm.Path())
	}
}

func TestActive(t *testing.T) {
	active := map[State]bool{AcquiringStream: true, RecordingSpeaking: true, Finalizing: true}
	for _, s := range []State{Idle, AcquiringStream, RecordingSpeaking, Finalizing, Ready, Failed} {
		if s.Active() != active[s] {
			t.Errorf("%s.Active() = %v", s, s.Active())
		}
	}
}

func TestStateMachinePathRestartsPerCycle(t *testing.T) {
	sm := NewStateMachine()
	for _, ev := range []Event{EventRecord, EventAcquireFailed, EventRecord, EventStreamAcquired} {
		if _, err := sm.Fire(ev); err != nil {
			t.Fatalf("Fire(%s) error = %v", ev, err)
		}
	}
	want := []State{Failed, AcquiringStream, RecordingSpeaking}
	if got := sm.Path(); !reflect.DeepEqual(got, want) {
		t.Errorf("Path() = %v, want %v", got, want)
	}
}
