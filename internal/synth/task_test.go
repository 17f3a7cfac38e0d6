package synth

import (
	"errors"
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"defaults", Task{Rate: 1, Pitch: 1}, false},
		{"lowest", Task{Rate: MinRate, Pitch: MinPitch}, false},
		{"highest", Task{Rate: MaxRate, Pitch: MaxPitch}, false},
		{"rate zero", Task{Rate: 0, Pitch: 1}, true},
		{"rate high", Task{Rate: 7, Pitch: 1}, true},
		{"pitch negative", Task{Rate: 1, Pitch: -0.1}, true},
		{"pitch high", Task{Rate: 1, Pitch: 2.5}, true},
		{"rate NaN", Task{Rate: math.NaN(), Pitch: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTask) {
				t.Errorf("error %v is not ErrInvalidTask", err)
			}
		})
	}
}

func TestRequestResolve(t *testing.T) {
	defaults := Task{Voice: "en-us", Rate: 1, Pitch: 1}

	got, err := Request{Text: "hi"}.Resolve(defaults)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Task{Text: "hi", Voice: "en-us", Rate: 1, Pitch: 1}) {
		t.Errorf("unset fields = %+v, want defaults", got)
	}

	got, err = Request{Text: "hi", Voice: "de", Rate: ptr(0.5), Pitch: ptr(0)}.Resolve(defaults)
	if err != nil {
		t.Fatal(err)
	}
	if got.Pitch != 0 || got.Rate != 0.5 || got.Voice != "de" {
		t.Errorf("explicit fields = %+v, want pitch 0 rate 0.5 voice de", got)
	}

	if _, err := (Request{Text: "hi", Rate: ptr(7)}).Resolve(defaults); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("rate 7: err = %v, want ErrInvalidTask", err)
	}
	if _, err := (Request{Text: "hi"}).Resolve(Task{Rate: 9, Pitch: 1}); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("bad default rate: err = %v, want ErrInvalidTask", err)
	}
}

func TestRequestValidate(t *testing.T) {
	if err := (Request{}).Validate(); err != nil {
		t.Errorf("empty request: %v", err)
	}
	if err := (Request{Pitch: ptr(0)}).Validate(); err != nil {
		t.Errorf("pitch 0: %v", err)
	}
	if err := (Request{Rate: ptr(2.5)}).Validate(); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("rate 2.5: err = %v, want ErrInvalidTask", err)
	}
}
