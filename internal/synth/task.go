package synth

import (
	"errors"
	"fmt"
	"math"
)

// Accepted utterance ranges.
const (
	MinRate  = 0.5
	MaxRate  = 2.0
	MinPitch = 0.0
	MaxPitch = 2.0
)

// ErrInvalidTask is returned for a rate or pitch outside the accepted range.
var ErrInvalidTask = errors.New("invalid speech task")

// Task is one utterance request. The bridge passes Rate and Pitch to the
// engine as given; callers check them with Validate.
type Task struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// Validate checks Rate and Pitch against the accepted ranges.
func (t Task) Validate() error {
	if err := checkRange("rate", t.Rate, MinRate, MaxRate); err != nil {
		return err
	}
	return checkRange("pitch", t.Pitch, MinPitch, MaxPitch)
}

// Request is a task as submitted by a user. A nil Rate or Pitch, or an empty
// Voice, means "use the default".
type Request struct {
	Text  string   `json:"text"`
	Voice string   `json:"voice,omitempty"`
	Rate  *float64 `json:"rate,omitempty"`
	Pitch *float64 `json:"pitch,omitempty"`
}

// Resolve fills unset fields from defaults and validates the result.
func (r Request) Resolve(defaults Task) (Task, error) {
	t := defaults
	t.Text = r.Text
	if r.Voice != "" {
		t.Voice = r.Voice
	}
	if r.Rate != nil {
		t.Rate = *r.Rate
	}
	if r.Pitch != nil {
		t.Pitch = *r.Pitch
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the fields that are set.
func (r Request) Validate() error {
	if r.Rate != nil {
		if err := checkRange("rate", *r.Rate, MinRate, MaxRate); err != nil {
			return err
		}
	}
	if r.Pitch != nil {
		return checkRange("pitch", *r.Pitch, MinPitch, MaxPitch)
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s %g out of range [%g, %g]", ErrInvalidTask, name, v, lo, hi)
	}
	return nil
}
