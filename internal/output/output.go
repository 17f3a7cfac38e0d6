package output

import (
	"fmt"
	"io"
	"time"

	"github.com/tiroq/voicecap/internal/ipc"
	"github.com/tiroq/voicecap/internal/orchestrator"
	"github.com/tiroq/voicecap/internal/statemachine"
	"github.com/tiroq/voicecap/internal/synth"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Speaking(text string) {
	fmt.Fprintf(f.w, "🗣️  Speaking %d characters...\n", len([]rune(text)))
}

func (f *Formatter) WaitingForSource() {
	fmt.Fprintf(f.w, "🎛️  Waiting for capture source...\n")
}

func (f *Formatter) Recording() {
	fmt.Fprintf(f.w, "🔴 Recording (Ctrl+C to stop)\n")
}

func (f *Formatter) Finalizing() {
	fmt.Fprintf(f.w, "⏳ Finalizing recording...\n")
}

// Progress prints the line matching a cycle state, if any.
func (f *Formatter) Progress(state statemachine.State) {
	switch state {
	case statemachine.AcquiringStream:
		f.WaitingForSource()
	case statemachine.RecordingSpeaking:
		f.Recording()
	case statemachine.Finalizing:
		f.Finalizing()
	}
}

func (f *Formatter) Saved(path string, bytes int, duration time.Duration) {
	fmt.Fprintf(f.w, "✅ Recording saved: %s (%s, %s)\n", path, formatBytes(bytes), formatDuration(duration))
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) Fixes(fixes []string) {
	for _, fix := range fixes {
		fmt.Fprintf(f.w, "   %s\n", fix)
	}
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ❌ %s: %s\n", name, detail)
	}
}

func (f *Formatter) VoiceGroups(groups []synth.VoiceGroup) {
	for _, g := range groups {
		fmt.Fprintf(f.w, "%s\n", g.Language)
		for _, v := range g.Voices {
			mark := " "
			if v.Default {
				mark = "*"
			}
			fmt.Fprintf(f.w, "  %s %-16s %s\n", mark, v.ID, v.Name)
		}
	}
}

func (f *Formatter) Snapshot(s orchestrator.Snapshot) {
	fmt.Fprintf(f.w, "State:    %s\n", s.State)
	if s.CycleID != "" {
		fmt.Fprintf(f.w, "Cycle:    %s\n", s.CycleID)
	}
	fmt.Fprintf(f.w, "Speaking: %t\n", s.Speaking)
	if s.Filename != "" {
		fmt.Fprintf(f.w, "Result:   %s (%s, %s, %s)\n", s.Filename, s.MIMEType, formatBytes(s.Bytes), formatDuration(s.Duration))
	}
	if s.Error != "" {
		fmt.Fprintf(f.w, "Error:    %s\n", s.Error)
	}
}

func (f *Formatter) DaemonStatus(st *ipc.StatusSnapshot) {
	fmt.Fprintf(f.w, "Daemon PID %d, updated %s\n", st.PID, st.Timestamp.Format(time.RFC3339))
	f.Snapshot(st.Capture)
	if st.LastAction != "" {
		fmt.Fprintf(f.w, "Last:     %s\n", st.LastAction)
	}
	if st.SavedFile != "" {
		fmt.Fprintf(f.w, "Saved:    %s\n", st.SavedFile)
	}
	if st.LastError != "" {
		fmt.Fprintf(f.w, "Failure:  %s\n", st.LastError)
	}
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
