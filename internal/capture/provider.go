package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Prompter asks the user to pick a source. granted is false when the user
// declines.
type Prompter interface {
	Choose(ctx context.Context, sources []Source) (src Source, granted bool, err error)
}

// SourceProvider offers a fixed list of sources through a Prompter.
type SourceProvider struct {
	sources  []Source
	prompter Prompter
}

// NewSourceProvider creates a provider over sources.
func NewSourceProvider(sources []Source, prompter Prompter) *SourceProvider {
	return &SourceProvider{sources: sources, prompter: prompter}
}

// Sources returns the configured sources.
func (p *SourceProvider) Sources() []Source {
	return append([]Source(nil), p.sources...)
}

// Request prompts for a source and opens a stream over it.
func (p *SourceProvider) Request(ctx context.Context, c Constraints) (Stream, error) {
	if len(p.sources) == 0 {
		return nil, fmt.Errorf("%w: no capture sources configured", ErrEnvironmentUnsupported)
	}
	if p.prompter == nil {
		return nil, ErrPermissionDenied
	}
	src, granted, err := p.prompter.Choose(ctx, p.sources)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, ErrPermissionDenied
	}
	return NewLiveStream(src, c), nil
}

// AutoGrant grants the named source without asking, or the first source when
// Name is empty.
type AutoGrant struct {
	Name string
}

// Choose implements Prompter.
func (g AutoGrant) Choose(ctx context.Context, sources []Source) (Source, bool, error) {
	if err := ctx.Err(); err != nil {
		return Source{}, false, err
	}
	for _, s := range sources {
		if g.Name == "" || s.Name == g.Name {
			return s, true, nil
		}
	}
	return Source{}, false, fmt.Errorf("%w: source %q not found", ErrEnvironmentUnsupported, g.Name)
}

// TerminalPrompt lists sources on Out and reads a 1-based choice from In. An
// empty answer, "n", or "no" declines. One goroutine reads In for the life of
// the prompt, so an answer typed after a cancelled Choose goes to the next one.
type TerminalPrompt struct {
	in  io.Reader
	out io.Writer

	once    sync.Once
	lines   chan answer
	readErr error
}

type answer struct {
	line string
	err  error
}

// NewTerminalPrompt creates a prompt reading answers from in.
func NewTerminalPrompt(in io.Reader, out io.Writer) *TerminalPrompt {
	return &TerminalPrompt{in: in, out: out, lines: make(chan answer)}
}

// Choose implements Prompter. A pending read is abandoned when ctx is done.
func (p *TerminalPrompt) Choose(ctx context.Context, sources []Source) (Source, bool, error) {
	fmt.Fprintln(p.out, "Select a capture source to share (enter to decline):")
	for i, s := range sources {
		audio := "no audio"
		if s.Audio {
			audio = "shares audio"
		}
		fmt.Fprintf(p.out, "  %d) %s [%s]\n", i+1, s.Name, audio)
	}
	fmt.Fprint(p.out, "> ")

	p.once.Do(func() { go p.readLines() })

	select {
	case <-ctx.Done():
		return Source{}, false, ctx.Err()
	case a, ok := <-p.lines:
		if !ok {
			a = answer{err: p.readErr}
		}
		if a.err == io.EOF {
			return Source{}, false, nil
		}
		if a.err != nil {
			return Source{}, false, a.err
		}
		return pick(strings.TrimSpace(a.line), sources)
	}
}

func (p *TerminalPrompt) readLines() {
	r := bufio.NewReader(p.in)
	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			p.readErr = err
			close(p.lines)
			return
		}
		p.lines <- answer{line: line}
	}
}

func pick(choice string, sources []Source) (Source, bool, error) {
	switch strings.ToLower(choice) {
	case "", "n", "no":
		return Source{}, false, nil
	}
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(sources) {
		return Source{}, false, nil
	}
	return sources[n-1], true, nil
}
