// Package orchestrator runs capture cycles: acquire a stream, record it while
// an utterance plays, and expose the result once speech settles.
//
// All state lives on one event-loop goroutine. Public methods post requests
// to the loop; blocking collaborator calls (stream acquisition, recorder
// stop) run on their own goroutines and post completion events back, tagged
// with the cycle that issued them so events from abandoned cycles are
// dropped.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiroq/voicecap/internal/blobstore"
	"github.com/tiroq/voicecap/internal/capture"
	"github.com/tiroq/voicecap/internal/diaglog"
	"github.com/tiroq/voicecap/internal/recorder"
	"github.com/tiroq/voicecap/internal/statemachine"
	"github.com/tiroq/voicecap/internal/synth"
)

// Acquirer obtains a consented capture stream.
type Acquirer interface {
	Acquire(ctx context.Context) (capture.Stream, error)
}

// Session records one stream. *recorder.Session implements it.
type Session interface {
	Start(stream capture.Stream) error
	Stop() (*recorder.RecordingResult, error)
}

// Speaker plays utterances with one settlement each. *synth.Bridge
// implements it.
type Speaker interface {
	Speak(task synth.Task, onSettled func(synth.Outcome))
	Stop() bool
	Active() bool
}

// Config wires an Orchestrator. Blobs, Logger and Diag are optional.
type Config struct {
	Acquirer   Acquirer
	NewSession func() Session
	Speaker    Speaker
	Blobs      *blobstore.Store
	Logger     *zap.Logger
	Diag       *diaglog.Logger
}

// Orchestrator coordinates capture cycles.
type Orchestrator struct {
	acquirer   Acquirer
	newSession func() Session
	speaker    Speaker
	blobs      *blobstore.Store
	log        *zap.Logger
	diag       *diaglog.Logger

	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	last      atomic.Pointer[Snapshot]

	// Loop-owned.
	sm            *statemachine.StateMachine
	seq           uint64
	cycleID       string
	task          synth.Task
	cancelAcquire context.CancelFunc
	stream        capture.Stream
	session       Session
	result        *recorder.RecordingResult
	url           string
	err           error
	subs          map[int]chan Snapshot
	nextSub       int
}

// New starts an orchestrator in Idle. Call Close to stop it.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		acquirer:   cfg.Acquirer,
		newSession: cfg.NewSession,
		speaker:    cfg.Speaker,
		blobs:      cfg.Blobs,
		log:        cfg.Logger,
		diag:       cfg.Diag,
		events:     make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		sm:         statemachine.NewStateMachine(),
		subs:       make(map[int]chan Snapshot),
	}
	if o.blobs == nil {
		o.blobs = blobstore.New()
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.diag == nil {
		o.diag = diaglog.NewNoOp()
	}
	o.publish()
	go o.run()
	return o
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case fn := <-o.events:
			fn()
		case <-o.quit:
			o.teardown()
			for id, ch := range o.subs {
				close(ch)
				delete(o.subs, id)
			}
			return
		}
	}
}

// post queues fn on the loop. It reports false once the loop has exited.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case o.events <- fn:
		return true
	case <-o.done:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (o *Orchestrator) call(fn func() error) error {
	reply := make(chan error, 1)
	if !o.post(func() { reply <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-o.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// Record starts a capture cycle for task. It returns once the cycle has
// entered AcquiringStream; progress is reported through snapshots.
func (o *Orchestrator) Record(task synth.Task) error {
	if strings.TrimSpace(task.Text) == "" {
		return ErrEmptyText
	}
	return o.call(func() error { return o.startCycle(task) })
}

// Speak plays task without capturing it. Rejected while a cycle is active.
func (o *Orchestrator) Speak(task synth.Task) error {
	if strings.TrimSpace(task.Text) == "" {
		return ErrEmptyText
	}
	return o.call(func() error {
		if o.sm.State().Active() {
			return ErrBusy
		}
		o.speaker.Speak(task, func(out synth.Outcome) {
			o.log.Debug("speech settled", zap.Stringer("outcome", out))
			go o.post(o.publish)
		})
		o.publish()
		return nil
	})
}

// Stop ends the current activity. While recording it stops speech, which
// finalizes the cycle normally. While acquiring it abandons the consent
// request, failing the cycle. Otherwise it stops a speak-only utterance.
func (o *Orchestrator) Stop() error {
	return o.call(func() error {
		switch o.sm.State() {
		case statemachine.AcquiringStream:
			o.stopAcquire()
		case statemachine.RecordingSpeaking:
			o.speaker.Stop()
		default:
			if o.speaker.Stop() {
				o.publish()
			}
		}
		return nil
	})
}

// Teardown abandons any cycle, releases held resources, revokes the result
// URL and returns to Idle.
func (o *Orchestrator) Teardown() error {
	return o.call(func() error {
		o.teardown()
		return nil
	})
}

// Close tears down and stops the loop. Subscriber channels are closed.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() { close(o.quit) })
	<-o.done
	return nil
}

// Result returns the ready recording and its transient URL.
func (o *Orchestrator) Result() (*recorder.RecordingResult, string, error) {
	var (
		result *recorder.RecordingResult
		url    string
	)
	err := o.call(func() error {
		if o.sm.State() != statemachine.Ready || o.result == nil {
			return ErrNotReady
		}
		result, url = o.result, o.url
		return nil
	})
	return result, url, err
}

// Err returns the error that failed the current cycle, or nil.
func (o *Orchestrator) Err() error {
	var cycleErr error
	if err := o.call(func() error {
		cycleErr = o.err
		return nil
	}); err != nil {
		return err
	}
	return cycleErr
}

// Snapshot returns the latest published snapshot.
func (o *Orchestrator) Snapshot() Snapshot {
	return *o.last.Load()
}

// Subscribe returns a channel receiving a snapshot after every change, and a
// function ending the subscription. A slow subscriber loses the oldest
// buffered snapshots.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	var id int
	err := o.call(func() error {
		id = o.nextSub
		o.nextSub++
		o.subs[id] = ch
		return nil
	})
	if err != nil {
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.post(func() {
				if c, ok := o.subs[id]; ok {
					delete(o.subs, id)
					close(c)
				}
			})
		})
	}
}

// Await blocks until cond holds for a published snapshot or ctx ends.
func (o *Orchestrator) Await(ctx context.Context, cond func(Snapshot) bool) (Snapshot, error) {
	ch, cancel := o.Subscribe()
	defer cancel()
	if snap := o.Snapshot(); cond(snap) {
		return snap, nil
	}
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return o.Snapshot(), ErrClosed
			}
			if cond(snap) {
				return snap, nil
			}
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
	}
}

func (o *Orchestrator) startCycle(task synth.Task) error {
	if !o.sm.State().AcceptsRecord() {
		return ErrBusy
	}
	o.revokeURL()
	o.err = nil
	o.seq++
	seq := o.seq
	o.cycleID = uuid.NewString()
	o.task = task

	ctx, cancel := context.WithCancel(context.Background())
	o.cancelAcquire = cancel

	o.log.Info("capture cycle started", zap.String("cycle_id", o.cycleID))
	o.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOrchestrator,
		Event:     diaglog.EventCycleStart,
		CycleID:   o.cycleID,
		Payload:   map[string]interface{}{"text": task.Text, "voice": task.Voice, "rate": task.Rate, "pitch": task.Pitch},
	})
	o.fire(statemachine.EventRecord)

	go func() {
		stream, err := o.acquirer.Acquire(ctx)
		if !o.post(func() { o.onAcquired(seq, stream, err) }) && stream != nil {
			stream.Stop()
		}
	}()
	return nil
}

func (o *Orchestrator) onAcquired(seq uint64, stream capture.Stream, err error) {
	if seq != o.seq || o.sm.State() != statemachine.AcquiringStream {
		if stream != nil {
			stream.Stop()
			o.log.Debug("released stream from abandoned cycle", zap.String("stream_id", stream.ID()))
		}
		return
	}
	o.stopAcquire()

	if err != nil {
		if stream != nil {
			stream.Stop()
		}
		o.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentAcquirer,
			Event:     diaglog.EventAcquireFailed,
			CycleID:   o.cycleID,
			Reason:    Code(err),
		})
		o.fail(statemachine.EventAcquireFailed, err)
		return
	}

	o.stream = stream
	o.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentAcquirer,
		Event:     diaglog.EventStreamAcquired,
		CycleID:   o.cycleID,
		Payload:   map[string]interface{}{"stream_id": stream.ID(), "source": stream.Source().Name, "tracks": len(stream.Tracks())},
	})
	o.fire(statemachine.EventStreamAcquired)

	session := o.newSession()
	if err := session.Start(stream); err != nil {
		o.fail(statemachine.EventSessionStartFailed, err)
		return
	}
	o.session = session
	o.diag.Log(diaglog.LogEntry{Component: diaglog.ComponentRecorder, Event: diaglog.EventRecordingStart, CycleID: o.cycleID})

	o.speaker.Speak(o.task, func(out synth.Outcome) {
		// May run synchronously inside Speak or Stop on the loop.
		go o.post(func() { o.onSettled(seq, out) })
	})
	o.diag.Log(diaglog.LogEntry{Component: diaglog.ComponentSynth, Event: diaglog.EventSpeechStart, CycleID: o.cycleID})
	o.publish()
}

func (o *Orchestrator) onSettled(seq uint64, out synth.Outcome) {
	if seq != o.seq || o.sm.State() != statemachine.RecordingSpeaking {
		return
	}
	if out.Err != nil && !out.Interrupted() {
		o.log.Warn("speech engine failed, finalizing captured audio", zap.String("cycle_id", o.cycleID), zap.Error(out.Err))
	}
	o.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentSynth,
		Event:     diaglog.EventSpeechSettled,
		CycleID:   o.cycleID,
		Reason:    out.String(),
	})
	o.fire(statemachine.EventSpeechSettled)

	session := o.session
	go func() {
		result, err := session.Stop()
		o.post(func() { o.onFinalized(seq, result, err) })
	}()
}

func (o *Orchestrator) onFinalized(seq uint64, result *recorder.RecordingResult, err error) {
	if seq != o.seq || o.sm.State() != statemachine.Finalizing {
		return
	}
	if err != nil {
		o.log.Warn("recorder stop reported an error", zap.String("cycle_id", o.cycleID), zap.Error(err))
	}
	o.releaseStream()
	o.session = nil
	if result == nil {
		result = &recorder.RecordingResult{}
	}
	o.result = result
	o.url = o.blobs.Create(result)

	o.log.Info("recording ready",
		zap.String("cycle_id", o.cycleID),
		zap.Int("bytes", result.Len()),
		zap.String("mime_type", result.MIMEType))
	o.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentRecorder,
		Event:     diaglog.EventResultReady,
		CycleID:   o.cycleID,
		Payload:   map[string]interface{}{"bytes": result.Len(), "mime_type": result.MIMEType, "fragments": result.Fragments},
	})
	o.fire(statemachine.EventFinalized)
}

func (o *Orchestrator) fail(ev statemachine.Event, err error) {
	o.err = err
	o.releaseStream()
	o.session = nil
	o.log.Warn("capture cycle failed", zap.String("cycle_id", o.cycleID), zap.Error(err))
	o.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOrchestrator,
		Event:     diaglog.EventCycleFailed,
		CycleID:   o.cycleID,
		Reason:    err.Error(),
	})
	o.fire(ev)
}

func (o *Orchestrator) teardown() {
	o.seq++
	o.stopAcquire()
	o.speaker.Stop()
	if s := o.session; s != nil {
		o.session = nil
		go func() { _, _ = s.Stop() }()
	}
	o.releaseStream()
	o.revokeURL()
	o.err = nil
	o.diag.Log(diaglog.LogEntry{Component: diaglog.ComponentOrchestrator, Event: diaglog.EventTeardown, CycleID: o.cycleID})
	o.fire(statemachine.EventTeardown)
	o.cycleID = ""
}

func (o *Orchestrator) stopAcquire() {
	if o.cancelAcquire != nil {
		o.cancelAcquire()
		o.cancelAcquire = nil
	}
}

// releaseStream stops the held stream. The nil check makes release happen
// once per cycle whichever exit path runs.
func (o *Orchestrator) releaseStream() {
	if o.stream == nil {
		return
	}
	id := o.stream.ID()
	o.stream.Stop()
	o.stream = nil
	o.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOrchestrator,
		Event:     diaglog.EventStreamReleased,
		CycleID:   o.cycleID,
		Payload:   map[string]interface{}{"stream_id": id},
	})
}

func (o *Orchestrator) revokeURL() {
	if o.url == "" {
		return
	}
	o.blobs.Revoke(o.url)
	o.diag.Log(diaglog.LogEntry{Component: diaglog.ComponentOrchestrator, Event: diaglog.EventURLRevoked, CycleID: o.cycleID})
	o.url = ""
	o.result = nil
}

func (o *Orchestrator) fire(ev statemachine.Event) {
	from := o.sm.State()
	to, err := o.sm.Fire(ev)
	if err != nil {
		o.log.Error("rejected transition", zap.Error(err))
		return
	}
	o.log.Debug("transition",
		zap.String("cycle_id", o.cycleID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("event", string(ev)))
	o.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOrchestrator,
		Event:     diaglog.EventTransition,
		CycleID:   o.cycleID,
		State:     string(to),
		Reason:    string(ev),
	})
	o.publish()
}

func (o *Orchestrator) publish() {
	state := o.sm.State()
	snap := Snapshot{
		State:     state,
		Controls:  statemachine.ControlsFor(state),
		Path:      o.sm.Path(),
		CycleID:   o.cycleID,
		Speaking:  o.speaker != nil && o.speaker.Active(),
		UpdatedAt: time.Now(),
	}
	if o.result != nil && o.url != "" {
		snap.ResultURL = o.url
		snap.Filename = SuggestedBaseName + o.result.Extension()
		snap.MIMEType = o.result.MIMEType
		snap.Bytes = o.result.Len()
		snap.Duration = o.result.Duration
	}
	if o.err != nil {
		snap.ErrorCode = Code(o.err)
		snap.Error = Describe(o.err)
	}
	o.last.Store(&snap)

	for _, ch := range o.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
