package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fnndsc/pfbuild/executor"
	"github.com/fnndsc/pfbuild/log"
	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
)

var errAbandoned = errors.New("run abandoned before completion")

// StepExecutor runs a single step. *executor.Executor satisfies it.
type StepExecutor interface {
	Execute(ctx context.Context, step steps.Id, p models.Payload, endpoint *url.URL) (models.Response, error)
}

// Recorder receives run and transition updates as they happen. Errors are
// logged and otherwise ignored.
type Recorder interface {
	RecordRun(run Run) error
	RecordTransition(t Transition) error
}

// Orchestrator drives the step catalog for one run at a time. Every method
// is safe for concurrent use; only the goroutine consuming the sequence
// returned by Start advances the run.
type Orchestrator struct {
	exec       StepExecutor
	l          *slog.Logger
	rec        Recorder
	serviceURL string
	newID      func() string
	now        func() time.Time

	mu  sync.Mutex
	run Run
	err error
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.l = l
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.rec = r
	}
}

// WithServiceURL sets the service root used when a payload has no
// service_url of its own.
func WithServiceURL(u string) Option {
	return func(o *Orchestrator) {
		o.serviceURL = u
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) {
		o.newID = f
	}
}

func New(exec StepExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exec:  exec,
		l:     log.New("pipeline"),
		newID: uuid.NewString,
		now:   time.Now,
		run:   newRun(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins a new run for p and returns its transitions. The sequence is
// lazy: a step executes only when the consumer asks for the next
// transition, and it may be ranged over once. Stopping early aborts the run.
func (o *Orchestrator) Start(ctx context.Context, p models.Payload) (iter.Seq[Transition], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	serviceURL := p.ServiceURL
	if serviceURL == "" {
		serviceURL = o.serviceURL
	}
	endpoint, err := executor.BootstrapURL(serviceURL)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.run.State != RunNotStarted {
		state := o.run.State
		o.mu.Unlock()
		return nil, models.InvalidStateError(fmt.Sprintf("cannot start: run is %s", state))
	}
	o.run = newRun()
	o.run.ID = o.newID()
	o.run.Payload = p
	o.run.State = RunRunning
	o.run.StartedAt = o.now()
	o.err = nil
	snap := o.run.clone()
	o.mu.Unlock()

	o.l.Info("starting run", "run", snap.ID, "payload", p)
	o.recordRun(snap)

	return o.drive(ctx, snap.ID, p, endpoint), nil
}

func (o *Orchestrator) drive(ctx context.Context, runID string, p models.Payload, endpoint *url.URL) iter.Seq[Transition] {
	var used atomic.Bool

	return func(yield func(Transition) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}

		l := o.l.With("run", runID)
		for i, st := range steps.All() {
			if !yield(o.advance(i, models.StepActive, nil, nil)) {
				o.abandon(i)
				return
			}

			resp, err := o.exec.Execute(ctx, st.Id, p, endpoint)
			if err != nil {
				l.Error("step failed, aborting run", "step", st.Id, "error", err)
				yield(o.advance(i, models.StepFailed, nil, err))
				return
			}
			l.Info("step completed", "step", st.Id, "message", resp.Message)

			t := o.advance(i, models.StepCompleted, &resp, nil)
			if !yield(t) {
				if !t.RunState.Terminal() {
					o.abandon(-1)
				}
				return
			}
		}
	}
}

// advance moves step i to state and returns the resulting transition.
func (o *Orchestrator) advance(i int, state models.StepState, resp *models.Response, err error) Transition {
	o.mu.Lock()
	o.run.Steps[i].State = state
	step := o.run.Steps[i].Step

	switch state {
	case models.StepCompleted:
		o.run.Responses[step] = resp.Clone()
		if i == len(o.run.Steps)-1 {
			o.run.State = RunSucceeded
			o.run.FinishedAt = o.now()
		}
	case models.StepFailed:
		o.run.State = RunAborted
		o.run.Error = err.Error()
		o.run.FinishedAt = o.now()
		o.err = err
	}

	var emitted *models.Response
	if resp != nil {
		c := resp.Clone()
		emitted = &c
	}
	t := Transition{
		RunID:    o.run.ID,
		Step:     step,
		State:    state,
		Response: emitted,
		Err:      err,
		RunState: o.run.State,
		Steps:    append([]StepStatus(nil), o.run.Steps...),
	}
	var snap *Run
	if o.run.State.Terminal() {
		s := o.run.clone()
		snap = &s
	}
	o.mu.Unlock()

	if snap != nil {
		o.l.Info("run finished", "run", snap.ID, "state", snap.State)
	}
	o.recordTransition(t)
	if snap != nil {
		o.recordRun(*snap)
	}
	return t
}

// abandon aborts a run whose consumer stopped iterating. The step at i, if
// any, never ran to completion and goes back to idle.
func (o *Orchestrator) abandon(i int) {
	o.mu.Lock()
	if i >= 0 {
		o.run.Steps[i].State = models.StepIdle
	}
	o.run.State = RunAborted
	o.run.Error = errAbandoned.Error()
	o.run.FinishedAt = o.now()
	o.err = errAbandoned
	snap := o.run.clone()
	o.mu.Unlock()

	o.l.Warn("run abandoned", "run", snap.ID)
	o.recordRun(snap)
}

func (o *Orchestrator) recordRun(run Run) {
	if o.rec == nil {
		return
	}
	if err := o.rec.RecordRun(run); err != nil {
		o.l.Error("failed to record run", "run", run.ID, "error", err)
	}
}

func (o *Orchestrator) recordTransition(t Transition) {
	if o.rec == nil {
		return
	}
	if err := o.rec.RecordTransition(t); err != nil {
		o.l.Error("failed to record transition", "run", t.RunID, "step", t.Step, "error", err)
	}
}

// Drain consumes seq to the end and returns the final run along with the
// error that aborted it, if any.
func (o *Orchestrator) Drain(seq iter.Seq[Transition]) (Run, error) {
	for range seq {
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run.clone(), o.err
}

// Run starts a run for p and drives it to its end.
func (o *Orchestrator) Run(ctx context.Context, p models.Payload) (Run, error) {
	seq, err := o.Start(ctx, p)
	if err != nil {
		return o.CurrentState(), err
	}
	return o.Drain(seq)
}

// CurrentState returns a snapshot of the current run.
func (o *Orchestrator) CurrentState() Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run.clone()
}

// Reset discards a finished run. It fails while a run is in progress.
func (o *Orchestrator) Reset() (Run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.run.State == RunRunning {
		return o.run.clone(), models.InvalidStateError("cannot reset while running")
	}
	o.run = newRun()
	o.err = nil
	return o.run.clone(), nil
}

// ResponseFor returns the recorded response of a completed step.
func (o *Orchestrator) ResponseFor(step steps.Id) (models.Response, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.run.StepState(step) != models.StepCompleted {
		return models.Response{}, false
	}
	r, ok := o.run.Responses[step]
	return r.Clone(), ok
}
