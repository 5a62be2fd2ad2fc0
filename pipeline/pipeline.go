// Package pipeline runs an operation as an ordered list of steps that share a
// stash and see the previous step's result.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacentio/socialtable/internal/metrics"
)

// State is the lifecycle of one execution.
type State int

const (
	Pending State = iota
	Running
	Completed
	EarlyReturned
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case EarlyReturned:
		return "earlyReturned"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s is final.
func (s State) Terminal() bool {
	return s == Completed || s == EarlyReturned || s == Failed
}

// Outcome is what a successful step hands back to the driver.
type Outcome struct {
	value any
	stop  bool
}

// Continue passes v to the next step, or makes it the final result when the
// step is the last one.
func Continue(v any) Outcome { return Outcome{value: v} }

// Stop ends the execution with v as the final result. Remaining steps are
// skipped.
func Stop(v any) Outcome { return Outcome{value: v, stop: true} }

// Value returns the carried value.
func (o Outcome) Value() any { return o.value }

// Stopped reports whether o ends the execution early.
func (o Outcome) Stopped() bool { return o.stop }

// StepFunc is the body of a step.
type StepFunc func(ctx context.Context, pc *Context) (Outcome, error)

// Step is a named unit of work.
type Step struct {
	Name string
	Run  StepFunc
}

// Pipeline is an immutable step sequence. It is safe for concurrent use; each
// Run creates its own Execution.
type Pipeline struct {
	name    string
	steps   []Step
	logger  zerolog.Logger
	metrics metrics.Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the fallback logger, used when the context carries none.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the recorder for step timings and run outcomes.
func WithMetrics(m metrics.Recorder) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// New builds a pipeline. Pipelines are defined in code, so an empty step list,
// a nil step body or a repeated step name panics.
func New(name string, steps []Step, opts ...Option) *Pipeline {
	if len(steps) == 0 {
		panic(fmt.Sprintf("pipeline %s: no steps", name))
	}
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Run == nil || s.Name == "" {
			panic(fmt.Sprintf("pipeline %s: incomplete step %q", name, s.Name))
		}
		if seen[s.Name] {
			panic(fmt.Sprintf("pipeline %s: duplicate step %q", name, s.Name))
		}
		seen[s.Name] = true
	}

	p := &Pipeline{
		name:    name,
		steps:   append([]Step(nil), steps...),
		logger:  zerolog.Nop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the operation name.
func (p *Pipeline) Name() string { return p.name }

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes the pipeline once for req.
func (p *Pipeline) Run(ctx context.Context, req Request) (any, error) {
	return p.NewExecution(req).Run(ctx)
}

// NewExecution prepares a pending execution for req.
func (p *Pipeline) NewExecution(req Request) *Execution {
	return &Execution{p: p, pc: newContext(req), step: -1}
}

// Execution is one run of a pipeline.
type Execution struct {
	p  *Pipeline
	pc *Context

	mu     sync.Mutex
	state  State
	step   int
	result any
	err    error
}

// State returns the current state.
func (e *Execution) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Step returns the index of the running or last-run step, or -1 before the
// first step starts.
func (e *Execution) Step() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Stash returns the shared stash.
func (e *Execution) Stash() Stash { return e.pc.Stash }

// Run drives the steps in order. Each step runs to completion even if ctx is
// cancelled meanwhile; cancellation is observed between steps, after which
// the result is discarded and no further step starts.
func (e *Execution) Run(ctx context.Context) (any, error) {
	e.mu.Lock()
	if e.state != Pending {
		e.mu.Unlock()
		return nil, ErrFinished
	}
	e.state = Running
	e.mu.Unlock()

	log := e.logger(ctx)
	started := time.Now()

	for i, s := range e.p.steps {
		if err := ctx.Err(); err != nil {
			return e.fail(log, started, i, s.Name, err)
		}
		e.setStep(i)

		stepCtx := log.With().Str("step", s.Name).Logger().WithContext(context.WithoutCancel(ctx))
		t0 := time.Now()
		out, err := runStep(stepCtx, s, e.pc)
		e.p.metrics.Timing("pipeline.step.duration", time.Since(t0),
			"pipeline:"+e.p.name, "step:"+s.Name, "outcome:"+stepOutcome(out, err))

		if err != nil {
			return e.fail(log, started, i, s.Name, err)
		}
		if err := ctx.Err(); err != nil {
			return e.fail(log, started, i, s.Name, err)
		}
		if out.stop {
			return e.finish(log, started, EarlyReturned, out.value)
		}
		e.pc.Prev = out.value
	}
	return e.finish(log, started, Completed, e.pc.Prev)
}

func runStep(ctx context.Context, s Step, pc *Context) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStepPanicked, r)
		}
	}()
	return s.Run(ctx, pc)
}

func (e *Execution) logger(ctx context.Context) zerolog.Logger {
	log := *zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = e.p.logger
	}
	return log.With().Str("pipeline", e.p.name).Logger()
}

func (e *Execution) setStep(i int) {
	e.mu.Lock()
	e.step = i
	e.mu.Unlock()
}

func (e *Execution) fail(log zerolog.Logger, started time.Time, i int, step string, cause error) (any, error) {
	err := &StepError{Pipeline: e.p.name, Step: step, Index: i, Err: cause}

	e.mu.Lock()
	e.state = Failed
	e.err = err
	e.mu.Unlock()

	log.Error().Err(cause).Str("step", step).Int("index", i).Msg("pipeline failed")
	e.p.metrics.Count("pipeline.run", 1, "pipeline:"+e.p.name, "state:"+Failed.String())
	e.p.metrics.Timing("pipeline.duration", time.Since(started), "pipeline:"+e.p.name)
	return nil, err
}

func (e *Execution) finish(log zerolog.Logger, started time.Time, state State, result any) (any, error) {
	e.mu.Lock()
	e.state = state
	e.result = result
	e.mu.Unlock()

	log.Debug().Str("state", state.String()).Dur("elapsed", time.Since(started)).Msg("pipeline finished")
	e.p.metrics.Count("pipeline.run", 1, "pipeline:"+e.p.name, "state:"+state.String())
	e.p.metrics.Timing("pipeline.duration", time.Since(started), "pipeline:"+e.p.name)
	return result, nil
}

func stepOutcome(out Outcome, err error) string {
	switch {
	case err != nil:
		return "error"
	case out.stop:
		return "stop"
	}
	return "continue"
}

// Result returns the final result and error once the execution is terminal.
func (e *Execution) Result() (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.err
}
