package script

import (
	"context"
	"time"

	"github.com/jamfkit/core/pkg/taxonomy"
)

// State names the evaluator's lifecycle, mirrored from the teacher's
// sandbox.Sandbox state shape (created → running → terminal) but terminal
// states here are returned/thrown/timed-out rather than the teacher's
// success/failure/crashed.
type State string

const (
	StateCreated  State = "created"
	StateRunning  State = "running"
	StateReturned State = "returned"
	StateThrown   State = "thrown"
	StateTimedOut State = "timed-out"
)

// Evaluator runs one script under a wall-clock timeout, matching spec.md's
// isolation and termination contract for the sandboxed script evaluator.
// A fresh Evaluator is constructed per execution; it is not reused.
type Evaluator struct {
	timeout time.Duration
	clock   func() time.Time
	state   State
}

// Option configures an Evaluator at construction.
type Option func(*Evaluator)

// WithTimeout overrides the default 30s wall-clock execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithClock overrides the clock used by daysSince and log timestamps, for
// deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) { e.clock = clock }
}

// New constructs an Evaluator in the created state.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{timeout: 30 * time.Second, clock: time.Now, state: StateCreated}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the evaluator's current lifecycle state.
func (e *Evaluator) State() State { return e.state }

// Execute runs code against proxy. On success it returns an Outcome and nil
// error and transitions to StateReturned. A script-thrown exception (or a
// proxy error reaching the script) transitions to StateThrown and is
// returned wrapped as taxonomy.ScriptError. A wall-clock timeout transitions
// to StateTimedOut and is returned as taxonomy.SandboxTimeout. Logs recorded
// before the timeout are kept on the returned Outcome only when the script
// itself stops on the expired deadline first; when the timeout fires while
// the script is still running, the returned Outcome is empty.
func (e *Evaluator) Execute(ctx context.Context, code string, proxy Proxy) (Outcome, error) {
	e.state = StateRunning

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type runResult struct {
		outcome Outcome
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		outcome, err := Run(runCtx, code, proxy, e.clock)
		done <- runResult{outcome: outcome, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if runCtx.Err() == context.DeadlineExceeded {
				e.state = StateTimedOut
				return res.outcome, taxonomy.SandboxTimeout("script exceeded its execution timeout")
			}
			e.state = StateThrown
			return res.outcome, taxonomy.ScriptError(res.err)
		}
		e.state = StateReturned
		return res.outcome, nil
	case <-runCtx.Done():
		e.state = StateTimedOut
		return Outcome{}, taxonomy.SandboxTimeout("script exceeded its execution timeout")
	}
}
