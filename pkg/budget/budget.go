// Package budget tracks per-execution counters for reads, writes, and
// commands against configured caps. A Tracker is created fresh per execution
// and is never shared between invocations — budgets are not a cross-execution
// resource.
package budget

import (
	"fmt"
	"sync"

	"github.com/jamfkit/core/pkg/catalog"
)

// Caps are the three independent per-execution ceilings.
type Caps struct {
	Reads    int
	Writes   int
	Commands int
}

// DefaultCaps returns spec.md's default caps: 500 reads, 50 writes, 20
// commands.
func DefaultCaps() Caps {
	return Caps{Reads: 500, Writes: 50, Commands: 20}
}

// Result is the outcome of one trackCall.
type Result struct {
	Allowed bool
	Reason  string
}

// Tracker holds the three counters for a single execution.
type Tracker struct {
	mu       sync.Mutex
	caps     Caps
	reads    int
	writes   int
	commands int
}

// New creates a Tracker with the given caps.
func New(caps Caps) *Tracker {
	return &Tracker{caps: caps}
}

// TrackCall increments the counter matching the call's classification cls
// and reports whether the call is within budget. The
// counter is incremented before the allowed/denied decision is made; on
// denial the counter is frozen at the cap rather than left at the
// over-the-cap value, per spec.md §3.
func (t *Tracker) TrackCall(cls catalog.Classification) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch cls {
	case catalog.Read:
		return track(&t.reads, t.caps.Reads, "read")
	case catalog.Write:
		return track(&t.writes, t.caps.Writes, "write")
	case catalog.Command:
		return track(&t.commands, t.caps.Commands, "command")
	default:
		return Result{Allowed: true}
	}
}

func track(counter *int, cap int, label string) Result {
	*counter++
	if *counter > cap {
		*counter = cap
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("%s budget of %d exceeded", label, cap),
		}
	}
	return Result{Allowed: true}
}

// Counts returns a snapshot of the current counters.
func (t *Tracker) Counts() (reads, writes, commands int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads, t.writes, t.commands
}

// Caps returns the caps this tracker enforces.
func (t *Tracker) Caps() Caps {
	return t.caps
}
