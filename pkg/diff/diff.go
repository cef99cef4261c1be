// Package diff records the ordered sequence of mediated operations produced
// by one execution and derives the resulting execution metrics. A Recorder is
// created fresh per execution and owned by the two-phase controller; it is
// never shared across executions.
package diff

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jamfkit/core/pkg/catalog"
)

// Entry is one mediated call, in call order. Exactly one Entry is appended
// per mediated call: either blocked or executed, never both.
type Entry struct {
	Action           catalog.Classification `json:"action"`
	Method           string                 `json:"method"`
	Args             []any                  `json:"args"`
	Result           any                    `json:"result,omitempty"`
	Blocked          bool                   `json:"blocked,omitempty"`
	RequiresApproval bool                   `json:"requiresApproval,omitempty"`
	Error            string                 `json:"error,omitempty"`
	RecordedAt       time.Time              `json:"recordedAt"`
}

// Metrics summarizes a Recorder's entries by classification, plus wall-clock
// duration. Computed from the Recorder at execution completion.
type Metrics struct {
	Reads      int   `json:"reads"`
	Writes     int   `json:"writes"`
	Commands   int   `json:"commands"`
	DurationMs int64 `json:"durationMs"`
}

// Recorder is an ordered, append-only log of DiffEntry for one execution.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty Recorder for a fresh execution.
func New() *Recorder {
	return &Recorder{}
}

// deepCopyArgs stores arguments by value: a round trip through JSON is the
// simplest deep copy that works uniformly across the dynamically typed
// argument values a script can pass, and matches how the script evaluator
// already marshals values at the proxy boundary.
func deepCopyArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		// Best effort: fall back to the original slice rather than losing
		// the entry; this only matters for values json can't represent.
		out := make([]any, len(args))
		copy(out, args)
		return out
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		out = append([]any(nil), args...)
	}
	return out
}

// Record appends one completed or blocked entry and returns it.
func (r *Recorder) Record(action catalog.Classification, method string, args []any, result any) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := Entry{
		Action:     action,
		Method:     method,
		Args:       deepCopyArgs(args),
		Result:     result,
		RecordedAt: time.Now(),
	}
	r.entries = append(r.entries, e)
	return e
}

// RecordBlocked appends a blocked entry (plan-mode gating or missing
// approval); no adapter call occurred.
func (r *Recorder) RecordBlocked(action catalog.Classification, method string, args []any, requiresApproval bool) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := Entry{
		Action:           action,
		Method:           method,
		Args:             deepCopyArgs(args),
		Blocked:          true,
		RequiresApproval: requiresApproval,
		RecordedAt:       time.Now(),
	}
	r.entries = append(r.entries, e)
	return e
}

// RecordError appends an entry for a call that reached the adapter but
// failed; the diff still records exactly one entry for the call.
func (r *Recorder) RecordError(action catalog.Classification, method string, args []any, err error) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := Entry{
		Action:     action,
		Method:     method,
		Args:       deepCopyArgs(args),
		Error:      err.Error(),
		RecordedAt: time.Now(),
	}
	r.entries = append(r.entries, e)
	return e
}

// Entries returns a snapshot of the sequence in call order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// CommandEntries returns the subset of entries classified as command, in
// call order. Used by the two-phase controller to decide whether a plan run
// needs an approval token.
func (r *Recorder) CommandEntries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Action == catalog.Command {
			out = append(out, e)
		}
	}
	return out
}

// Metrics computes counts by classification plus the supplied duration.
// Blocked entries are not counted as executed reads/writes/commands; the
// budget tracker is the source of truth for consumed counters, and Metrics
// mirrors it for entries that actually executed.
func (r *Recorder) Metrics(duration time.Duration) Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	var m Metrics
	for _, e := range r.entries {
		if e.Blocked {
			continue
		}
		switch e.Action {
		case catalog.Read:
			m.Reads++
		case catalog.Write:
			m.Writes++
		case catalog.Command:
			m.Commands++
		}
	}
	m.DurationMs = duration.Milliseconds()
	return m
}
