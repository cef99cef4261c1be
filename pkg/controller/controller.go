// Package controller is the two-phase controller (component G): it builds
// the per-execution budget tracker, diff recorder, and proxy around an
// adapter, runs the script evaluator, and decides — based on mode and the
// recorded command-class entries — whether to mint an approval token,
// execute under one, or report failure. It is grounded on the teacher's
// cmd/helm orchestration style (one function wiring several owned
// subsystems per request) generalized from a CLI dispatch to a single
// execute() entry point.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jamfkit/core/pkg/approval"
	"github.com/jamfkit/core/pkg/audit"
	"github.com/jamfkit/core/pkg/budget"
	"github.com/jamfkit/core/pkg/diff"
	"github.com/jamfkit/core/pkg/proxy"
	"github.com/jamfkit/core/pkg/script"
)

// Input is the execute() request, matching spec.md §6's entry point.
type Input struct {
	Code         string
	Mode         proxy.Mode
	Capabilities []string
	Approval     string
}

// ApprovalRequired carries a newly minted token and the operations it
// authorizes, attached to a Result when a plan (or token-less apply) run
// recorded at least one command-class operation.
type ApprovalRequired struct {
	Token      string
	Operations []diff.Entry
}

// Result is spec.md §3's ExecutionResult.
type Result struct {
	Success          bool
	Mode             proxy.Mode
	ReturnValue      any
	Diff             []diff.Entry
	Logs             []script.LogEntry
	Metrics          diff.Metrics
	ApprovalRequired *ApprovalRequired
}

// Config holds the configuration options spec.md §6 enumerates for a
// Controller.
type Config struct {
	ExecutionTimeout time.Duration
	Caps             budget.Caps
	ApprovalTTL      time.Duration
}

// DefaultConfig returns spec.md's defaults: 30s execution timeout, default
// budget caps, 300s approval TTL.
func DefaultConfig() Config {
	return Config{
		ExecutionTimeout: 30 * time.Second,
		Caps:             budget.DefaultCaps(),
		ApprovalTTL:      300 * time.Second,
	}
}

// Controller orchestrates executions against a shared, process-wide
// approval store. Unlike the budget tracker, diff recorder, and proxy it
// constructs per call, the Controller itself and its Store may be reused
// and called concurrently.
type Controller struct {
	approvals *approval.Store
	audit     *audit.Log
	config    Config
	logger    *slog.Logger
	clock     func() time.Time
}

// Option configures a Controller at construction.
type Option func(*Controller)

// WithClock overrides the controller's clock, for deterministic duration
// and log-timestamp tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithAuditLog attaches a tamper-evident audit trail: every Execute call
// appends one summary entry, whether it succeeded, failed, or only minted
// an approval token.
func WithAuditLog(log *audit.Log) Option {
	return func(c *Controller) { c.audit = log }
}

// New constructs a Controller sharing approvals across every Execute call.
func New(approvals *approval.Store, config Config, opts ...Option) *Controller {
	c := &Controller{
		approvals: approvals,
		config:    config,
		logger:    slog.Default().With("component", "controller"),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs one script against adapter under in.Mode, returning a
// Result. Execute never returns a non-nil error itself: every failure mode
// spec.md §7 defines is folded into Result.Success=false, matching "the
// top-level controller catches everything."
func (c *Controller) Execute(ctx context.Context, adapter proxy.Adapter, in Input) Result {
	start := c.clock()

	tracker := budget.New(c.config.Caps)
	recorder := diff.New()
	px := proxy.New(adapter, in.Mode, in.Capabilities, in.Approval, tracker, recorder, c.approvals, c.logger)

	ev := script.New(script.WithTimeout(c.config.ExecutionTimeout), script.WithClock(c.clock))
	outcome, err := ev.Execute(ctx, in.Code, px)

	duration := c.clock().Sub(start)
	entries := recorder.Entries()
	metrics := recorder.Metrics(duration)

	if err != nil {
		c.logger.Error("execution failed", "mode", in.Mode, "error", err)
		c.recordAudit(string(in.Mode), "execution-failed", err.Error())
		logs := append(outcome.Logs, script.LogEntry{Level: "error", Message: err.Error(), At: c.clock()})
		return Result{
			Success: false,
			Mode:    in.Mode,
			Diff:    entries,
			Logs:    logs,
			Metrics: metrics,
		}
	}

	commandEntries := recorder.CommandEntries()
	result := Result{
		Success:     true,
		Mode:        in.Mode,
		ReturnValue: outcome.ReturnValue,
		Diff:        entries,
		Logs:        outcome.Logs,
		Metrics:     metrics,
	}

	switch in.Mode {
	case proxy.ModePlan:
		// Plan is the authoritative source of truth for what apply is
		// later authorized to do: any command-class entry recorded this
		// run mints a token, whether or not the run "succeeded" at
		// anything else.
		if len(commandEntries) > 0 {
			result.ApprovalRequired = c.mint(commandEntries)
		}
	case proxy.ModeApply:
		if in.Approval == "" && len(commandEntries) > 0 {
			// Apply without a token that reached command-class operations:
			// identical token-minting behavior to plan, no commands ran.
			result.ApprovalRequired = c.mint(commandEntries)
		} else if in.Approval != "" {
			// Commands (if any) already executed through the proxy under
			// the presented token; the token is single-use.
			c.approvals.Delete(in.Approval)
		}
	}

	detail := fmt.Sprintf("reads=%d writes=%d commands=%d", metrics.Reads, metrics.Writes, metrics.Commands)
	if result.ApprovalRequired != nil {
		c.recordAudit(string(in.Mode), "approval-minted", detail)
	} else {
		c.recordAudit(string(in.Mode), "execution-succeeded", detail)
	}

	return result
}

func (c *Controller) mint(entries []diff.Entry) *ApprovalRequired {
	ops := make([]approval.Operation, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, approval.Operation{Method: e.Method, Args: e.Args})
	}
	token := c.approvals.Put(ops, c.config.ApprovalTTL)
	return &ApprovalRequired{Token: token, Operations: entries}
}

// recordAudit appends one summary entry if an audit log was attached via
// WithAuditLog; a Controller constructed without one stays audit-free.
func (c *Controller) recordAudit(mode, action, details string) {
	if c.audit == nil {
		return
	}
	c.audit.Append("controller", action, mode, details)
}
