// Package proxy is the mediating proxy (component E): it wraps an adapter
// and exposes exactly the methods named in the classification catalog,
// running every call through capability, budget, plan-mode, and
// apply-mode-approval gates before forwarding to the adapter. It is grounded
// on the teacher's pkg/firewall.PolicyFirewall — the same allowlist-then-
// delegate shape (AllowTool → CallTool), generalized from a single
// allow/deny gate into the full classification/budget/plan/approval
// pipeline spec.md §4.E requires.
package proxy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jamfkit/core/pkg/approval"
	"github.com/jamfkit/core/pkg/budget"
	"github.com/jamfkit/core/pkg/catalog"
	"github.com/jamfkit/core/pkg/diff"
	"github.com/jamfkit/core/pkg/policy"
	"github.com/jamfkit/core/pkg/taxonomy"
)

// Mode is the execution mode a Proxy was constructed for.
type Mode string

const (
	ModePlan  Mode = "plan"
	ModeApply Mode = "apply"
)

// Adapter is the set of named async operations the proxy forwards to, fixed
// by the catalog (spec.md §6 "adapter boundary"). Any object honouring this
// shape is acceptable — a real REST client or a test double.
type Adapter interface {
	Call(ctx context.Context, method string, args []any) (any, error)
}

// Proxy mediates one execution's calls. It is single-use: B and C are
// created per execution and are not safe to reuse across executions, so a
// Proxy must not be shared between two Execute calls.
type Proxy struct {
	adapter       Adapter
	mode          Mode
	capabilities  []string
	approvalToken string
	budget        *budget.Tracker
	diff          *diff.Recorder
	approvals     *approval.Store
	logger        *slog.Logger
}

// New constructs a Proxy scoped to one execution.
func New(adapter Adapter, mode Mode, capabilities []string, approvalToken string, tracker *budget.Tracker, recorder *diff.Recorder, approvals *approval.Store, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		adapter:       adapter,
		mode:          mode,
		capabilities:  capabilities,
		approvalToken: approvalToken,
		budget:        tracker,
		diff:          recorder,
		approvals:     approvals,
		logger:        logger.With("component", "proxy"),
	}
}

// Call implements script.Proxy. It is the only entry point the sandboxed
// script can reach; method names absent from the catalog are invisible.
func (p *Proxy) Call(ctx context.Context, method string, args []any) (any, error) {
	// 1. Visibility.
	entry, ok := catalog.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("%q is not a recognized operation", method)
	}

	// 2. Capability check.
	decision := policy.CheckAccess(method, p.capabilities)
	if !decision.Allowed {
		p.logger.Error("access denied", "method", method, "reason", decision.Reason)
		return nil, taxonomy.AccessDenied(decision.Reason)
	}

	// 2b. Argument schema validation, for the entries that declare one.
	if err := catalog.ValidateArgs(entry, args); err != nil {
		p.logger.Error("argument validation failed", "method", method, "error", err)
		return nil, taxonomy.APIError(method, err)
	}

	// 3. Budget check.
	result := p.budget.TrackCall(entry.Classification)
	if !result.Allowed {
		p.logger.Error("budget exceeded", "method", method, "classification", entry.Classification, "reason", result.Reason)
		return nil, taxonomy.BudgetExceeded(result.Reason)
	}

	if entry.Classification != catalog.Read {
		p.logger.Info("mediated call", "method", method, "classification", entry.Classification, "mode", p.mode)
	}

	// 4. Plan-mode gating: every non-read call is recorded and blocked.
	if entry.Classification != catalog.Read && p.mode == ModePlan {
		p.diff.RecordBlocked(entry.Classification, method, args, entry.NeedsApproval)
		return map[string]any{
			"blocked":        true,
			"method":         method,
			"args":           args,
			"classification": string(entry.Classification),
		}, nil
	}

	// 5. Apply-mode approval gating: command-class operations requiring
	// approval must present a valid, unexpired token.
	if p.mode == ModeApply && entry.Classification == catalog.Command && policy.RequiresApproval(method) {
		if p.approvalToken == "" {
			p.diff.RecordBlocked(entry.Classification, method, args, true)
			return map[string]any{
				"blocked":          true,
				"requiresApproval": true,
				"method":           method,
				"args":             args,
			}, nil
		}
		if _, found := p.approvals.Get(p.approvalToken); !found {
			p.logger.Error("invalid approval token presented", "method", method)
			return nil, taxonomy.InvalidApproval("approval token is missing, expired, or already consumed")
		}
		// Per spec.md §4.E, the token authorizes the whole command set
		// recorded at plan time; no per-operation match against the
		// token's recorded operations is required.
	}

	// 6. Execute.
	out, err := p.adapter.Call(ctx, method, args)
	if err != nil {
		p.diff.RecordError(entry.Classification, method, args, err)
		p.logger.Error("adapter call failed", "method", method, "error", err)
		return nil, err
	}
	p.diff.Record(entry.Classification, method, args, out)
	return out, nil
}
