package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamfkit/core/pkg/approval"
	"github.com/jamfkit/core/pkg/audit"
	"github.com/jamfkit/core/pkg/budget"
	"github.com/jamfkit/core/pkg/controller"
	"github.com/jamfkit/core/pkg/proxy"
)

type fakeAdapter struct {
	calls   []string
	results map[string]any
}

func (f *fakeAdapter) Call(_ context.Context, method string, _ []any) (any, error) {
	f.calls = append(f.calls, method)
	return f.results[method], nil
}

func newController(clock func() time.Time) (*controller.Controller, *approval.Store) {
	store := approval.New()
	if clock != nil {
		store.WithClock(clock)
	}
	cfg := controller.DefaultConfig()
	opts := []controller.Option{}
	if clock != nil {
		opts = append(opts, controller.WithClock(clock))
	}
	return controller.New(store, cfg, opts...), store
}

// S1 — read executes.
func TestController_S1_ReadExecutes(t *testing.T) {
	c, _ := newController(nil)
	adapter := &fakeAdapter{results: map[string]any{
		"getAllComputers": []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}},
	}}
	res := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.getAllComputers(5)`,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"read:computers"},
	})
	require.True(t, res.Success)
	assert.Equal(t, []any{map[string]any{"id": "1"}, map[string]any{"id": "2"}}, res.ReturnValue)
	assert.Equal(t, 1, res.Metrics.Reads)
	assert.Len(t, res.Diff, 1)
}

// S2 — plan blocks write.
func TestController_S2_PlanBlocksWrite(t *testing.T) {
	c, _ := newController(nil)
	adapter := &fakeAdapter{}
	res := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.createPolicy({name:'X'})`,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"write:policies"},
	})
	require.True(t, res.Success)
	blocked := res.ReturnValue.(map[string]any)
	assert.Equal(t, true, blocked["blocked"])
	assert.Equal(t, "createPolicy", blocked["method"])
	assert.Equal(t, "write", blocked["classification"])
	assert.Empty(t, adapter.calls)
	assert.Len(t, res.Diff, 1)
	assert.True(t, res.Diff[0].Blocked)
}

// S3 — access denied.
func TestController_S3_AccessDenied(t *testing.T) {
	c, _ := newController(nil)
	adapter := &fakeAdapter{}
	res := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.getAllComputers()`,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"read:policies"},
	})
	assert.False(t, res.Success)
	assert.Empty(t, adapter.calls)
	require.NotEmpty(t, res.Logs)
}

// S4 — budget exceeded.
func TestController_S4_BudgetExceeded(t *testing.T) {
	store := approval.New()
	cfg := controller.DefaultConfig()
	cfg.Caps = budget.Caps{Reads: 2, Writes: 50, Commands: 20}
	c := controller.New(store, cfg)
	adapter := &fakeAdapter{}
	code := `
		const a = await client.getAllComputers();
		const b = await client.getAllPolicies();
		const d = await client.getAllMobileDevices();
		return [a, b, d];
	`
	res := c.Execute(context.Background(), adapter, controller.Input{
		Code:         code,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"read:*"},
	})
	assert.False(t, res.Success)
	assert.Len(t, res.Diff, 2)
}

// S5 — plan->apply with approval, and token single-use.
func TestController_S5_PlanThenApplyWithApproval(t *testing.T) {
	c, _ := newController(nil)
	adapter := &fakeAdapter{}

	plan := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.executePolicy(1)`,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"command:policies"},
	})
	require.True(t, plan.Success)
	require.NotNil(t, plan.ApprovalRequired)
	assert.Empty(t, adapter.calls)
	token := plan.ApprovalRequired.Token

	apply := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.executePolicy(1)`,
		Mode:         proxy.ModeApply,
		Capabilities: []string{"command:policies"},
		Approval:     token,
	})
	require.True(t, apply.Success)
	assert.Equal(t, 1, len(adapter.calls))
	assert.Nil(t, apply.ApprovalRequired)

	// Third run with the same, now-consumed token must fail.
	third := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.executePolicy(1)`,
		Mode:         proxy.ModeApply,
		Capabilities: []string{"command:policies"},
		Approval:     token,
	})
	assert.False(t, third.Success)
	assert.Equal(t, 1, len(adapter.calls), "token must be single-use")
}

// S6 — expired token.
func TestController_S6_ExpiredToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c, _ := newController(clock)
	adapter := &fakeAdapter{}

	plan := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.executePolicy(1)`,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"command:policies"},
	})
	require.NotNil(t, plan.ApprovalRequired)
	token := plan.ApprovalRequired.Token

	now = now.Add(301 * time.Second)

	apply := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.executePolicy(1)`,
		Mode:         proxy.ModeApply,
		Capabilities: []string{"command:policies"},
		Approval:     token,
	})
	assert.False(t, apply.Success)
	assert.Empty(t, adapter.calls)
}

// S7 — sandbox isolation.
func TestController_S7_SandboxIsolation(t *testing.T) {
	c, _ := newController(nil)
	adapter := &fakeAdapter{}
	res := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return typeof require + "/" + typeof fetch + "/" + typeof process`,
		Mode:         proxy.ModePlan,
		Capabilities: nil,
	})
	require.True(t, res.Success)
	assert.Equal(t, "undefined/undefined/undefined", res.ReturnValue)
}

func TestController_ApplyWithoutTokenButCommandReached_MintsToken(t *testing.T) {
	c, _ := newController(nil)
	adapter := &fakeAdapter{}
	res := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.executePolicy(1)`,
		Mode:         proxy.ModeApply,
		Capabilities: []string{"command:policies"},
	})
	require.True(t, res.Success)
	require.NotNil(t, res.ApprovalRequired)
	assert.Empty(t, adapter.calls)
}

func TestController_WithAuditLogRecordsOneEntryPerExecute(t *testing.T) {
	store := approval.New()
	log := audit.New()
	c := controller.New(store, controller.DefaultConfig(), controller.WithAuditLog(log))
	adapter := &fakeAdapter{results: map[string]any{"getAllComputers": []any{1}}}

	res := c.Execute(context.Background(), adapter, controller.Input{
		Code:         `return await client.getAllComputers()`,
		Mode:         proxy.ModePlan,
		Capabilities: []string{"read:computers"},
	})

	require.True(t, res.Success)
	require.Len(t, log.Entries(), 1)
	assert.NoError(t, log.VerifyChain())
}
