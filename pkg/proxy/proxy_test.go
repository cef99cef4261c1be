package proxy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamfkit/core/pkg/approval"
	"github.com/jamfkit/core/pkg/budget"
	"github.com/jamfkit/core/pkg/diff"
	"github.com/jamfkit/core/pkg/proxy"
	"github.com/jamfkit/core/pkg/taxonomy"
)

type fakeAdapter struct {
	calls int
	out   any
	err   error
}

func (f *fakeAdapter) Call(_ context.Context, _ string, _ []any) (any, error) {
	f.calls++
	return f.out, f.err
}

func newProxy(mode proxy.Mode, caps []string, token string, adapter proxy.Adapter, approvals *approval.Store) (*proxy.Proxy, *diff.Recorder) {
	tracker := budget.New(budget.DefaultCaps())
	recorder := diff.New()
	if approvals == nil {
		approvals = approval.New()
	}
	return proxy.New(adapter, mode, caps, token, tracker, recorder, approvals, nil), recorder
}

func TestProxy_ReadExecutes(t *testing.T) {
	adapter := &fakeAdapter{out: []any{1, 2}}
	p, rec := newProxy(proxy.ModePlan, []string{"read:computers"}, "", adapter, nil)

	out, err := p.Call(context.Background(), "getAllComputers", []any{5})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, out)
	assert.Equal(t, 1, adapter.calls)
	assert.Len(t, rec.Entries(), 1)
}

func TestProxy_AccessDenied(t *testing.T) {
	adapter := &fakeAdapter{}
	p, rec := newProxy(proxy.ModePlan, []string{"read:policies"}, "", adapter, nil)

	_, err := p.Call(context.Background(), "getAllComputers", nil)
	require.Error(t, err)
	code, ok := taxonomy.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.CodeAccessDenied, code)
	assert.Equal(t, 0, adapter.calls)
	assert.Empty(t, rec.Entries())
}

func TestProxy_PlanModeBlocksWrite(t *testing.T) {
	adapter := &fakeAdapter{}
	p, rec := newProxy(proxy.ModePlan, []string{"write:policies"}, "", adapter, nil)

	out, err := p.Call(context.Background(), "createPolicy", []any{map[string]any{"name": "X"}})
	require.NoError(t, err)
	assert.Equal(t, 0, adapter.calls)
	blocked, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, blocked["blocked"])
	assert.Equal(t, "createPolicy", blocked["method"])
	assert.Equal(t, "write", blocked["classification"])
	assert.Len(t, rec.Entries(), 1)
	assert.True(t, rec.Entries()[0].Blocked)
}

func TestProxy_BudgetExceeded(t *testing.T) {
	tracker := budget.New(budget.Caps{Reads: 1, Writes: 1, Commands: 1})
	recorder := diff.New()
	adapter := &fakeAdapter{out: "ok"}
	p := proxy.New(adapter, proxy.ModePlan, []string{"read:computers"}, "", tracker, recorder, approval.New(), nil)

	_, err := p.Call(context.Background(), "getAllComputers", nil)
	require.NoError(t, err)

	_, err = p.Call(context.Background(), "getComputerDetails", nil)
	require.Error(t, err)
	code, _ := taxonomy.CodeOf(err)
	assert.Equal(t, taxonomy.CodeBudgetExceeded, code)
}

func TestProxy_ApplyModeCommandWithoutTokenBlocks(t *testing.T) {
	adapter := &fakeAdapter{}
	p, rec := newProxy(proxy.ModeApply, []string{"command:policies"}, "", adapter, nil)

	out, err := p.Call(context.Background(), "executePolicy", []any{1})
	require.NoError(t, err)
	assert.Equal(t, 0, adapter.calls)
	blocked := out.(map[string]any)
	assert.Equal(t, true, blocked["requiresApproval"])
	assert.True(t, rec.Entries()[0].Blocked)
}

func TestProxy_ApplyModeWithValidTokenExecutes(t *testing.T) {
	approvals := approval.New()
	token := approvals.Put([]approval.Operation{{Method: "executePolicy"}}, time.Minute)
	adapter := &fakeAdapter{out: "done"}
	p, rec := newProxy(proxy.ModeApply, []string{"command:policies"}, token, adapter, approvals)

	out, err := p.Call(context.Background(), "executePolicy", []any{1})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 1, adapter.calls)
	assert.False(t, rec.Entries()[0].Blocked)
}

func TestProxy_ApplyModeWithInvalidTokenFails(t *testing.T) {
	adapter := &fakeAdapter{}
	p, _ := newProxy(proxy.ModeApply, []string{"command:policies"}, "not-a-real-token", adapter, nil)

	_, err := p.Call(context.Background(), "executePolicy", []any{1})
	require.Error(t, err)
	code, _ := taxonomy.CodeOf(err)
	assert.Equal(t, taxonomy.CodeInvalidApproval, code)
	assert.Equal(t, 0, adapter.calls)
}

func TestProxy_InvalidArgsFailSchemaValidation(t *testing.T) {
	adapter := &fakeAdapter{}
	p, rec := newProxy(proxy.ModePlan, []string{"write:policies"}, "", adapter, nil)

	_, err := p.Call(context.Background(), "createPolicy", []any{map[string]any{"nope": "missing name"}})
	require.Error(t, err)
	code, ok := taxonomy.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.CodeAPIError, code)
	assert.Equal(t, 0, adapter.calls)
	assert.Empty(t, rec.Entries(), "a schema-rejected call never reaches plan-mode recording")
}

func TestProxy_UnknownMethodIsInvisible(t *testing.T) {
	adapter := &fakeAdapter{}
	p, _ := newProxy(proxy.ModePlan, []string{"read:*"}, "", adapter, nil)

	_, err := p.Call(context.Background(), "dropAllComputers", nil)
	require.Error(t, err)
	assert.Equal(t, 0, adapter.calls)
}
