package adapter_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamfkit/core/pkg/adapter"
)

func TestAdapter_ConstructionRequiresCredentials(t *testing.T) {
	stub := adapter.NewStubAPI()
	_, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), adapter.Credentials{}, adapter.DefaultConfig())
	assert.Error(t, err)
}

func basicCreds() adapter.Credentials {
	return adapter.Credentials{Username: "admin", Password: "hunter2"}
}

func TestAdapter_ReadThenCache(t *testing.T) {
	stub := adapter.NewStubAPI()
	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), basicCreds(), adapter.DefaultConfig())
	require.NoError(t, err)

	out, err := a.Call(context.Background(), "getAllComputers", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	// A second call for the same key should be served from cache; we can't
	// observe the stub directly, but the call must still succeed instantly.
	out2, err := a.Call(context.Background(), "getAllComputers", nil)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
}

func TestAdapter_WriteInvalidatesCache(t *testing.T) {
	stub := adapter.NewStubAPI()
	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), basicCreds(), adapter.DefaultConfig())
	require.NoError(t, err)

	list1, err := a.Call(context.Background(), "getAllPolicies", nil)
	require.NoError(t, err)
	before := len(list1.([]any))

	_, err = a.Call(context.Background(), "createPolicy", []any{map[string]any{"name": "New Policy"}})
	require.NoError(t, err)

	list2, err := a.Call(context.Background(), "getAllPolicies", nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, len(list2.([]any)), "cache must be invalidated after a write so reads observe new state")
}

func TestAdapter_UnknownMethod(t *testing.T) {
	stub := adapter.NewStubAPI()
	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), basicCreds(), adapter.DefaultConfig())
	require.NoError(t, err)

	_, err = a.Call(context.Background(), "doesNotExist", nil)
	assert.Error(t, err)
}

func TestAdapter_CommandExecutesAck(t *testing.T) {
	stub := adapter.NewStubAPI()
	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), basicCreds(), adapter.DefaultConfig())
	require.NoError(t, err)

	out, err := a.Call(context.Background(), "executePolicy", []any{"1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.(map[string]any)["status"])
}

// countingAuthBackend lets tests assert how many times each acquisition
// path was invoked, to check single-flight refresh coordination (testable
// property 8).
type countingAuthBackend struct {
	bearerCalls int32
	delay       time.Duration
}

func (b *countingAuthBackend) AcquireBearer(ctx context.Context, username, password string) (string, time.Duration, error) {
	atomic.AddInt32(&b.bearerCalls, 1)
	time.Sleep(b.delay)
	return "tok", time.Hour, nil
}

func (b *countingAuthBackend) AcquireOAuth(context.Context, string, string) (string, time.Duration, error) {
	return "", 0, fmt.Errorf("not configured")
}

func TestAdapter_ConcurrentRefreshCoordination(t *testing.T) {
	stub := adapter.NewStubAPI()
	backend := &countingAuthBackend{delay: 20 * time.Millisecond}
	a, err := adapter.New(stub.Classic(), stub.Modern(), backend, basicCreds(), adapter.DefaultConfig())
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = a.Call(context.Background(), "getAllComputers", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.bearerCalls), "concurrent callers must share a single refresh")
}

// TestAdapter_ConcurrentSearchIsRaceFree drives many concurrent search*
// calls — the only path that can reach advancedSearchIndex — under -race.
// The stub's dialects answer every search directly, so the advanced-search
// fallback is not reached here; the test only checks that concurrent
// searches complete without a data race.
func TestAdapter_ConcurrentSearchIsRaceFree(t *testing.T) {
	stub := adapter.NewStubAPI()
	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), basicCreds(), adapter.DefaultConfig())
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		query := fmt.Sprintf("query-%d", i%5) // a handful of repeated queries, to exercise find-or-create
		go func(q string) {
			defer wg.Done()
			_, _ = a.Call(context.Background(), "searchComputers", []any{q})
		}(query)
	}
	wg.Wait()
}

func TestAdapter_ListPaginated(t *testing.T) {
	stub := adapter.NewStubAPI()
	broker := adapter.NewCursorBroker()
	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), basicCreds(), adapter.DefaultConfig(), adapter.WithCursorBroker(broker))
	require.NoError(t, err)

	page1, cursor1, err := a.ListPaginated(context.Background(), "getAllComputers", nil, "", 1)
	require.NoError(t, err)
	assert.Len(t, page1, 1)
	require.NotEmpty(t, cursor1, "more than one computer is seeded, so a continuation cursor must be minted")

	page2, cursor2, err := a.ListPaginated(context.Background(), "getAllComputers", nil, cursor1, 1)
	require.NoError(t, err)
	assert.Len(t, page2, 1)
	assert.NotEqual(t, page1[0], page2[0])
	assert.Empty(t, cursor2, "no more computers remain after the second page")
}

func TestAdapter_ListPaginatedRejectsCursorForWrongMethod(t *testing.T) {
	stub := adapter.NewStubAPI()
	broker := adapter.NewCursorBroker()
	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), basicCreds(), adapter.DefaultConfig(), adapter.WithCursorBroker(broker))
	require.NoError(t, err)

	_, cursor, err := a.ListPaginated(context.Background(), "getAllComputers", nil, "", 1)
	require.NoError(t, err)
	require.NotEmpty(t, cursor)

	_, _, err = a.ListPaginated(context.Background(), "getAllMobileDevices", nil, cursor, 1)
	assert.Error(t, err)
}

func oauthCreds() adapter.Credentials {
	return adapter.Credentials{ClientID: "svc-account", ClientSecret: "initial-secret"}
}

// TestAdapter_OAuthCredentialTrackedForRotation verifies an adapter
// constructed with oauth-only credentials warns once its client secret
// enters its rotation grace period, and stays quiet before that.
func TestAdapter_OAuthCredentialTrackedForRotation(t *testing.T) {
	stub := adapter.NewStubAPI()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	a, err := adapter.New(stub.Classic(), stub.Modern(), stub.AuthBackend(), oauthCreds(), adapter.DefaultConfig(),
		adapter.WithClock(clock), adapter.WithLogger(logger))
	require.NoError(t, err)

	// executePolicy is command-classified and never cacheable, so every call
	// genuinely reaches checkCredentialRotation rather than short-circuiting
	// on a cache hit.
	_, err = a.Call(context.Background(), "executePolicy", []any{"1"})
	require.NoError(t, err)
	assert.NotContains(t, logBuf.String(), "due for rotation", "a freshly issued client secret should not warn yet")

	now = now.Add(100 * 24 * time.Hour) // well past the 90-day default max age

	_, err = a.Call(context.Background(), "executePolicy", []any{"1"})
	require.NoError(t, err)
	assert.Contains(t, logBuf.String(), "due for rotation")
}

func TestCursorBroker_IssueResolveExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	b := adapter.NewCursorBroker().WithClock(clock)

	tok := b.Issue("getAllComputers", 50, time.Minute)
	method, offset, ok := b.Resolve(tok)
	require.True(t, ok)
	assert.Equal(t, "getAllComputers", method)
	assert.Equal(t, 50, offset)

	now = now.Add(2 * time.Minute)
	_, _, ok = b.Resolve(tok)
	assert.False(t, ok)
}
