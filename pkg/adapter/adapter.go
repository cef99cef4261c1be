// Package adapter is the hybrid API adapter (component I): the auth, cache,
// and dual-dialect fallback skeleton the proxy calls into to actually reach
// the device-management surface. The concrete ~110 method bodies are out of
// scope (spec.md §1); StubAPI in stub.go supplies a generated-looking
// in-memory implementation of the full catalog for tests and the demo.
//
// Grounded on the teacher's pkg/util/resiliency (circuit breaking, backoff)
// and pkg/credentials (AEAD header sealing, rotation) — see breaker.go for
// the former; auth.go seals every bearer/oauth token and the basic-auth
// header in a credentials.Box, and New wires a credentials.RotationManager
// to track the oauth client secret's age — generalized from "resilient HTTP
// client" to "resilient dual-dialect adapter with fallback."
package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jamfkit/core/pkg/catalog"
	"github.com/jamfkit/core/pkg/credentials"
	"github.com/jamfkit/core/pkg/policy"
	"github.com/jamfkit/core/pkg/taxonomy"
)

// Config holds the adapter's sizing and timeout knobs, the options table
// spec.md §6 names for the adapter half of configuration.
type Config struct {
	CacheMaxEntries       int
	CacheTTL              time.Duration
	RequestTimeout        time.Duration
	RejectUnauthorizedTLS bool

	// RequestsPerSecond and Burst bound how fast the adapter paces calls
	// against each dialect, independent of the proxy's own budget caps:
	// the budget limits how many operations a single execution may attempt,
	// this limits how fast any execution may hit the upstream API.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns spec.md's defaults: 200-entry, 60s TTL cache; 30s
// per-request timeout; TLS verification on; 20 requests/sec per dialect with
// a burst of 20.
func DefaultConfig() Config {
	return Config{
		CacheMaxEntries:       200,
		CacheTTL:              60 * time.Second,
		RequestTimeout:        30 * time.Second,
		RejectUnauthorizedTLS: true,
		RequestsPerSecond:     20,
		Burst:                 20,
	}
}

// methodDialect records a catalog method's preferred dialect and whether
// its result is cacheable. Unlisted methods default to modern-preferred,
// cacheable only if their name starts with a read-ish prefix.
type methodDialect struct {
	preferred Dialect
	cacheable bool
}

// Adapter implements proxy.Adapter against two dialect Transports, guarded
// by auth, cache, circuit breakers, and fallback. It is process-global and
// safe for concurrent use, per spec.md §3 ("Ownership").
type Adapter struct {
	classic Transport
	modern  Transport

	auth    *authState
	creds   Credentials
	backend AuthBackend

	cache *cache

	classicBreaker *circuitBreaker
	modernBreaker  *circuitBreaker

	classicLimiter *rate.Limiter
	modernLimiter  *rate.Limiter

	advancedSearchMu    sync.Mutex
	advancedSearchIndex map[string]string // canonical query -> search id, find-or-create

	cursors *CursorBroker

	rotation     *credentials.RotationManager
	credentialID string

	config Config
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures an Adapter at construction.
type Option func(*Adapter)

// WithClock overrides the adapter's clock, for deterministic auth/cache
// expiry tests.
func WithClock(clock func() time.Time) Option {
	return func(a *Adapter) { a.clock = clock }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithCursorBroker enables opaque-cursor pagination via ListPaginated. A
// ListPaginated caller deals in these opaque handles, never the raw offsets
// the broker resolves them to, so a captured cursor cannot be replayed
// against a method it was not minted for. The script's paginate helper does
// not use cursors; it only splits a list the script already holds.
func WithCursorBroker(broker *CursorBroker) Option {
	return func(a *Adapter) { a.cursors = broker }
}

// New constructs an Adapter. Construction fails if creds supplies neither
// basic nor oauth credentials, per spec.md §4.I.
func New(classic, modern Transport, backend AuthBackend, creds Credentials, cfg Config, opts ...Option) (*Adapter, error) {
	if !creds.hasBasic() && !creds.hasOAuth() {
		return nil, fmt.Errorf("adapter: at least one of basic or oauth credentials must be supplied")
	}
	a := &Adapter{
		classic:             classic,
		modern:              modern,
		creds:               creds,
		backend:             backend,
		config:              cfg,
		advancedSearchIndex: make(map[string]string),
		classicBreaker:      newCircuitBreaker(5, 10*time.Second),
		modernBreaker:       newCircuitBreaker(5, 10*time.Second),
		classicLimiter:      newLimiter(cfg),
		modernLimiter:       newLimiter(cfg),
		clock:               time.Now,
		logger:              slog.Default().With("component", "adapter"),
	}
	for _, opt := range opts {
		opt(a)
	}

	auth, err := newAuthState(creds, a.clock)
	if err != nil {
		return nil, fmt.Errorf("adapter: initialize auth state: %w", err)
	}
	a.auth = auth
	a.cache = newCache(cfg.CacheMaxEntries, cfg.CacheTTL)

	if creds.hasOAuth() {
		rotation := credentials.NewRotationManager(credentials.RotationPolicy{
			MaxAge:      90 * 24 * time.Hour,
			GracePeriod: 14 * 24 * time.Hour,
		}).WithClock(a.clock)
		managed, err := rotation.Issue(creds.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("adapter: track oauth client secret for rotation: %w", err)
		}
		a.rotation = rotation
		a.credentialID = managed.ID
	}

	return a, nil
}

// checkCredentialRotation logs a warning once the adapter's oauth client
// secret enters its rotation grace period. A no-op when the adapter was
// constructed with basic-only credentials.
func (a *Adapter) checkCredentialRotation() {
	if a.rotation == nil {
		return
	}
	if a.rotation.NeedsRotation(a.credentialID) {
		a.logger.Warn("oauth client secret is due for rotation", "credentialID", a.credentialID)
	}
}

// newLimiter builds a token-bucket limiter from Config, treating a
// non-positive rate as "unbounded" rather than "never allow."
func newLimiter(cfg Config) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// cacheKey builds the structured "<operation>:<arg1>:<arg2>" key spec.md §3
// describes.
func cacheKey(method string, args []any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	return strings.Join(parts, ":")
}

func isCacheableMethod(method string) bool {
	return strings.HasPrefix(method, "getAll") || strings.HasPrefix(method, "get") ||
		strings.HasPrefix(method, "search")
}

// Call implements proxy.Adapter. It is the only method the proxy forwards
// mediated calls to.
func (a *Adapter) Call(ctx context.Context, method string, args []any) (any, error) {
	entry, ok := catalog.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("%q is not a recognized operation", method)
	}

	cacheable := entry.Classification == catalog.Read && isCacheableMethod(method)
	key := cacheKey(method, args)
	if cacheable {
		if v, hit := a.cache.get(key); hit {
			return v, nil
		}
	}

	if err := a.auth.ensure(ctx, a.creds, a.backend); err != nil {
		return nil, err
	}
	a.checkCredentialRotation()

	reqCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	result, err := a.dispatch(reqCtx, method, args)
	if err != nil {
		return nil, taxonomy.APIError(method, err)
	}

	if cacheable {
		a.cache.put(key, result)
	}
	if entry.Classification != catalog.Read {
		for _, prefix := range policy.InvalidationPrefixes(method) {
			if rest, ok := strings.CutPrefix(prefix, "list"); ok && strings.HasSuffix(rest, ":*") {
				// A "list<X>:*" prefix stands for the category's list and search
				// reads, which the catalog names getAll<X>, get<X> (group lists)
				// and search<X>.
				for _, read := range []string{"getAll", "get", "search"} {
					a.cache.invalidatePrefix(read + strings.TrimSuffix(rest, ":*"))
				}
				continue
			}
			a.cache.invalidatePrefix(expandPrefix(prefix, args))
		}
	}
	return result, nil
}

const cursorTTL = 5 * time.Minute

// ListPaginated serves a page of a "getAll"-shaped catalog method, minting
// an opaque continuation cursor when more results remain. An empty cursor
// starts from the beginning. The underlying dialect has no true server-side
// paging in this core (spec.md §1 excludes the concrete transport), so the
// page is carved out of the full cached/fetched result set; the cursor
// still protects against a script passing a raw offset the adapter never
// issued.
func (a *Adapter) ListPaginated(ctx context.Context, method string, args []any, cursorTok string, pageSize int) (page []any, nextCursor string, err error) {
	if a.cursors == nil {
		return nil, "", fmt.Errorf("adapter: ListPaginated requires WithCursorBroker")
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	offset := 0
	if cursorTok != "" {
		resolvedMethod, resolvedOffset, ok := a.cursors.Resolve(cursorTok)
		if !ok {
			return nil, "", fmt.Errorf("adapter: cursor expired or unknown")
		}
		if resolvedMethod != method {
			return nil, "", fmt.Errorf("adapter: cursor %q was not issued for %q", cursorTok, method)
		}
		offset = resolvedOffset
	}

	result, err := a.Call(ctx, method, args)
	if err != nil {
		return nil, "", err
	}
	items, ok := result.([]any)
	if !ok {
		return nil, "", fmt.Errorf("adapter: %q did not return a list", method)
	}

	end := offset + pageSize
	if end > len(items) {
		end = len(items)
	}
	if offset > len(items) {
		offset = len(items)
	}
	page = items[offset:end]

	if end < len(items) {
		nextCursor = a.cursors.Issue(method, end, cursorTTL)
	}
	return page, nextCursor, nil
}

// expandPrefix substitutes a trailing ":" in a catalog invalidation prefix
// with the call's first argument, so "getComputerDetails:" invalidated by
// updateComputer(id, ...) becomes "getComputerDetails:<id>".
func expandPrefix(prefix string, args []any) string {
	if strings.HasSuffix(prefix, ":") && len(args) > 0 {
		return prefix + fmt.Sprintf("%v", args[0])
	}
	return prefix
}

// dispatch walks the tagged attempt pipeline: preferred dialect, then the
// alternate on a fallback-eligible failure, then (for search methods only)
// the advanced-search index, per spec.md §4.I.
func (a *Adapter) dispatch(ctx context.Context, method string, args []any) (any, error) {
	order := a.attemptOrder(method)

	var errs []error
	for i, dialect := range order {
		result, err := a.attemptDialect(ctx, dialect, method, args)
		if err == nil {
			return result, nil
		}
		errs = append(errs, err)

		statusErr, isStatus := err.(*StatusError)
		if isStatus && !statusErr.fallbackEligible() && !statusErr.retriable() {
			break // terminal 4xx: no point trying the other dialect
		}
		_ = i
	}

	if strings.HasPrefix(method, "search") {
		if result, err := a.attemptAdvancedSearch(ctx, method, args); err == nil {
			return result, nil
		}
	}

	return nil, combinedError(errs)
}

func (a *Adapter) attemptOrder(method string) []Dialect {
	if preferred, ok := methodDialects[method]; ok {
		if preferred.preferred == DialectClassic {
			return []Dialect{DialectClassic, DialectModern}
		}
		return []Dialect{DialectModern, DialectClassic}
	}
	return []Dialect{DialectModern, DialectClassic}
}

// attemptDialect performs one dialect's call with the failure-class retry
// semantics of spec.md §4.I: unauthorized triggers a single refresh+retry;
// other 4xx is terminal; 5xx and timeouts are retried once with backoff.
func (a *Adapter) attemptDialect(ctx context.Context, dialect Dialect, method string, args []any) (any, error) {
	transport, breaker := a.transportFor(dialect)
	if !breaker.allow() {
		return nil, &StatusError{Dialect: dialect, Status: 503, Err: fmt.Errorf("circuit open for %s dialect", dialect)}
	}

	limiter := a.limiterFor(dialect)
	if err := limiter.Wait(ctx); err != nil {
		return nil, &StatusError{Dialect: dialect, Status: 0, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	header := a.auth.headerFor(dialect)
	result, err := transport.Invoke(ctx, method, args, header)
	if err == nil {
		breaker.success()
		return result, nil
	}

	statusErr, ok := err.(*StatusError)
	if !ok {
		statusErr = &StatusError{Dialect: dialect, Status: 0, Err: err}
	}

	if statusErr.unauthorized() {
		a.auth.forceExpire()
		if refreshErr := a.auth.ensure(ctx, a.creds, a.backend); refreshErr == nil {
			header = a.auth.headerFor(dialect)
			result, err = transport.Invoke(ctx, method, args, header)
			if err == nil {
				breaker.success()
				return result, nil
			}
		}
	} else if statusErr.retriable() {
		time.Sleep(backoffWithJitter(0))
		result, err = transport.Invoke(ctx, method, args, header)
		if err == nil {
			breaker.success()
			return result, nil
		}
	}

	breaker.failure()
	if se, ok := err.(*StatusError); ok {
		return nil, se
	}
	return nil, &StatusError{Dialect: dialect, Status: 0, Err: err}
}

func (a *Adapter) attemptAdvancedSearch(ctx context.Context, method string, args []any) (any, error) {
	query := cacheKey(method, args)

	a.advancedSearchMu.Lock()
	id, ok := a.advancedSearchIndex[query]
	if !ok {
		id = "adv-" + strconv.Itoa(len(a.advancedSearchIndex)+1)
		a.advancedSearchIndex[query] = id
	}
	a.advancedSearchMu.Unlock()

	return a.modern.Invoke(ctx, "runAdvancedSearch", []any{id}, a.auth.headerFor(DialectModern))
}

func (a *Adapter) transportFor(dialect Dialect) (Transport, *circuitBreaker) {
	if dialect == DialectClassic {
		return a.classic, a.classicBreaker
	}
	return a.modern, a.modernBreaker
}

func (a *Adapter) limiterFor(dialect Dialect) *rate.Limiter {
	if dialect == DialectClassic {
		return a.classicLimiter
	}
	return a.modernLimiter
}

func combinedError(errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("no dialect attempted")
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Errorf("all dialects failed: %s", strings.Join(parts, "; "))
}

// methodDialects carries a small number of explicit preferences; catalog
// methods absent here fall back to modern-preferred in attemptOrder.
var methodDialects = map[string]methodDialect{
	"getAllComputers":     {preferred: DialectModern, cacheable: true},
	"createComputerGroup": {preferred: DialectClassic, cacheable: false},
	"deployProfile":       {preferred: DialectClassic, cacheable: false},
}
