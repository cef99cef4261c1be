// Circuit breaking and retry, adapted from the teacher's
// pkg/util/resiliency.EnhancedClient/CircuitBreaker: the same three-state
// machine (CLOSED/OPEN/HALF_OPEN) and exponential-backoff-plus-jitter retry
// loop, generalized from wrapping *http.Client to wrapping a Transport call,
// and made clock-injectable for deterministic tests.
package adapter

import (
	"crypto/rand"
	"math"
	"math/big"
	"sync"
	"time"
)

type breakerState string

const (
	breakerClosed   breakerState = "CLOSED"
	breakerOpen     breakerState = "OPEN"
	breakerHalfOpen breakerState = "HALF_OPEN"
)

// circuitBreaker guards one dialect's transport from repeated calls to a
// backend that is already failing.
type circuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	resetTimeout time.Duration
	failureCount int
	lastFailure  time.Time
	state        breakerState
	clock        func() time.Time
}

func newCircuitBreaker(threshold int, resetTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, resetTimeout: resetTimeout, state: breakerClosed, clock: time.Now}
}

func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen {
		if b.clock().Sub(b.lastFailure) > b.resetTimeout {
			b.state = breakerHalfOpen
			return true
		}
		return false
	}
	return true
}

func (b *circuitBreaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failureCount = 0
}

func (b *circuitBreaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailure = b.clock()
	if b.failureCount >= b.threshold {
		b.state = breakerOpen
	}
}

// backoffWithJitter returns the sleep duration before retry attempt i
// (0-indexed): 100ms * 2^i plus up to 50ms of jitter.
func backoffWithJitter(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
	jitter := time.Duration(0)
	if n, err := rand.Int(rand.Reader, big.NewInt(50)); err == nil {
		jitter = time.Duration(n.Int64()) * time.Millisecond
	}
	return base + jitter
}
