// Package approval is the process-wide store of approval tokens minted at the
// end of a plan run that recorded at least one command-class operation. It is
// adapted from the teacher's sandbox.CredentialBroker (pkg/runtime/sandbox/broker.go):
// the same shape — opaque token, scoped record, TTL, single issuance log —
// generalized from "scoped credential for a sandbox" to "authorization to
// apply a specific set of blocked command operations."
package approval

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is one command-class call a token authorizes, recorded verbatim
// from the plan run's diff.
type Operation struct {
	Method string
	Args   []any
}

// Record is what a token resolves to: the operations it authorizes and its
// expiry.
type Record struct {
	Operations []Operation
	ExpiresAt  time.Time
}

// Store is a concurrent map from token to Record. Operations are Put, Get,
// Delete, matching spec.md §4.H. Expiry is enforced both opportunistically
// (Get rejects an expired record) and by a scheduled reaper per token, so the
// store does not grow without bound if a plan's token is never presented.
type Store struct {
	mu     sync.Mutex
	tokens map[string]*Record
	timers map[string]*time.Timer
	clock  func() time.Time
}

// New creates an empty token store.
func New() *Store {
	return &Store{
		tokens: make(map[string]*Record),
		timers: make(map[string]*time.Timer),
		clock:  time.Now,
	}
}

// WithClock overrides the store's clock, for deterministic expiry tests. It
// does not affect the background reaper, which always runs on a real timer;
// tests that want to observe expiry deterministically should call Get after
// advancing the fake clock rather than relying on the reaper firing.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	return s
}

// randomToken mints a 128-bit opaque token. UUIDv4 already is 128 bits of
// crypto/rand output under the hood; using it keeps token minting consistent
// with the cursor broker and gives callers a recognizable token shape.
func randomToken() string {
	return uuid.NewString()
}

// Put mints and stores a new token for the given operations, expiring after
// ttl. It schedules a reaper removal at ttl and returns the token.
func (s *Store) Put(operations []Operation, ttl time.Duration) string {
	token := randomToken()
	expiresAt := s.clock().Add(ttl)

	s.mu.Lock()
	s.tokens[token] = &Record{Operations: operations, ExpiresAt: expiresAt}
	s.timers[token] = time.AfterFunc(ttl, func() { s.reap(token) })
	s.mu.Unlock()

	return token
}

func (s *Store) reap(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	delete(s.timers, token)
}

// Get returns the record for token if it exists and has not expired. A
// present-but-expired record is treated as missing and removed, matching
// spec.md §4.H ("If a caller presents a token whose stored record has an
// earlier expiresAt than wall-clock, treat as missing and remove").
func (s *Store) Get(token string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	if s.clock().After(rec.ExpiresAt) {
		s.deleteLocked(token)
		return nil, false
	}
	return rec, true
}

// Delete removes a token unconditionally. Apply runs call this after a
// successful application to enforce single-use.
func (s *Store) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(token)
}

func (s *Store) deleteLocked(token string) {
	if t, ok := s.timers[token]; ok {
		t.Stop()
		delete(s.timers, token)
	}
	delete(s.tokens, token)
}

// Len reports the number of live (not yet reaped) tokens; used by tests to
// assert the store does not grow unbounded.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
