package adapter

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// cursorRecord is what a pagination cursor resolves to: which modern-dialect
// list call it continues, and at what offset.
type cursorRecord struct {
	method    string
	offset    int
	expiresAt time.Time
}

// CursorBroker mints opaque, expiring tokens for the modern dialect's
// cursor/page-size paging so a caller can hand the adapter a cursor instead
// of an offset. It is adapted from the teacher's sandbox.CredentialBroker
// (the same scoped-token-with-TTL shape as pkg/approval.Store, which shares
// the same grounding) — here scoped to "resume this list call" rather than
// "authorize these command operations." Off by default: an Adapter only
// consults one when configured with WithCursorBroker.
type CursorBroker struct {
	mu    sync.Mutex
	byTok map[string]cursorRecord
	clock func() time.Time
}

// NewCursorBroker constructs an empty broker.
func NewCursorBroker() *CursorBroker {
	return &CursorBroker{byTok: make(map[string]cursorRecord), clock: time.Now}
}

// WithClock overrides the broker's clock for deterministic expiry tests.
func (b *CursorBroker) WithClock(clock func() time.Time) *CursorBroker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
	return b
}

// Issue mints a cursor for method at offset, expiring after ttl.
func (b *CursorBroker) Issue(method string, offset int, ttl time.Duration) string {
	token := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byTok[token] = cursorRecord{method: method, offset: offset, expiresAt: b.clock().Add(ttl)}
	return token
}

// Resolve returns the method and offset a cursor continues, if it exists
// and has not expired.
func (b *CursorBroker) Resolve(token string) (method string, offset int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, found := b.byTok[token]
	if !found || b.clock().After(rec.expiresAt) {
		delete(b.byTok, token)
		return "", 0, false
	}
	return rec.method, rec.offset, true
}
