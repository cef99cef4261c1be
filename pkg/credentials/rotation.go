package credentials

import (
	"fmt"
	"sync"
	"time"
)

// State is a managed credential's lifecycle state, unchanged from the
// teacher's CredentialState vocabulary.
type State string

const (
	StateActive  State = "ACTIVE"
	StateExpired State = "EXPIRED"
	StateRevoked State = "REVOKED"
	StateRotated State = "ROTATED"
)

// Managed tracks one rotating credential — here, the adapter's oauth client
// secret box, generation-numbered across rotations.
type Managed struct {
	ID          string
	State       State
	Secret      *Box
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RotatedAt   *time.Time
	Generation  int
}

// RotationPolicy bounds how long a credential lives before it must rotate.
type RotationPolicy struct {
	MaxAge      time.Duration
	GracePeriod time.Duration
}

// RotationManager rotates a single named credential line (one per adapter
// instance, keyed by credential ID) under policy.
type RotationManager struct {
	mu     sync.Mutex
	byID   map[string]*Managed
	policy RotationPolicy
	seq    int64
	clock  func() time.Time
}

// NewRotationManager constructs a manager under policy.
func NewRotationManager(policy RotationPolicy) *RotationManager {
	return &RotationManager{byID: make(map[string]*Managed), policy: policy, clock: time.Now}
}

// WithClock overrides the manager's clock for deterministic expiry tests.
func (m *RotationManager) WithClock(clock func() time.Time) *RotationManager {
	m.clock = clock
	return m
}

// Issue boxes secret and starts tracking it as a fresh, generation-1
// credential.
func (m *RotationManager) Issue(secret string) (*Managed, error) {
	box, err := NewBox(secret)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	now := m.clock()
	cred := &Managed{
		ID:         fmt.Sprintf("cred-%d", m.seq),
		State:      StateActive,
		Secret:     box,
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.policy.MaxAge),
		Generation: 1,
	}
	m.byID[cred.ID] = cred
	return cred, nil
}

// Rotate marks id ROTATED and issues a new generation under the same
// policy, boxing newSecret.
func (m *RotationManager) Rotate(id, newSecret string) (*Managed, error) {
	box, err := NewBox(newSecret)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("credential %q not found", id)
	}
	now := m.clock()
	old.State = StateRotated
	old.RotatedAt = &now

	m.seq++
	next := &Managed{
		ID:         fmt.Sprintf("cred-%d", m.seq),
		State:      StateActive,
		Secret:     box,
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.policy.MaxAge),
		Generation: old.Generation + 1,
	}
	m.byID[next.ID] = next
	return next, nil
}

// NeedsRotation reports whether id is within its grace period of expiry or
// already past it.
func (m *RotationManager) NeedsRotation(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.byID[id]
	if !ok || cred.State != StateActive {
		return false
	}
	return m.clock().After(cred.ExpiresAt.Add(-m.policy.GracePeriod))
}

// IsValid reports whether id is active and unexpired.
func (m *RotationManager) IsValid(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.byID[id]
	if !ok || cred.State != StateActive {
		return false
	}
	return m.clock().Before(cred.ExpiresAt)
}
