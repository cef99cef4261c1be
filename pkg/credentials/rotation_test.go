package credentials

import (
	"testing"
	"time"
)

func TestRotationManager_Issue(t *testing.T) {
	m := NewRotationManager(RotationPolicy{MaxAge: time.Hour, GracePeriod: 10 * time.Minute})
	cred, err := m.Issue("client-secret-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if cred.State != StateActive {
		t.Fatal("expected ACTIVE")
	}
	if cred.Generation != 1 {
		t.Fatal("expected generation 1")
	}
}

func TestRotationManager_Rotate(t *testing.T) {
	m := NewRotationManager(RotationPolicy{MaxAge: time.Hour})
	old, err := m.Issue("client-secret-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	next, err := m.Rotate(old.ID, "client-secret-2")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if next.Generation != 2 {
		t.Fatal("expected generation 2")
	}

	if !m.IsValid(next.ID) {
		t.Fatal("rotated-in credential should be valid")
	}
	if m.IsValid(old.ID) {
		t.Fatal("rotated-out credential should no longer be valid")
	}
}

func TestRotationManager_IsValid(t *testing.T) {
	m := NewRotationManager(RotationPolicy{MaxAge: time.Hour})
	cred, err := m.Issue("s")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !m.IsValid(cred.ID) {
		t.Fatal("expected valid")
	}
}

func TestRotationManager_NeedsRotation(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewRotationManager(RotationPolicy{MaxAge: time.Hour, GracePeriod: 10 * time.Minute}).
		WithClock(func() time.Time { return now })

	cred, err := m.Issue("s")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if m.NeedsRotation(cred.ID) {
		t.Fatal("freshly issued credential should not need rotation yet")
	}

	m.WithClock(func() time.Time { return now.Add(55 * time.Minute) })
	if !m.NeedsRotation(cred.ID) {
		t.Fatal("credential within its grace period should need rotation")
	}
}

func TestRotationManager_RotateUnknownID(t *testing.T) {
	m := NewRotationManager(RotationPolicy{MaxAge: time.Hour})
	if _, err := m.Rotate("nonexistent", "s"); err == nil {
		t.Fatal("expected error rotating an unknown credential")
	}
}
