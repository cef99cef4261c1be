package adapter

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/jamfkit/core/pkg/credentials"
	"github.com/jamfkit/core/pkg/taxonomy"
)

// Credentials configures an Adapter's authentication. At least one method
// must be present; New fails construction otherwise.
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

func (c Credentials) hasBasic() bool { return c.Username != "" && c.Password != "" }
func (c Credentials) hasOAuth() bool { return c.ClientID != "" && c.ClientSecret != "" }

// AuthBackend acquires tokens against the upstream token endpoints. The
// concrete HTTP exchange is out of scope for this core; StubAuthBackend is
// the in-memory stand-in tests and the demo run against.
type AuthBackend interface {
	AcquireBearer(ctx context.Context, username, password string) (token string, ttl time.Duration, err error)
	AcquireOAuth(ctx context.Context, clientID, clientSecret string) (token string, ttl time.Duration, err error)
}

const refreshSkew = 60 * time.Second

// authState is the process-global auth machine described in spec.md §3/§4.I.
// Tokens and the basic-auth header are held sealed in a credentials.Box —
// never in a plain string field — decrypted only for the instant headerFor
// needs to put them on the wire, per spec.md §7's "never logged" guarantee:
// a heap dump or stray %+v log line finds ciphertext, not secrets.
type authState struct {
	mu sync.Mutex

	bearerBox       *credentials.Box
	bearerExpiresAt time.Time
	oauthBox        *credentials.Box
	oauthExpiresAt  time.Time
	basicAuthBox    *credentials.Box

	refreshCh chan struct{}
	clock     func() time.Time
}

func newAuthState(creds Credentials, clock func() time.Time) (*authState, error) {
	a := &authState{clock: clock}
	if creds.hasBasic() {
		raw := creds.Username + ":" + creds.Password
		header := "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
		box, err := credentials.NewBox(header)
		if err != nil {
			return nil, fmt.Errorf("seal basic auth header: %w", err)
		}
		a.basicAuthBox = box
	}
	return a, nil
}

func (a *authState) validLocked() bool {
	now := a.clock()
	if a.bearerBox != nil && now.Add(refreshSkew).Before(a.bearerExpiresAt) {
		return true
	}
	if a.oauthBox != nil && now.Add(refreshSkew).Before(a.oauthExpiresAt) {
		return true
	}
	return false
}

// ensure guarantees a non-expiring-soon token is present, performing at
// most one refresh even under concurrent callers — extra callers park on
// the in-flight refresh's channel and read the result once it closes.
func (a *authState) ensure(ctx context.Context, creds Credentials, backend AuthBackend) error {
	a.mu.Lock()
	if a.validLocked() {
		a.mu.Unlock()
		return nil
	}
	if ch := a.refreshCh; ch != nil {
		a.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.mu.Lock()
		ok := a.validLocked()
		a.mu.Unlock()
		if ok {
			return nil
		}
		return taxonomy.AuthFailure("token refresh performed by a concurrent caller did not yield a valid token")
	}

	ch := make(chan struct{})
	a.refreshCh = ch
	a.mu.Unlock()

	err := a.refresh(ctx, creds, backend)

	a.mu.Lock()
	a.refreshCh = nil
	a.mu.Unlock()
	close(ch)
	return err
}

// refresh prefers bearer-from-basic (works across both dialects); oauth is
// the secondary path, per spec.md §4.I.
func (a *authState) refresh(ctx context.Context, creds Credentials, backend AuthBackend) error {
	var lastErr error
	if creds.hasBasic() {
		token, ttl, err := backend.AcquireBearer(ctx, creds.Username, creds.Password)
		if err == nil {
			box, boxErr := credentials.NewBox(token)
			if boxErr != nil {
				return fmt.Errorf("seal bearer token: %w", boxErr)
			}
			a.mu.Lock()
			a.bearerBox = box
			a.bearerExpiresAt = a.clock().Add(ttl)
			a.mu.Unlock()
			return nil
		}
		lastErr = err
	}
	if creds.hasOAuth() {
		token, ttl, err := backend.AcquireOAuth(ctx, creds.ClientID, creds.ClientSecret)
		if err == nil {
			box, boxErr := credentials.NewBox(token)
			if boxErr != nil {
				return fmt.Errorf("seal oauth token: %w", boxErr)
			}
			a.mu.Lock()
			a.oauthBox = box
			a.oauthExpiresAt = a.clock().Add(ttl)
			a.mu.Unlock()
			return nil
		}
		lastErr = err
	}
	return taxonomy.AuthFailure(fmt.Sprintf("no credential method succeeded after refresh: %v", lastErr))
}

// headerFor selects the auth header for a request to dialect, per spec.md
// §4.I: classic prefers basic when available, else bearer; modern always
// uses bearer (oauth token standing in for bearer when that's the only
// method available).
func (a *authState) headerFor(dialect Dialect) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	bearer := ""
	if a.bearerBox != nil {
		bearer, _ = a.bearerBox.Reveal()
	}
	if bearer == "" && a.oauthBox != nil {
		bearer, _ = a.oauthBox.Reveal()
	}
	basic := ""
	if a.basicAuthBox != nil {
		basic, _ = a.basicAuthBox.Reveal()
	}
	if dialect == DialectClassic && basic != "" {
		return basic
	}
	if bearer != "" {
		return "Bearer " + bearer
	}
	return basic
}

// forceExpire invalidates both tokens, used when a request comes back
// unauthorized so the next ensure() call performs a real refresh.
func (a *authState) forceExpire() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bearerExpiresAt = time.Time{}
	a.oauthExpiresAt = time.Time{}
}
