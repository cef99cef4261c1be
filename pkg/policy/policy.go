// Package policy holds the three decision functions spec.md §4.D requires:
// checkAccess, getClassification, requiresApproval. All policy decisions
// flow through these so the mediating proxy (pkg/proxy) carries no policy
// knowledge of its own — it only calls into this package and acts on the
// result. The functions are pure over the immutable catalog and the (rarely
// populated) CEL capability-expression registry in cel.go, so they need no
// locking beyond that registry's own and are trivially table-tested.
package policy

import (
	"fmt"
	"strings"

	"github.com/jamfkit/core/pkg/catalog"
)

// Decision is the outcome of CheckAccess.
type Decision struct {
	Allowed bool
	Reason  string
}

// CheckAccess reports whether capabilities grants access to method. The
// method must be in the catalog, and the capability set must contain either
// the method's exact required capability or the wildcard "<verb>:*".
func CheckAccess(method string, capabilities []string) Decision {
	entry, ok := catalog.Lookup(method)
	if !ok {
		return Decision{Allowed: false, Reason: fmt.Sprintf("method %q is not in the catalog", method)}
	}

	if allowed, handled, err := evalCapabilityExpression(method, capabilities); handled {
		if err != nil {
			return Decision{Allowed: false, Reason: err.Error()}
		}
		if !allowed {
			return Decision{Allowed: false, Reason: fmt.Sprintf("capability expression for %q denied access", method)}
		}
		return Decision{Allowed: true}
	}

	normalized := make([]string, len(capabilities))
	for i, c := range capabilities {
		normalized[i] = NormalizeCapability(c)
	}

	verb := entry.Classification.Verb()
	wildcard := verb + ":*"
	if HasWildcard(normalized, verb) {
		return Decision{Allowed: true}
	}
	want := NormalizeCapability(entry.RequiredCapability)
	for _, cap := range normalized {
		if cap == want {
			return Decision{Allowed: true}
		}
	}
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("capability %q (or %q) required for %q", entry.RequiredCapability, wildcard, method),
	}
}

// GetClassification returns the classification for method, or "" and false
// if method is not catalogued.
func GetClassification(method string) (catalog.Classification, bool) {
	entry, ok := catalog.Lookup(method)
	if !ok {
		return "", false
	}
	return entry.Classification, true
}

// RequiresApproval reports whether method needs an approval token to execute
// in apply mode. Methods absent from the catalog never require approval
// through this function — the proxy's visibility check rejects them first.
func RequiresApproval(method string) bool {
	entry, ok := catalog.Lookup(method)
	return ok && entry.NeedsApproval
}

// InvalidationPrefixes returns the cache-key prefixes a successful call to
// method invalidates, per its catalog entry.
func InvalidationPrefixes(method string) []string {
	entry, ok := catalog.Lookup(method)
	if !ok {
		return nil
	}
	return entry.InvalidatesPrefixes
}

// HasWildcard reports whether capabilities contains a wildcard grant for
// verb (e.g. "read:*"). CheckAccess calls this directly; exported so callers
// that only need to know "does this grant set cover a whole verb" (e.g. a
// UI rendering a capability summary) don't have to re-derive catalog
// wildcards themselves.
func HasWildcard(capabilities []string, verb string) bool {
	want := verb + ":*"
	for _, c := range capabilities {
		if c == want {
			return true
		}
	}
	return false
}

// NormalizeCapability lower-cases and trims a capability token for
// comparison robustness. CheckAccess applies this to every caller-supplied
// capability and to the entry's required capability before matching.
func NormalizeCapability(cap string) string {
	return strings.ToLower(strings.TrimSpace(cap))
}
