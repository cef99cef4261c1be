package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamfkit/core/pkg/policy"
)

func TestCheckAccess_ExactCapability(t *testing.T) {
	d := policy.CheckAccess("getAllComputers", []string{"read:computers"})
	assert.True(t, d.Allowed)
}

func TestCheckAccess_Wildcard(t *testing.T) {
	d := policy.CheckAccess("createPolicy", []string{"write:*"})
	assert.True(t, d.Allowed)
}

func TestCheckAccess_Denied(t *testing.T) {
	d := policy.CheckAccess("createPolicy", []string{"read:policies"})
	assert.False(t, d.Allowed)
	assert.NotEmpty(t, d.Reason)
}

func TestCheckAccess_UnknownMethod(t *testing.T) {
	d := policy.CheckAccess("nope", []string{"read:*"})
	assert.False(t, d.Allowed)
}

func TestCheckAccess_NormalizesCapabilityCase(t *testing.T) {
	d := policy.CheckAccess("getAllComputers", []string{"  READ:Computers  "})
	assert.True(t, d.Allowed)
}

func TestHasWildcard(t *testing.T) {
	assert.True(t, policy.HasWildcard([]string{"read:*"}, "read"))
	assert.False(t, policy.HasWildcard([]string{"read:computers"}, "read"))
}

func TestNormalizeCapability(t *testing.T) {
	assert.Equal(t, "read:computers", policy.NormalizeCapability("  Read:Computers  "))
}

func TestCheckAccess_CapabilityExpressionOverridesDefaultMatch(t *testing.T) {
	t.Cleanup(func() { _ = policy.SetCapabilityExpression("executePolicy", "") })

	require.NoError(t, policy.SetCapabilityExpression("executePolicy",
		`grants.exists(g, g == "command:policies") && !grants.exists(g, g == "deny:policies")`))

	allowed := policy.CheckAccess("executePolicy", []string{"command:policies"})
	assert.True(t, allowed.Allowed)

	denied := policy.CheckAccess("executePolicy", []string{"command:policies", "deny:policies"})
	assert.False(t, denied.Allowed)
}
