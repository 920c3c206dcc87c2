package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicy_TrustLevelDerivation(t *testing.T) {
	minimal := NewPolicy(TrustMinimal)
	assert.False(t, minimal.AllowFileSystem)
	assert.False(t, minimal.AllowNetwork)
	assert.False(t, minimal.AllowProcessExec)
	assert.False(t, minimal.AllowReflection)
	assert.Contains(t, minimal.RestrictedOps, OpInterpNew)

	standard := NewPolicy(TrustStandard)
	assert.True(t, standard.AllowFileSystem)
	assert.False(t, standard.AllowNetwork)
	assert.False(t, standard.AllowProcessExec)
	assert.False(t, standard.AllowReflection)
	assert.Contains(t, standard.RestrictedOps, OpInterpNew)

	elevated := NewPolicy(TrustElevated)
	assert.True(t, elevated.AllowFileSystem)
	assert.True(t, elevated.AllowNetwork)
	assert.False(t, elevated.AllowProcessExec)
	assert.True(t, elevated.AllowReflection)
	assert.Empty(t, elevated.RestrictedOps)

	maximum := NewPolicy(TrustMaximum)
	assert.True(t, maximum.AllowFileSystem)
	assert.True(t, maximum.AllowNetwork)
	assert.True(t, maximum.AllowProcessExec)
	assert.True(t, maximum.AllowReflection)
	assert.Empty(t, maximum.RestrictedOps)
}

func TestNewPolicy_RestrictedOverrides(t *testing.T) {
	p := NewPolicy(TrustElevated, OpHTTPPost, OpFileDelete)
	assert.ElementsMatch(t, []string{OpHTTPPost, OpFileDelete}, p.RestrictedOps)
}

func TestPolicy_DefaultCeilings(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, TrustStandard, p.Level)
	assert.Equal(t, DefaultMaxExecutionTime, p.MaxExecutionTime)
	assert.Equal(t, DefaultMaxMemoryBytes, p.MaxMemoryBytes)
}

func TestPolicy_Fingerprint(t *testing.T) {
	a := NewPolicy(TrustStandard)
	b := NewPolicy(TrustStandard)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "identical policies must share a fingerprint")

	c := NewPolicy(TrustElevated)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	d := NewPolicy(TrustStandard, OpFileWrite)
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint(), "overrides must change the fingerprint")

	assert.Contains(t, a.Fingerprint(), "Standard-")
}

func TestPolicy_AllowedModules(t *testing.T) {
	standard := NewPolicy(TrustStandard)
	assert.NotContains(t, standard.AllowedModules(), "os")
	assert.Contains(t, standard.AllowedModules(), "json")

	maximum := NewPolicy(TrustMaximum)
	assert.Contains(t, maximum.AllowedModules(), "os")
}

func TestPolicy_ModuleAllowed(t *testing.T) {
	p := NewPolicy(TrustMinimal)
	assert.True(t, p.ModuleAllowed("math"))
	assert.False(t, p.ModuleAllowed("os"))
	assert.False(t, p.ModuleAllowed("nonexistent"))
}

func TestParseTrustLevel(t *testing.T) {
	level, err := ParseTrustLevel("")
	require.NoError(t, err)
	assert.Equal(t, TrustStandard, level, "empty input defaults to Standard")

	level, err = ParseTrustLevel("Elevated")
	require.NoError(t, err)
	assert.Equal(t, TrustElevated, level)

	_, err = ParseTrustLevel("root")
	require.Error(t, err)
}
