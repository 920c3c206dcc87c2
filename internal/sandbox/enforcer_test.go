package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHardened(t *testing.T, policy Policy) *Interpreter {
	t.Helper()
	interp, err := NewFactory().Create(policy)
	require.NoError(t, err)
	require.NoError(t, NewEnforcer().Apply(interp, policy))
	return interp
}

func TestEnforcer_HidesOperationsPerPolicy(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustMinimal))

	for _, op := range []string{OpFileRead, OpFileWrite, OpHTTPGet, OpProcExec, OpEvalSource, OpInterpNew} {
		_, visible := interp.ops[op]
		assert.False(t, visible, "%s must be hidden at Minimal trust", op)
		_, shelved := interp.hidden[hiddenKey(op)]
		assert.True(t, shelved, "%s must be shelved, not dropped", op)
	}
}

func TestEnforcer_StandardKeepsFileSystem(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	_, visible := interp.ops[OpFileRead]
	assert.True(t, visible)
	_, visible = interp.ops[OpHTTPGet]
	assert.False(t, visible)
	_, visible = interp.ops[OpInterpNew]
	assert.False(t, visible, "sub-interpreter creation is restricted at Standard trust")
}

func TestEnforcer_MaximumIsNoOp(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustMaximum))

	assert.Empty(t, interp.hidden)
	for _, op := range []string{OpFileRead, OpHTTPGet, OpProcExec, OpEvalSource, OpInterpNew} {
		_, visible := interp.ops[op]
		assert.True(t, visible, "%s must stay visible at Maximum trust", op)
	}
}

func TestEnforcer_RestrictedOverridesHideExtraOps(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustElevated, OpHTTPPost))

	_, visible := interp.ops[OpHTTPGet]
	assert.True(t, visible)
	_, visible = interp.ops[OpHTTPPost]
	assert.False(t, visible)
}

func TestEnforcer_ApplyIsOnce(t *testing.T) {
	policy := NewPolicy(TrustStandard)
	interp, err := NewFactory().Create(policy)
	require.NoError(t, err)

	enforcer := NewEnforcer()
	require.NoError(t, enforcer.Apply(interp, policy))

	err = enforcer.Apply(interp, policy)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
}

func TestEnforcer_RevalidatePassesHealthyInstance(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))
	require.NoError(t, NewEnforcer().Revalidate(interp))
}

func TestEnforcer_RevalidateDetectsReappearedOperation(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustMinimal))

	// Simulate a compromised instance where a shelved capability surfaced
	// back into the visible namespace.
	interp.ops[OpFileRead] = interp.hidden[hiddenKey(OpFileRead)]

	err := NewEnforcer().Revalidate(interp)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Contains(t, err.Error(), OpFileRead)
}
