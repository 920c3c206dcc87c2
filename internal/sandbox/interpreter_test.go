package sandbox

import (
	"context"
	goruntime "runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpreter_EvalOutputVariable(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	res, err := interp.Eval(context.Background(), `output := 6 * 7`, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Value)
	assert.Equal(t, "42", res.Raw)
}

func TestInterpreter_EvalResultFallback(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	res, err := interp.Eval(context.Background(), `result := "done"`, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Raw)
}

func TestInterpreter_EvalInjectedVariables(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	res, err := interp.Eval(context.Background(), `output := a + b`, EvalOptions{
		Variables: map[string]interface{}{"a": 40, "b": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Raw)
}

func TestInterpreter_MapOutputLiteralForm(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	res, err := interp.Eval(context.Background(), `output := {name: "deploy", count: 3}`, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{count: 3, name: "deploy"}`, res.Raw)
}

func TestInterpreter_VariablesPersistUntilReset(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	_, err := interp.Eval(context.Background(), `leaked := 42`, EvalOptions{})
	require.NoError(t, err)

	res, err := interp.Eval(context.Background(), `output := leaked`, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Raw)

	interp.Reset()

	_, err = interp.Eval(context.Background(), `output := leaked`, EvalOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCompilation))
}

func TestInterpreter_HiddenOpFailsAsUnresolvedReference(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustMinimal))

	_, err := interp.Eval(context.Background(), `output := file_read("/etc/hostname")`, EvalOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCompilation))
	// A policy denial is indistinguishable from a typo.
	assert.Contains(t, err.Error(), "unresolved reference")
}

func TestInterpreter_CompilationErrorKind(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	_, err := interp.Eval(context.Background(), `output := := broken`, EvalOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCompilation))
}

func TestInterpreter_TimeoutKind(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	_, err := interp.Eval(context.Background(), `for {}`, EvalOptions{
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
}

func TestInterpreter_ModuleImports(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	res, err := interp.Eval(context.Background(), `
math := import("math")
output := math.abs(-5)
`, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, "5", res.Raw)
}

func TestInterpreter_OsModuleUnavailableBelowMaximum(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	_, err := interp.Eval(context.Background(), `os := import("os")`, EvalOptions{})
	require.Error(t, err, "os module must not be importable under Standard trust")
}

func TestInterpreter_CountsHostOperationCalls(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))

	res, err := interp.Eval(context.Background(), `
a := file_exists("/definitely/not/there")
b := file_exists("/also/not/there")
output := a || b
`, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.CommandsExecuted)
}

func TestInterpreter_NestedEvalStopsWithTheRun(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustElevated))

	before := goruntime.NumGoroutine()
	_, err := interp.Eval(context.Background(), `output := eval_source("for {}")`, EvalOptions{
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))

	// The nested VM runs under the outer deadline; it must not keep a
	// goroutine spinning after the run has been abandoned.
	assert.Eventually(t, func() bool {
		return goruntime.NumGoroutine() <= before
	}, 2*time.Second, 50*time.Millisecond)
}

func TestInterpreter_NestedEvalHasNoHostOps(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustMaximum))

	res, err := interp.Eval(context.Background(),
		`output := eval_source("output := file_read(\"/etc/hostname\")")`, EvalOptions{})
	require.NoError(t, err)
	// The nested evaluation compiles against a bare namespace; the host
	// operation is gone even though the outer scope can call it.
	assert.Contains(t, res.Raw, "eval:")
}

func TestInterpreter_Probe(t *testing.T) {
	interp := newHardened(t, NewPolicy(TrustStandard))
	require.NoError(t, interp.Probe())
}
