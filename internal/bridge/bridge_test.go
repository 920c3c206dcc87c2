package bridge

import (
	"context"
	"testing"

	"github.com/d5/tengo/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/sandscript/internal/session"
)

func callOp(t *testing.T, ops map[string]tengo.Object, name string, args ...tengo.Object) tengo.Object {
	t.Helper()
	fn, ok := ops[name].(*tengo.UserFunction)
	require.True(t, ok, "operation %s must be installed", name)
	result, err := fn.Value(args...)
	require.NoError(t, err)
	return result
}

func TestBridge_SessionOps(t *testing.T) {
	store := session.NewMemoryStore()
	b := New("sess-1", store, Context{}, NewFuncRegistry())
	ops := b.Ops(context.Background())

	result := callOp(t, ops, OpSessionSet, &tengo.String{Value: "k"}, &tengo.String{Value: "v"})
	assert.Equal(t, tengo.TrueValue, result)

	result = callOp(t, ops, OpSessionGet, &tengo.String{Value: "k"})
	assert.Equal(t, "v", result.(*tengo.String).Value)

	result = callOp(t, ops, OpSessionList)
	arr := result.(*tengo.Array)
	require.Len(t, arr.Value, 1)

	callOp(t, ops, OpSessionDelete, &tengo.String{Value: "k"})
	result = callOp(t, ops, OpSessionGet, &tengo.String{Value: "k"})
	assert.Equal(t, "", result.(*tengo.String).Value)
}

func TestBridge_SessionIDIsHostBound(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "other", "k", "secret"))

	b := New("sess-1", store, Context{}, NewFuncRegistry())
	ops := b.Ops(context.Background())

	// The bridge only ever reads the session it was constructed with; no
	// argument shape reaches another session's state.
	result := callOp(t, ops, OpSessionGet, &tengo.String{Value: "k"})
	assert.Equal(t, "", result.(*tengo.String).Value)
}

func TestBridge_ContextGet(t *testing.T) {
	b := New("sess-1", session.NewMemoryStore(), Context{
		"project": map[string]interface{}{"name": "sandscript"},
	}, NewFuncRegistry())
	ops := b.Ops(context.Background())

	result := callOp(t, ops, OpContextGet, &tengo.String{Value: "project.name"})
	assert.Equal(t, "sandscript", result.(*tengo.String).Value)

	result = callOp(t, ops, OpContextGet, &tengo.String{Value: "unknown.path"})
	assert.Equal(t, "", result.(*tengo.String).Value)
}

func TestBridge_CallTool(t *testing.T) {
	tools := NewFuncRegistry()
	tools.Register("upper", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return "LOUD", nil
	})
	b := New("sess-1", session.NewMemoryStore(), Context{}, tools)
	ops := b.Ops(context.Background())

	result := callOp(t, ops, OpCallTool, &tengo.String{Value: "upper"})
	assert.Equal(t, "LOUD", result.(*tengo.String).Value)
}

func TestBridge_CallToolUnknownIsRecoverable(t *testing.T) {
	b := New("sess-1", session.NewMemoryStore(), Context{}, NewFuncRegistry())
	ops := b.Ops(context.Background())

	// Unknown tools come back as error values the script can branch on, not
	// as aborting Go errors.
	result := callOp(t, ops, OpCallTool, &tengo.String{Value: "missing"})
	_, isErr := result.(*tengo.Error)
	assert.True(t, isErr)
}

func TestBridge_WrongArgumentCount(t *testing.T) {
	b := New("sess-1", session.NewMemoryStore(), Context{}, NewFuncRegistry())
	ops := b.Ops(context.Background())

	fn := ops[OpSessionSet].(*tengo.UserFunction)
	_, err := fn.Value(&tengo.String{Value: "only-one"})
	assert.ErrorIs(t, err, tengo.ErrWrongNumArguments)
}
