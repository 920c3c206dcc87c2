package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncRegistry_Invoke(t *testing.T) {
	registry := NewFuncRegistry()
	registry.Register("greet", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		name, _ := args["name"].(string)
		return "hello " + name, nil
	})

	result, err := registry.Invoke(context.Background(), "greet", map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", result)
}

func TestFuncRegistry_UnknownTool(t *testing.T) {
	registry := NewFuncRegistry()

	_, err := registry.Invoke(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestFuncRegistry_FailingToolWrapsCause(t *testing.T) {
	registry := NewFuncRegistry()
	cause := errors.New("upstream exploded")
	registry.Register("flaky", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return nil, cause
	})

	_, err := registry.Invoke(context.Background(), "flaky", nil)
	require.Error(t, err)

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "flaky", invErr.Tool)
	assert.ErrorIs(t, err, cause)
}

func TestFuncRegistry_Names(t *testing.T) {
	registry := NewFuncRegistry()
	registry.Register("zeta", func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil })
	registry.Register("alpha", func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil })

	assert.Equal(t, []string{"alpha", "zeta"}, registry.Names())
}
