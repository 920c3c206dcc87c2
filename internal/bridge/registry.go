package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrToolNotFound reports an unregistered tool name. Recoverable inside the
// script: the invocation returns an error value it can branch on.
var ErrToolNotFound = errors.New("tool not found")

// InvocationError wraps a failure from the tool itself, carrying the
// upstream message.
type InvocationError struct {
	Tool  string
	Cause error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// ToolRegistry resolves named host operations at call time. Tool sets are
// configured by the surrounding service, not fixed at compile time.
type ToolRegistry interface {
	Invoke(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// ToolHandler is one host-side operation.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// FuncRegistry is the in-process ToolRegistry implementation: a lock-guarded
// name-to-handler map.
type FuncRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ToolHandler
}

// NewFuncRegistry creates an empty registry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{handlers: make(map[string]ToolHandler)}
}

// Register binds a handler to a tool name, replacing any previous binding.
func (r *FuncRegistry) Register(name string, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Names returns the registered tool names in lexical order.
func (r *FuncRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named tool synchronously.
func (r *FuncRegistry) Invoke(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	result, err := handler(ctx, args)
	if err != nil {
		return nil, &InvocationError{Tool: name, Cause: err}
	}
	return result, nil
}
