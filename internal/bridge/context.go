// Package bridge exposes host capabilities to running scripts: read-only
// execution context lookups, session state, and named tool invocation.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Context is the immutable, request-scoped snapshot of caller, project and
// environment facts built by the surrounding service. Scripts only see it
// through dotted-path lookups, never by direct structural access.
type Context map[string]interface{}

// ContextProvider builds the execution context for a run. It is owned by the
// surrounding service, not the core.
type ContextProvider interface {
	BuildContext(ctx context.Context, sessionID string) (Context, error)
}

// ContextProviderFunc adapts a function to the ContextProvider interface.
type ContextProviderFunc func(ctx context.Context, sessionID string) (Context, error)

func (f ContextProviderFunc) BuildContext(ctx context.Context, sessionID string) (Context, error) {
	return f(ctx, sessionID)
}

// Lookup resolves a dotted path like "project.lastBuild.status". Unknown
// paths return an empty string rather than failing; scripts commonly probe
// optional fields.
func (c Context) Lookup(path string) string {
	if path == "" {
		return ""
	}
	var current interface{} = map[string]interface{}(c)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			if cm, isCtx := current.(Context); isCtx {
				m = map[string]interface{}(cm)
			} else {
				return ""
			}
		}
		current, ok = m[part]
		if !ok {
			return ""
		}
	}
	return leafString(current)
}

func leafString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}, Context:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
