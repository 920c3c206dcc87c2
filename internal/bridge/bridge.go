package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/d5/tengo/v2"

	"github.com/nfrund/sandscript/internal/session"
)

// Script-visible operation names installed by the bridge. These are always
// available regardless of trust level; the security policy governs host
// capabilities, not the bridge.
const (
	OpContextGet    = "context_get"
	OpSessionGet    = "session_get"
	OpSessionSet    = "session_set"
	OpSessionList   = "session_list"
	OpSessionDelete = "session_delete"
	OpSessionClear  = "session_clear"
	OpCallTool      = "call_tool"
)

// Bridge wires one run's session id, execution context and tool registry
// into script-callable operations. The session id is bound by the host and
// never taken from script input.
type Bridge struct {
	sessionID string
	store     session.Store
	execCtx   Context
	tools     ToolRegistry
}

// New creates a bridge for a single run.
func New(sessionID string, store session.Store, execCtx Context, tools ToolRegistry) *Bridge {
	return &Bridge{
		sessionID: sessionID,
		store:     store,
		execCtx:   execCtx,
		tools:     tools,
	}
}

func scriptError(format string, args ...interface{}) tengo.Object {
	return &tengo.Error{Value: &tengo.String{Value: fmt.Sprintf(format, args...)}}
}

func stringArg(args []tengo.Object, i int) (string, error) {
	if i >= len(args) {
		return "", tengo.ErrWrongNumArguments
	}
	s, ok := tengo.ToString(args[i])
	if !ok {
		return "", tengo.ErrInvalidArgumentType{Name: fmt.Sprintf("arg[%d]", i), Expected: "string"}
	}
	return s, nil
}

// Ops returns the bridge operations as script bindings. The passed context
// bounds every host call the script makes through them.
func (b *Bridge) Ops(ctx context.Context) map[string]tengo.Object {
	return map[string]tengo.Object{
		OpContextGet: &tengo.UserFunction{Name: OpContextGet, Value: func(args ...tengo.Object) (tengo.Object, error) {
			path, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			return &tengo.String{Value: b.execCtx.Lookup(path)}, nil
		}},
		OpSessionGet: &tengo.UserFunction{Name: OpSessionGet, Value: func(args ...tengo.Object) (tengo.Object, error) {
			key, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			value, _, err := b.store.Get(ctx, b.sessionID, key)
			if err != nil {
				return scriptError("session_get: %v", err), nil
			}
			return &tengo.String{Value: value}, nil
		}},
		OpSessionSet: &tengo.UserFunction{Name: OpSessionSet, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			key, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			value, err := stringArg(args, 1)
			if err != nil {
				return nil, err
			}
			if err := b.store.Set(ctx, b.sessionID, key, value); err != nil {
				return scriptError("session_set: %v", err), nil
			}
			return tengo.TrueValue, nil
		}},
		OpSessionList: &tengo.UserFunction{Name: OpSessionList, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			keys, err := b.store.List(ctx, b.sessionID)
			if err != nil {
				return scriptError("session_list: %v", err), nil
			}
			arr := &tengo.Array{}
			for _, k := range keys {
				arr.Value = append(arr.Value, &tengo.String{Value: k})
			}
			return arr, nil
		}},
		OpSessionDelete: &tengo.UserFunction{Name: OpSessionDelete, Value: func(args ...tengo.Object) (tengo.Object, error) {
			key, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			if err := b.store.Delete(ctx, b.sessionID, key); err != nil {
				return scriptError("session_delete: %v", err), nil
			}
			return tengo.TrueValue, nil
		}},
		OpSessionClear: &tengo.UserFunction{Name: OpSessionClear, Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			if err := b.store.Clear(ctx, b.sessionID); err != nil {
				return scriptError("session_clear: %v", err), nil
			}
			return tengo.TrueValue, nil
		}},
		OpCallTool: &tengo.UserFunction{Name: OpCallTool, Value: func(args ...tengo.Object) (tengo.Object, error) {
			name, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			toolArgs := map[string]interface{}{}
			if len(args) > 1 {
				converted := tengo.ToInterface(args[1])
				m, ok := converted.(map[string]interface{})
				if !ok {
					return nil, tengo.ErrInvalidArgumentType{Name: "args", Expected: "map"}
				}
				toolArgs = m
			}

			result, err := b.tools.Invoke(ctx, name, toolArgs)
			if err != nil {
				// Both unknown tools and failing tools come back as error
				// values the script can branch on; the run is not aborted.
				slog.Debug("Tool invocation failed", "tool", name, "error", err)
				return scriptError("%v", err), nil
			}
			obj, err := tengo.FromInterface(result)
			if err != nil {
				return scriptError("call_tool: unconvertible result: %v", err), nil
			}
			return obj, nil
		}},
	}
}
