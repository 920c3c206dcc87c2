package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nfrund/sandscript/internal/bridge"
)

// registerBuiltinTools installs the tools every deployment gets. Embedders
// register their own domain tools on top through the same registry.
func registerBuiltinTools(registry *bridge.FuncRegistry) {
	registry.Register("current_time", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		layout := time.RFC3339
		if v, ok := args["layout"].(string); ok && v != "" {
			layout = v
		}
		return time.Now().Format(layout), nil
	})

	registry.Register("echo", func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return args, nil
	})
}

// newContextProvider builds the default execution context: static service
// facts plus host environment details.
func newContextProvider() bridge.ContextProvider {
	return bridge.ContextProviderFunc(func(ctx context.Context, sessionID string) (bridge.Context, error) {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hostname: %w", err)
		}
		return bridge.Context{
			"service": map[string]interface{}{
				"name": "sandscript",
			},
			"host": map[string]interface{}{
				"name": hostname,
				"pid":  os.Getpid(),
			},
			"session": map[string]interface{}{
				"id": sessionID,
			},
		}, nil
	})
}
