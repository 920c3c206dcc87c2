package server

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"

	"github.com/nfrund/sandscript/internal/bridge"
	"github.com/nfrund/sandscript/internal/config"
	"github.com/nfrund/sandscript/internal/history"
	"github.com/nfrund/sandscript/internal/pubsub"
	"github.com/nfrund/sandscript/internal/sandbox"
	"github.com/nfrund/sandscript/internal/scripts"
	"github.com/nfrund/sandscript/internal/session"
)

// newKernel builds the dependency injection container holding every service
// component. Constructors run lazily on first invocation.
func newKernel(cfg config.Provider) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)

	do.Provide(injector, func(i do.Injector) (session.Store, error) {
		c := do.MustInvoke[config.Provider](i)
		if c.GetSessionBackend() == "memory" {
			return session.NewMemoryStore(), nil
		}
		store, err := session.NewSQLiteStore(c.GetDatabasePath(), session.Options{
			Retention:     c.GetSessionRetention(),
			SweepInterval: c.GetSessionSweepInterval(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		return store, nil
	})

	do.Provide(injector, func(i do.Injector) (*history.Store, error) {
		c := do.MustInvoke[config.Provider](i)
		store, err := history.NewStore(c.GetDatabasePath(), history.Options{
			MaxEntries:    c.GetHistoryMaxEntries(),
			Retention:     c.GetHistoryRetention(),
			SweepInterval: c.GetSessionSweepInterval(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		return store, nil
	})

	do.Provide(injector, func(i do.Injector) (*sandbox.Pool, error) {
		c := do.MustInvoke[config.Provider](i)
		poolCfg := sandbox.DefaultPoolConfig()
		poolCfg.MaxSize = c.GetPoolMaxSize()
		poolCfg.AcquireTimeout = c.GetPoolAcquireTimeout()
		poolCfg.MaxExecutionsPerInterpreter = c.GetMaxExecutionsPerInterpreter()
		poolCfg.MaxIdleTime = c.GetMaxIdleTime()
		poolCfg.RecycleOnError = c.GetRecycleOnError()
		poolCfg.ClearVariablesBetweenExecutions = c.GetClearVariablesBetweenExecutions()
		poolCfg.ValidateBeforeUse = c.GetValidateBeforeUse()
		poolCfg.Growth = sandbox.GrowthStrategy(c.GetGrowthStrategy())
		return sandbox.NewPool(poolCfg), nil
	})

	do.Provide(injector, func(i do.Injector) (pubsub.Publisher, error) {
		return do.MustInvoke[*pubsub.WatermillBridge](i), nil
	})

	do.Provide(injector, func(i do.Injector) (*pubsub.WatermillBridge, error) {
		return pubsub.NewWatermillBridge(), nil
	})

	do.Provide(injector, func(i do.Injector) (bridge.ToolRegistry, error) {
		registry := bridge.NewFuncRegistry()
		registerBuiltinTools(registry)
		return registry, nil
	})

	do.Provide(injector, func(i do.Injector) (bridge.ContextProvider, error) {
		return newContextProvider(), nil
	})

	do.Provide(injector, func(i do.Injector) (*scripts.Registry, error) {
		c := do.MustInvoke[config.Provider](i)
		registry := scripts.NewRegistry(afero.NewOsFs(), c.GetScriptsDir())
		if err := registry.Load(); err != nil {
			return nil, fmt.Errorf("failed to load script library: %w", err)
		}
		return registry, nil
	})

	do.Provide(injector, func(i do.Injector) (*sandbox.Runtime, error) {
		c := do.MustInvoke[config.Provider](i)
		return sandbox.NewRuntime(sandbox.RuntimeConfig{
			MaxConcurrentExecutions: c.GetMaxConcurrentExecutions(),
			DefaultTimeout:          c.GetDefaultTimeout(),
		}, sandbox.Dependencies{
			Pool:     do.MustInvoke[*sandbox.Pool](i),
			Sessions: do.MustInvoke[session.Store](i),
			History:  do.MustInvoke[*history.Store](i),
			Tools:    do.MustInvoke[bridge.ToolRegistry](i),
			Contexts: do.MustInvoke[bridge.ContextProvider](i),
			Events:   do.MustInvoke[pubsub.Publisher](i),
		}), nil
	})

	return injector
}
