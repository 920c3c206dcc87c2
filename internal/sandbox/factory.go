package sandbox

import (
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/google/uuid"
)

// Factory builds fresh interpreter instances in base mode: the full host
// operation namespace and the policy's module allow-list are installed, but
// no hardening has happened yet. Callers must pass the result through the
// Enforcer before exposing it to any script.
type Factory struct{}

// NewFactory creates an interpreter factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create builds a new interpreter for the given policy. A creation failure
// is fatal for the single request, never for the pool.
func (f *Factory) Create(policy Policy) (*Interpreter, error) {
	names := policy.AllowedModules()
	for _, name := range names {
		if _, builtin := stdlib.BuiltinModules[name]; builtin {
			continue
		}
		if _, source := stdlib.SourceModules[name]; source {
			continue
		}
		return nil, NewError(KindCreation, "", "unknown stdlib module "+name, nil)
	}

	rs := &runState{}
	interp := &Interpreter{
		ID:         uuid.NewString(),
		policy:     policy,
		createdAt:  time.Now(),
		lastUsedAt: time.Now(),
		state:      StateIdle,
		modules:    stdlib.GetModuleMap(names...),
		ops:        newHostOps(rs),
		hidden:     make(map[string]tengo.Object),
		globals:    make(map[string]interface{}),
		rs:         rs,
	}
	return interp, nil
}
