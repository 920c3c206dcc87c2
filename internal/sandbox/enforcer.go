package sandbox

import (
	"log/slog"
)

// Enforcer applies a security policy to a freshly created interpreter by
// renaming forbidden operations into a private, unreachable namespace.
// Operations are never merely removed: the shelf keeps them observable to the
// enforcer, which makes the later reappearance check possible.
type Enforcer struct{}

// NewEnforcer creates a policy enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{}
}

// Apply hardens the interpreter exactly once, before it is ever exposed to a
// script. At Maximum trust this is a no-op: a deliberate escape hatch for
// trusted operators, not a default.
func (e *Enforcer) Apply(interp *Interpreter, policy Policy) error {
	if interp.hardened {
		return NewError(KindValidation, interp.ID, "interpreter has already been hardened", nil)
	}
	interp.hardened = true

	if policy.Level == TrustMaximum {
		slog.Debug("Skipping hardening at Maximum trust", "interpreter_id", interp.ID)
		return nil
	}

	if !policy.AllowFileSystem {
		e.hideAll(interp, fileSystemOps)
	}
	if !policy.AllowNetwork {
		e.hideAll(interp, networkOps)
	}
	if !policy.AllowProcessExec {
		e.hideAll(interp, processOps)
	}
	if !policy.AllowReflection {
		e.hideAll(interp, reflectionOps)
	}
	e.hideAll(interp, policy.RestrictedOps)

	slog.Debug("Hardened interpreter",
		"interpreter_id", interp.ID,
		"trust_level", policy.Level.String(),
		"hidden_ops", len(interp.hidden),
	)
	return nil
}

// hideAll shelves each named operation that currently exists in the visible
// namespace. Unknown names are ignored; the restriction list may reference
// operations another override already hid.
func (e *Enforcer) hideAll(interp *Interpreter, names []string) {
	for _, name := range names {
		obj, present := interp.ops[name]
		if !present {
			continue
		}
		delete(interp.ops, name)
		interp.hidden[hiddenKey(name)] = obj
	}
}

// Revalidate checks an idle interpreter before reuse. It probes liveness and
// verifies no shelved operation has reappeared in the visible namespace; a
// reappeared capability means the instance cannot be trusted and must be
// destroyed. Policy itself is not re-checked because it cannot regress on an
// existing instance.
func (e *Enforcer) Revalidate(interp *Interpreter) error {
	if err := interp.Probe(); err != nil {
		return err
	}
	for _, name := range interp.hiddenOpNames() {
		if _, visible := interp.ops[name]; visible {
			return NewError(KindValidation, interp.ID,
				"hidden operation "+name+" reappeared in the interpreter namespace", nil)
		}
	}
	return nil
}
