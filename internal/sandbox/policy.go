package sandbox

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Policy is the concrete set of permission flags and restricted operation
// names derived from a trust level. A policy never changes for the lifetime
// of an interpreter built with it.
type Policy struct {
	Level            TrustLevel
	AllowFileSystem  bool
	AllowNetwork     bool
	AllowProcessExec bool
	AllowReflection  bool
	RestrictedOps    []string
	MaxExecutionTime time.Duration
	MaxMemoryBytes   int64
}

// Default resource ceilings, applied to every derived policy unless the
// caller overrides them afterwards.
const (
	DefaultMaxExecutionTime = 30 * time.Second
	DefaultMaxMemoryBytes   = int64(64 * 1024 * 1024)
)

// NewPolicy derives the policy for a trust level. Additional operation names
// passed as overrides are restricted on top of the level's own rules.
//
// Maximum allows everything with an empty restriction set. Minimal denies
// everything and additionally restricts sub-interpreter creation, as does
// Standard.
func NewPolicy(level TrustLevel, restricted ...string) Policy {
	p := Policy{
		Level:            level,
		MaxExecutionTime: DefaultMaxExecutionTime,
		MaxMemoryBytes:   DefaultMaxMemoryBytes,
	}

	switch level {
	case TrustMinimal:
		p.RestrictedOps = append(p.RestrictedOps, spawnOps...)
	case TrustStandard:
		p.AllowFileSystem = true
		p.RestrictedOps = append(p.RestrictedOps, spawnOps...)
	case TrustElevated:
		p.AllowFileSystem = true
		p.AllowNetwork = true
		p.AllowReflection = true
	case TrustMaximum:
		p.AllowFileSystem = true
		p.AllowNetwork = true
		p.AllowProcessExec = true
		p.AllowReflection = true
	}

	p.RestrictedOps = append(p.RestrictedOps, restricted...)
	sort.Strings(p.RestrictedOps)
	return p
}

// DefaultPolicy returns the Standard-level policy without overrides.
func DefaultPolicy() Policy {
	return NewPolicy(TrustStandard)
}

// Fingerprint returns a stable identifier for the policy. Interpreters are
// pooled by fingerprint so an instance hardened under one policy is never
// handed out for a request carrying a different one.
func (p Policy) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%t|%t|%t|%t|", p.Level, p.AllowFileSystem, p.AllowNetwork, p.AllowProcessExec, p.AllowReflection)
	b.WriteString(strings.Join(p.RestrictedOps, ","))
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%x", p.Level, sum[:8])
}

// ModuleAllowed reports whether the named stdlib module is importable under
// this policy.
func (p Policy) ModuleAllowed(name string) bool {
	for _, m := range p.AllowedModules() {
		if m == name {
			return true
		}
	}
	return false
}

// AllowedModules returns the tengo stdlib modules importable under this
// policy. The compute-only modules are always available; "os" carries file
// and process access and is only exposed where the policy already grants it.
func (p Policy) AllowedModules() []string {
	modules := []string{"fmt", "text", "math", "times", "rand", "json", "base64", "hex", "enum"}
	if p.AllowFileSystem && p.AllowProcessExec {
		modules = append(modules, "os")
	}
	return modules
}
