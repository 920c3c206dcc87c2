package sandbox

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
)

// hiddenKeyPrefix is not a valid tengo identifier, so nothing a script can
// write is able to name a shelved operation.
const hiddenKeyPrefix = "\x00hidden:"

func hiddenKey(name string) string {
	return hiddenKeyPrefix + name
}

// Interpreter is one reusable sandboxed execution environment, tagged with
// the policy it was hardened under. It is exclusively owned while active;
// none of its methods are safe for concurrent use on the same instance.
type Interpreter struct {
	ID             string
	policy         Policy
	createdAt      time.Time
	lastUsedAt     time.Time
	executionCount int
	state          State
	hardened       bool
	destroyed      bool

	modules *tengo.ModuleMap
	ops     map[string]tengo.Object // visible operation namespace
	hidden  map[string]tengo.Object // shelf for operations the policy forbids
	globals map[string]interface{}  // user variables persisted across runs
	rs      *runState
}

// Policy returns the security policy the interpreter was built with.
func (i *Interpreter) Policy() Policy {
	return i.policy
}

// State returns the current lifecycle state.
func (i *Interpreter) State() State {
	return i.state
}

// ExecutionCount returns how many runs this instance has completed.
func (i *Interpreter) ExecutionCount() int {
	return i.executionCount
}

// EvalOptions carries per-run inputs into Eval.
type EvalOptions struct {
	// Variables are request-scoped bindings, injected for this run only.
	Variables map[string]interface{}

	// Bindings are additional callable objects, typically the context and
	// tool bridge operations for the run's session.
	Bindings map[string]tengo.Object

	WorkDir string
	Env     map[string]string
	Timeout time.Duration
}

// EvalResult is the raw outcome of one evaluation.
type EvalResult struct {
	Value            interface{}
	Raw              string
	CompilationTime  time.Duration
	ExecutionTime    time.Duration
	MemoryUsedBytes  int64
	CommandsExecuted int64
}

// Eval compiles and runs source inside the hardened environment. Scripts
// report their output through an `output` (or `result`) variable. User
// variables defined by the script persist on the instance until a reset pass
// wipes them.
func (i *Interpreter) Eval(ctx context.Context, source string, opts EvalOptions) (*EvalResult, error) {
	if i.destroyed {
		return nil, NewError(KindExecution, i.ID, "interpreter has been destroyed", nil)
	}

	i.rs.workDir = opts.WorkDir
	i.rs.env = opts.Env

	script := tengo.NewScript([]byte(source))
	script.SetImports(i.modules)
	script.EnableFileImport(false)
	if i.policy.MaxMemoryBytes > 0 {
		// tengo budgets object allocations, not bytes. The divisor keeps the
		// two limits in the same order of magnitude for typical workloads.
		script.SetMaxAllocs(i.policy.MaxMemoryBytes / 64)
	}

	injected := make(map[string]bool)
	var commands int64

	for name, obj := range i.ops {
		if err := script.Add(name, countCalls(obj, &commands)); err != nil {
			return nil, NewError(KindExecution, i.ID, fmt.Sprintf("failed to bind operation %s", name), err)
		}
		injected[name] = true
	}
	for name, obj := range opts.Bindings {
		if err := script.Add(name, countCalls(obj, &commands)); err != nil {
			return nil, NewError(KindExecution, i.ID, fmt.Sprintf("failed to bind %s", name), err)
		}
		injected[name] = true
	}
	for name, value := range i.globals {
		if injected[name] {
			continue
		}
		if err := script.Add(name, value); err != nil {
			return nil, NewError(KindExecution, i.ID, fmt.Sprintf("failed to restore variable %s", name), err)
		}
		injected[name] = true
	}
	for name, value := range opts.Variables {
		if err := script.Add(name, value); err != nil {
			return nil, NewError(KindExecution, i.ID, fmt.Sprintf("failed to set variable %s", name), err)
		}
		injected[name] = true
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	compileStart := time.Now()
	compiled, err := script.Compile()
	if err != nil {
		// Hidden operations surface here as the engine's own unresolved
		// reference failure, indistinguishable from a typo.
		return nil, NewError(KindCompilation, i.ID, "script compilation failed", err)
	}
	compilationTime := time.Since(compileStart)

	timeout := opts.Timeout
	if timeout <= 0 || timeout > i.policy.MaxExecutionTime {
		timeout = i.policy.MaxExecutionTime
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	// Host operations observe the same deadline, so a timed-out run cancels
	// nested evaluations, subprocesses and in-flight network calls with it.
	i.rs.ctx = runCtx

	execStart := time.Now()
	resultChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- fmt.Errorf("script panic: %v", r)
			}
		}()
		resultChan <- compiled.RunContext(runCtx)
	}()

	select {
	case err := <-resultChan:
		if err != nil {
			if runCtx.Err() != nil {
				return nil, NewError(KindTimeout, i.ID, "script execution timed out", runCtx.Err())
			}
			return nil, NewError(KindExecution, i.ID, "script execution failed", err)
		}
	case <-runCtx.Done():
		return nil, NewError(KindTimeout, i.ID, "script execution timed out", runCtx.Err())
	}
	executionTime := time.Since(execStart)

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)
	var memoryUsed int64
	if memAfter.Alloc > memBefore.Alloc {
		memoryUsed = int64(memAfter.Alloc - memBefore.Alloc)
	}

	// Variables the script defined itself survive on the instance until the
	// next reset pass.
	for _, v := range compiled.GetAll() {
		if !injected[v.Name()] {
			i.globals[v.Name()] = v.Value()
		}
	}

	value := extractOutput(compiled)

	return &EvalResult{
		Value:            value,
		Raw:              stringifyValue(value),
		CompilationTime:  compilationTime,
		ExecutionTime:    executionTime,
		MemoryUsedBytes:  memoryUsed,
		CommandsExecuted: atomic.LoadInt64(&commands),
	}, nil
}

// Probe runs a trivial liveness check without touching persisted state.
func (i *Interpreter) Probe() error {
	script := tengo.NewScript([]byte("ok := 1 + 1"))
	compiled, err := script.Compile()
	if err != nil {
		return NewError(KindValidation, i.ID, "liveness probe failed to compile", err)
	}
	if err := compiled.Run(); err != nil {
		return NewError(KindValidation, i.ID, "liveness probe failed to run", err)
	}
	v := compiled.Get("ok")
	if v == nil || v.Value() != int64(2) {
		return NewError(KindValidation, i.ID, "liveness probe returned an unexpected result", nil)
	}
	return nil
}

// Reset wipes user-defined variables. The security hardening is untouched;
// policy cannot regress on an existing instance.
func (i *Interpreter) Reset() {
	i.globals = make(map[string]interface{})
}

// hiddenOpNames returns the operation names currently shelved.
func (i *Interpreter) hiddenOpNames() []string {
	names := make([]string, 0, len(i.hidden))
	for key := range i.hidden {
		names = append(names, strings.TrimPrefix(key, hiddenKeyPrefix))
	}
	sort.Strings(names)
	return names
}

// countCalls wraps callable objects so the run can report how many host
// operations the script invoked. Non-callable objects pass through.
func countCalls(obj tengo.Object, counter *int64) tengo.Object {
	fn, ok := obj.(*tengo.UserFunction)
	if !ok {
		return obj
	}
	inner := fn.Value
	return &tengo.UserFunction{
		Name: fn.Name,
		Value: func(args ...tengo.Object) (tengo.Object, error) {
			atomic.AddInt64(counter, 1)
			return inner(args...)
		},
	}
}

// extractOutput pulls the script's declared output. `output` wins over
// `result` when both are set.
func extractOutput(compiled *tengo.Compiled) interface{} {
	for _, name := range []string{"output", "result"} {
		if v := compiled.Get(name); v != nil && !v.IsUndefined() {
			return v.Value()
		}
	}
	return nil
}

// safeModuleMap returns the compute-only stdlib modules used by nested
// evaluations and probes.
func safeModuleMap() *tengo.ModuleMap {
	return stdlib.GetModuleMap("fmt", "text", "math", "times", "rand", "json", "base64", "hex", "enum")
}

// stringifyValue renders a script value into its textual literal form. Maps
// and lists come out as the literal shapes the output formatter classifies;
// scalars render bare.
func stringifyValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []byte:
		return string(val)
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+literalValue(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, literalValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// literalValue renders a value as it appears inside a map or list literal:
// strings quoted, everything else in its bare form.
func literalValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case map[string]interface{}, []interface{}:
		return stringifyValue(val)
	case nil:
		return "undefined"
	default:
		return stringifyValue(val)
	}
}
