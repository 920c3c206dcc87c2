package sandbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nfrund/sandscript/internal/bridge"
	"github.com/nfrund/sandscript/internal/format"
	"github.com/nfrund/sandscript/internal/history"
	"github.com/nfrund/sandscript/internal/pubsub"
	"github.com/nfrund/sandscript/internal/session"
)

// RuntimeConfig tunes the execution runtime. MaxConcurrentExecutions bounds
// simultaneously executing scripts; it is independent of the pool size,
// which bounds simultaneously instantiated interpreters.
type RuntimeConfig struct {
	MaxConcurrentExecutions int
	DefaultTimeout          time.Duration
}

// DefaultRuntimeConfig returns the runtime defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		MaxConcurrentExecutions: 10,
		DefaultTimeout:          30 * time.Second,
	}
}

// Dependencies holds the collaborators the Runtime requires to operate.
type Dependencies struct {
	Pool     *Pool
	Sessions session.Store
	History  *history.Store
	Tools    bridge.ToolRegistry
	Contexts bridge.ContextProvider
	Events   pubsub.Publisher
}

// Runtime orchestrates single runs: acquire an interpreter, wire the bridge,
// execute under a deadline, format, record history, release.
type Runtime struct {
	cfg      RuntimeConfig
	pool     *Pool
	sessions session.Store
	history  *history.Store
	tools    bridge.ToolRegistry
	contexts bridge.ContextProvider
	events   pubsub.Publisher
	sem      *semaphore.Weighted
}

// NewRuntime creates an execution runtime.
func NewRuntime(cfg RuntimeConfig, deps Dependencies) *Runtime {
	if cfg.MaxConcurrentExecutions <= 0 {
		cfg.MaxConcurrentExecutions = DefaultRuntimeConfig().MaxConcurrentExecutions
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultRuntimeConfig().DefaultTimeout
	}
	return &Runtime{
		cfg:      cfg,
		pool:     deps.Pool,
		sessions: deps.Sessions,
		history:  deps.History,
		tools:    deps.Tools,
		contexts: deps.Contexts,
		events:   deps.Events,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentExecutions)),
	}
}

// Execute runs one script. Every run, success or failure, yields a
// structured result; script failures never escape as process-level errors.
func (r *Runtime) Execute(ctx context.Context, req Request) *Result {
	res := &Result{
		ExecutionID: uuid.NewString(),
		StartTime:   time.Now(),
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}

	policy := NewPolicy(req.TrustLevel)
	for _, pkg := range req.ImportedPackages {
		if !policy.ModuleAllowed(pkg) {
			return r.fail(ctx, req, res, KindValidation, "package "+pkg+" is not permitted at trust level "+req.TrustLevel.String())
		}
	}

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	err := r.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		return r.fail(ctx, req, res, KindPoolTimeout, "execution concurrency limit reached")
	}
	defer r.sem.Release(1)

	interp, err := r.pool.Acquire(ctx, policy)
	if err != nil {
		kind := KindExecution
		if e, ok := err.(*Error); ok {
			kind = e.Kind
		}
		return r.fail(ctx, req, res, kind, err.Error())
	}

	execCtx := r.buildContext(ctx, req.SessionID)
	b := bridge.New(req.SessionID, r.sessions, execCtx, r.tools)

	evalRes, err := interp.Eval(ctx, req.Script, EvalOptions{
		Variables: req.Variables,
		Bindings:  b.Ops(ctx),
		WorkDir:   req.WorkingDirectory,
		Env:       req.EnvironmentVariables,
		Timeout:   timeout,
	})
	if err != nil {
		kind := KindExecution
		if e, ok := err.(*Error); ok {
			kind = e.Kind
		}
		if kind == KindTimeout {
			// A timed-out interpreter's internal state is untrusted.
			r.pool.Discard(interp)
		} else {
			r.pool.Release(interp, true)
		}
		return r.fail(ctx, req, res, kind, err.Error())
	}
	r.pool.Release(interp, false)

	res.Success = true
	res.Result = evalRes.Raw
	res.EndTime = time.Now()
	res.Metrics = Metrics{
		CompilationTime:  evalRes.CompilationTime,
		ExecutionTime:    evalRes.ExecutionTime,
		CommandsExecuted: evalRes.CommandsExecuted,
		MemoryUsedBytes:  evalRes.MemoryUsedBytes,
		Success:          true,
	}

	if req.OutputFormat != "" && req.OutputFormat != format.FormatPlain {
		formatted := format.Render(evalRes.Raw, req.OutputFormat)
		res.Formatted = &formatted
	}

	r.record(ctx, req, res)
	sandboxLogger.logExecution(slog.LevelDebug, "Script executed successfully", res.ExecutionID, req.SessionID,
		slog.String("trust_level", req.TrustLevel.String()),
		slog.Duration("execution_time", res.Metrics.ExecutionTime),
	)
	sandboxLogger.logPerformance(res.ExecutionID, res.Metrics)
	return res
}

// History exposes the execution history store for query surfaces.
func (r *Runtime) History() *history.Store {
	return r.history
}

// PoolStats reports pool occupancy for operational surfaces.
func (r *Runtime) PoolStats() PoolStats {
	return r.pool.Stats()
}

// Shutdown drains and destroys the interpreter pool. In-flight executions
// may still finish; new acquisitions fail immediately.
func (r *Runtime) Shutdown(ctx context.Context) error {
	return r.pool.Shutdown(ctx)
}

func (r *Runtime) buildContext(ctx context.Context, sessionID string) bridge.Context {
	if r.contexts == nil {
		return bridge.Context{}
	}
	execCtx, err := r.contexts.BuildContext(ctx, sessionID)
	if err != nil {
		slog.Warn("Context provider failed, continuing with empty context",
			"session_id", sessionID, "error", err)
		return bridge.Context{}
	}
	return execCtx
}

func (r *Runtime) fail(ctx context.Context, req Request, res *Result, kind ErrorKind, message string) *Result {
	res.Success = false
	res.ErrorMessage = message
	res.EndTime = time.Now()
	res.ExitCode = 1
	res.Metrics.Success = false
	res.Metrics.ErrorKind = kind
	res.Metrics.ExecutionTime = res.EndTime.Sub(res.StartTime)

	r.record(ctx, req, res)
	sandboxLogger.logExecution(slog.LevelWarn, "Script execution failed", res.ExecutionID, req.SessionID,
		slog.String("error_kind", string(kind)),
		slog.String("error", message),
	)
	return res
}

// record appends the history entry and publishes the completion event.
// Infrastructure failures here are logged, never surfaced as run failures.
func (r *Runtime) record(ctx context.Context, req Request, res *Result) {
	if r.history != nil {
		entry := history.Entry{
			ExecutionID:     res.ExecutionID,
			SessionID:       req.SessionID,
			Script:          req.Script,
			Result:          res.Result,
			ErrorMessage:    res.ErrorMessage,
			Success:         res.Success,
			StartTime:       res.StartTime,
			EndTime:         res.EndTime,
			Duration:        res.EndTime.Sub(res.StartTime),
			MemoryUsedBytes: res.Metrics.MemoryUsedBytes,
		}
		if err := r.history.Append(ctx, entry); err != nil {
			slog.Error("Failed to record execution history", "execution_id", res.ExecutionID, "error", err)
		}
	}

	if r.events != nil {
		payload, err := json.Marshal(map[string]interface{}{
			"execution_id": res.ExecutionID,
			"session_id":   req.SessionID,
			"success":      res.Success,
			"duration_ms":  res.EndTime.Sub(res.StartTime).Milliseconds(),
		})
		if err == nil {
			err = r.events.Publish(ctx, pubsub.Message{
				Topic:     pubsub.TopicExecutionCompleted,
				SessionID: req.SessionID,
				Payload:   payload,
				Metadata: map[string]string{
					"success": strconv.FormatBool(res.Success),
				},
			})
		}
		if err != nil {
			slog.Error("Failed to publish completion event", "execution_id", res.ExecutionID, "error", err)
		}
	}
}
