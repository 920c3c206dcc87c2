package sandbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// GrowthStrategy controls whether the maintenance pass pre-creates
// interpreters under load.
type GrowthStrategy string

const (
	GrowthFixed    GrowthStrategy = "fixed"
	GrowthAdaptive GrowthStrategy = "adaptive"
)

// adaptiveGrowthThreshold is the utilization above which the adaptive
// strategy pre-creates Standard-policy interpreters.
const adaptiveGrowthThreshold = 0.8

// PoolConfig tunes pool sizing and recycling behavior.
type PoolConfig struct {
	MaxSize                         int
	AcquireTimeout                  time.Duration
	MaxExecutionsPerInterpreter     int
	MaxIdleTime                     time.Duration
	RecycleOnError                  bool
	ClearVariablesBetweenExecutions bool
	ValidateBeforeUse               bool
	MaintenanceInterval             time.Duration
	Growth                          GrowthStrategy
}

// DefaultPoolConfig returns the pool defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxSize:                         10,
		AcquireTimeout:                  10 * time.Second,
		MaxExecutionsPerInterpreter:     100,
		MaxIdleTime:                     10 * time.Minute,
		RecycleOnError:                  true,
		ClearVariablesBetweenExecutions: true,
		ValidateBeforeUse:               true,
		MaintenanceInterval:             time.Minute,
		Growth:                          GrowthAdaptive,
	}
}

// PoolStats is a point-in-time snapshot of pool occupancy.
type PoolStats struct {
	Idle      int
	Active    int
	Created   int64
	Destroyed int64
}

// Pool owns a bounded set of interpreters keyed by policy fingerprint.
// Acquire hands out exclusive ownership; Release either returns the instance
// to the idle set after a reset pass or destroys it.
type Pool struct {
	cfg      PoolConfig
	factory  *Factory
	enforcer *Enforcer

	mu        sync.Mutex
	idle      map[string][]*Interpreter
	active    map[string]*Interpreter
	created   int64
	destroyed int64
	closed    bool

	sem    *semaphore.Weighted
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPool creates a pool and starts its maintenance timer.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultPoolConfig().MaxSize
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = time.Minute
	}
	p := &Pool{
		cfg:      cfg,
		factory:  NewFactory(),
		enforcer: NewEnforcer(),
		idle:     make(map[string][]*Interpreter),
		active:   make(map[string]*Interpreter),
		sem:      semaphore.NewWeighted(int64(cfg.MaxSize)),
		stopCh:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.maintain()
	return p
}

// Acquire returns an exclusively owned interpreter matching the policy. An
// idle instance with the same policy fingerprint is reused after optional
// revalidation; otherwise a new one is created and hardened. Blocks up to the
// configured acquire timeout.
func (p *Pool) Acquire(ctx context.Context, policy Policy) (*Interpreter, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, NewError(KindPoolClosed, "", "pool is shutting down", nil)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()
	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		return nil, NewError(KindPoolTimeout, "", "no interpreter became available within the acquire timeout", err)
	}

	fingerprint := policy.Fingerprint()
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.sem.Release(1)
			return nil, NewError(KindPoolClosed, "", "pool is shutting down", nil)
		}
		interp := p.popIdleLocked(fingerprint)
		p.mu.Unlock()
		if interp == nil {
			break
		}

		if p.cfg.ValidateBeforeUse {
			if err := p.enforcer.Revalidate(interp); err != nil {
				slog.Warn("Destroying interpreter that failed revalidation",
					"interpreter_id", interp.ID, "error", err)
				p.destroy(interp)
				continue
			}
		}
		p.checkout(interp)
		return interp, nil
	}

	// MaxSize bounds instantiated instances, not just checkouts. The semaphore
	// caps concurrent owners, so room can only be missing when idle instances
	// of other fingerprints hold it; one of those makes way.
	p.mu.Lock()
	idleTotal := 0
	for _, list := range p.idle {
		idleTotal += len(list)
	}
	var victim *Interpreter
	if len(p.active)+idleTotal >= p.cfg.MaxSize {
		victim = p.popAnyIdleLocked()
	}
	p.mu.Unlock()
	if victim != nil {
		slog.Debug("Evicting idle interpreter to make room",
			"interpreter_id", victim.ID)
		p.destroy(victim)
	}

	interp, err := p.factory.Create(policy)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	if err := p.enforcer.Apply(interp, policy); err != nil {
		p.sem.Release(1)
		return nil, err
	}
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	p.checkout(interp)

	slog.Debug("Created interpreter",
		"interpreter_id", interp.ID,
		"trust_level", policy.Level.String(),
	)
	return interp, nil
}

// Release hands an interpreter back. The recycle decision applies, in order:
// error recycling, the execution count ceiling, the age ceiling. Reused
// instances get a reset pass when variable clearing is configured.
func (p *Pool) Release(interp *Interpreter, hadError bool) {
	p.mu.Lock()
	delete(p.active, interp.ID)
	interp.executionCount++
	interp.lastUsedAt = time.Now()
	closed := p.closed
	p.mu.Unlock()
	defer p.sem.Release(1)

	switch {
	case closed:
		p.destroy(interp)
	case hadError && p.cfg.RecycleOnError:
		p.destroy(interp)
	case p.cfg.MaxExecutionsPerInterpreter > 0 && interp.executionCount >= p.cfg.MaxExecutionsPerInterpreter:
		p.destroy(interp)
	case p.cfg.MaxIdleTime > 0 && time.Since(interp.createdAt) >= p.cfg.MaxIdleTime:
		p.destroy(interp)
	default:
		if p.cfg.ClearVariablesBetweenExecutions {
			interp.Reset()
		}
		p.mu.Lock()
		interp.state = StateIdle
		fp := interp.policy.Fingerprint()
		p.idle[fp] = append(p.idle[fp], interp)
		p.mu.Unlock()
	}
}

// Discard destroys an interpreter without considering reuse. Used after a
// timed-out run, whose internal state is untrusted.
func (p *Pool) Discard(interp *Interpreter) {
	p.mu.Lock()
	delete(p.active, interp.ID)
	p.mu.Unlock()
	p.destroy(interp)
	p.sem.Release(1)
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	for _, list := range p.idle {
		idle += len(list)
	}
	return PoolStats{
		Idle:      idle,
		Active:    len(p.active),
		Created:   p.created,
		Destroyed: p.destroyed,
	}
}

// Shutdown drains the pool: idle interpreters are destroyed immediately,
// active ones as they are released, and no new acquisitions are admitted.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var stale []*Interpreter
	for fp, list := range p.idle {
		stale = append(stale, list...)
		delete(p.idle, fp)
	}
	p.mu.Unlock()

	for _, interp := range stale {
		p.destroy(interp)
	}
	close(p.stopCh)
	p.wg.Wait()

	slog.Info("Interpreter pool shut down", "destroyed_idle", len(stale))
	return nil
}

func (p *Pool) popIdleLocked(fingerprint string) *Interpreter {
	list := p.idle[fingerprint]
	if len(list) == 0 {
		return nil
	}
	interp := list[len(list)-1]
	p.idle[fingerprint] = list[:len(list)-1]
	return interp
}

func (p *Pool) popAnyIdleLocked() *Interpreter {
	for fp, list := range p.idle {
		if len(list) == 0 {
			continue
		}
		interp := list[0]
		p.idle[fp] = list[1:]
		return interp
	}
	return nil
}

func (p *Pool) checkout(interp *Interpreter) {
	p.mu.Lock()
	interp.state = StateActive
	interp.lastUsedAt = time.Now()
	p.active[interp.ID] = interp
	p.mu.Unlock()
}

func (p *Pool) destroy(interp *Interpreter) {
	interp.destroyed = true
	interp.globals = nil
	p.mu.Lock()
	p.destroyed++
	p.mu.Unlock()
	slog.Debug("Destroyed interpreter",
		"interpreter_id", interp.ID,
		"executions", interp.executionCount,
	)
}

// maintain runs the periodic pass: stale idle eviction and, under the
// adaptive strategy, pre-creation of Standard-policy interpreters when
// utilization crosses the growth threshold.
func (p *Pool) maintain() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.evictStale()
			if p.cfg.Growth == GrowthAdaptive {
				p.growIfBusy()
			}
		}
	}
}

func (p *Pool) evictStale() {
	if p.cfg.MaxIdleTime <= 0 {
		return
	}
	var stale []*Interpreter
	p.mu.Lock()
	for fp, list := range p.idle {
		kept := list[:0]
		for _, interp := range list {
			if time.Since(interp.lastUsedAt) >= p.cfg.MaxIdleTime {
				stale = append(stale, interp)
			} else {
				kept = append(kept, interp)
			}
		}
		p.idle[fp] = kept
	}
	p.mu.Unlock()

	for _, interp := range stale {
		slog.Debug("Evicting idle interpreter", "interpreter_id", interp.ID)
		p.destroy(interp)
	}
}

func (p *Pool) growIfBusy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	activeCount := len(p.active)
	idleCount := 0
	for _, list := range p.idle {
		idleCount += len(list)
	}
	p.mu.Unlock()

	utilization := float64(activeCount) / float64(p.cfg.MaxSize)
	if utilization <= adaptiveGrowthThreshold || activeCount+idleCount >= p.cfg.MaxSize {
		return
	}

	policy := NewPolicy(TrustStandard)
	interp, err := p.factory.Create(policy)
	if err != nil {
		slog.Warn("Adaptive growth failed to create interpreter", "error", err)
		return
	}
	if err := p.enforcer.Apply(interp, policy); err != nil {
		slog.Warn("Adaptive growth failed to harden interpreter", "error", err)
		return
	}

	p.mu.Lock()
	p.created++
	fp := policy.Fingerprint()
	p.idle[fp] = append(p.idle[fp], interp)
	p.mu.Unlock()

	slog.Info("Adaptive growth created interpreter",
		"interpreter_id", interp.ID,
		"utilization", utilization,
	)
}
