package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/data-tracks/DataTracks/component"
	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/pkg/retry"
	"github.com/data-tracks/DataTracks/pkg/worker"
	"github.com/data-tracks/DataTracks/wal"
)

// Binding names one (engine_id, definition_id) pair: the durable cursor
// the persister pool advances as it applies trains in strict LSN order.
type Binding struct {
	EngineID     string
	DefinitionID string
}

func (b Binding) String() string { return b.EngineID + "/" + b.DefinitionID }

// DeadLetterFunc receives a record the engine could not apply even after
// retry (fatal classification), along with the cause.
type DeadLetterFunc func(b Binding, rec wal.Record, cause error)

// Option configures a Manager using the functional options pattern.
type Option func(*Manager)

// WithRetryConfig overrides the backoff policy used before a binding is
// marked degraded. Defaults to retry.Persistent().
func WithRetryConfig(cfg retry.Config) Option {
	return func(m *Manager) { m.retryCfg = cfg }
}

// WithDeadLetter registers a sink for fatally-rejected records.
func WithDeadLetter(fn DeadLetterFunc) Option {
	return func(m *Manager) { m.deadLetter = fn }
}

// WithLogger attaches a logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager owns one single-worker pkg/worker.Pool per (engine_id,
// definition_id) binding, grounded on pkg/worker.Pool[T]'s generic
// processor/queue shape: a pool with workers=1 gives strict FIFO
// processing of the records submitted to it, which is how Manager
// guarantees a binding never applies train N+1 before train N has either
// succeeded or been dead-lettered.
type Manager struct {
	mu         sync.Mutex
	offsets    *Offsets
	pools      map[Binding]*worker.Pool[wal.Record]
	engines    map[Binding]Engine
	retryCfg   retry.Config
	deadLetter DeadLetterFunc
	logger     *slog.Logger
	state      component.State

	degradedMu sync.Mutex
	degraded   map[Binding]bool
}

// NewManager builds a Manager backed by offsets for durable cursor
// tracking.
func NewManager(offsets *Offsets, opts ...Option) *Manager {
	m := &Manager{
		offsets:  offsets,
		pools:    make(map[Binding]*worker.Pool[wal.Record]),
		engines:  make(map[Binding]Engine),
		retryCfg: retry.Persistent(),
		degraded: make(map[Binding]bool),
		state:    component.StateCreated,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Initialize transitions the manager to ready-to-start.
func (m *Manager) Initialize() error {
	if m.state != component.StateCreated {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "persist", "Initialize", "manager")
	}
	m.state = component.StateInitialized
	return nil
}

// Bind registers engine under b and starts its dedicated single-worker
// pool. Bind does not read the durable cursor from offsets and does not
// replay the WAL: the pool applies only the records passed to Submit.
func (m *Manager) Bind(ctx context.Context, b Binding, engine Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pools[b]; exists {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "persist", "Bind", "binding already registered: "+b.String())
	}

	m.engines[b] = engine
	pool := worker.NewPool[wal.Record](1, 1024, func(ctx context.Context, rec wal.Record) error {
		return m.apply(ctx, b, rec)
	})
	if err := pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "persist", "Bind", b.String())
	}
	m.pools[b] = pool
	return nil
}

// Start is a no-op beyond marking the manager running; bindings are added
// incrementally via Bind as the plan graph's engine bindings are resolved.
func (m *Manager) Start(ctx context.Context) error {
	if m.state != component.StateInitialized {
		return errors.WrapInvalid(errors.ErrNotStarted, "persist", "Start", "manager")
	}
	m.state = component.StateStarted
	return nil
}

// Stop drains and stops every binding's pool.
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != component.StateStarted {
		return nil
	}
	for b, pool := range m.pools {
		if err := pool.Stop(timeout); err != nil {
			m.logger.Error("persist: pool stop failed", "binding", b.String(), "error", err)
		}
	}
	m.state = component.StateStopped
	return nil
}

// Submit enqueues rec for binding b. Returns an error if b has not been
// bound or its queue is full (backpressure to the WAL reader feeding it).
func (m *Manager) Submit(b Binding, rec wal.Record) error {
	m.mu.Lock()
	pool, ok := m.pools[b]
	m.mu.Unlock()
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "persist", "Submit", "unbound: "+b.String())
	}
	return pool.Submit(rec)
}

// apply runs inside b's single worker goroutine. It retries transient
// engine errors with backoff; on a fatal classification it dead-letters
// the record and advances the cursor (skipping it permanently); on
// exhausted transient retries it marks the binding degraded and keeps
// retrying indefinitely (blocking this binding's queue, never the others)
// until it either succeeds or ctx is canceled, preserving strict LSN
// order.
func (m *Manager) apply(ctx context.Context, b Binding, rec wal.Record) error {
	engine := m.engines[b]
	attempt := 0
	delay := m.retryCfg.InitialDelay

	for {
		start := time.Now()
		err := engine.Apply(ctx, rec.Train)
		_ = time.Since(start)

		if err == nil {
			m.setDegraded(b, false)
			if saveErr := m.offsets.Save(b.EngineID, b.DefinitionID, rec.LSN); saveErr != nil {
				m.logger.Error("persist: failed to save cursor", "binding", b.String(), "error", saveErr)
			}
			return nil
		}

		if errors.IsFatal(err) {
			m.logger.Error("persist: engine fatal, dead-lettering", "binding", b.String(), "lsn", rec.LSN, "error", err)
			if m.deadLetter != nil {
				m.deadLetter(b, rec, err)
			}
			m.setDegraded(b, false)
			if saveErr := m.offsets.Save(b.EngineID, b.DefinitionID, rec.LSN); saveErr != nil {
				m.logger.Error("persist: failed to save cursor", "binding", b.String(), "error", saveErr)
			}
			return nil
		}

		attempt++
		if attempt >= m.retryCfg.MaxAttempts {
			m.setDegraded(b, true)
			m.logger.Warn("persist: binding degraded, retrying past budget", "binding", b.String(), "lsn", rec.LSN, "attempt", attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * m.retryCfg.Multiplier)
		if delay > m.retryCfg.MaxDelay {
			delay = m.retryCfg.MaxDelay
		}
	}
}

func (m *Manager) setDegraded(b Binding, degraded bool) {
	m.degradedMu.Lock()
	defer m.degradedMu.Unlock()
	m.degraded[b] = degraded
}

// Degraded reports whether binding b is currently blocked past its retry
// budget.
func (m *Manager) Degraded(b Binding) bool {
	m.degradedMu.Lock()
	defer m.degradedMu.Unlock()
	return m.degraded[b]
}

// AppliedLSN returns the durable applied_lsn cursor for b, or 0 if never
// saved.
func (m *Manager) AppliedLSN(b Binding) (uint64, error) {
	lsn, err := m.offsets.Load(b.EngineID, b.DefinitionID)
	if err != nil {
		return 0, fmt.Errorf("persist: load cursor for %s: %w", b.String(), err)
	}
	return lsn, nil
}
