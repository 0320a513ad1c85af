// Package persist implements the engine persister pool (C9): one ordered
// worker per (engine_id, definition_id) pair that applies trains read from
// the WAL to a destination engine binding, retrying transient failures
// with backoff and dead-lettering trains an engine rejects permanently.
package persist

import (
	"context"
	"fmt"
	"sync"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/value"
)

// Engine applies a train to a destination system (Mongo, Postgres, Neo4j,
// SQLite, ...). Implementations must be safe for sequential reuse across
// calls from a single persister worker; Manager never calls Apply for the
// same (engine_id, definition_id) pair concurrently.
type Engine interface {
	Apply(ctx context.Context, train *value.Train) error
	Close() error
}

// EngineFactory builds an Engine bound to one definition from its DSN/URI.
// Concrete drivers register themselves with RegisterEngine under a scheme
// name ("mongodb", "postgres", "neo4j", "sqlite") the way transform
// drivers register under a dialect name.
type EngineFactory func(dsn string) (Engine, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]EngineFactory{}
)

// RegisterEngine adds an engine factory under scheme (e.g. "mongodb").
// Registering the same scheme twice panics at init time - a programmer
// error, not a runtime condition.
func RegisterEngine(scheme string, factory EngineFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, exists := factories[scheme]; exists {
		panic("persist: engine already registered: " + scheme)
	}
	factories[scheme] = factory
}

// BuildEngine looks up the factory registered for scheme and opens an
// Engine bound to dsn.
func BuildEngine(scheme, dsn string) (Engine, error) {
	factoryMu.RLock()
	factory, ok := factories[scheme]
	factoryMu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "persist", "BuildEngine",
			fmt.Sprintf("no engine registered for scheme %q", scheme))
	}
	return factory(dsn)
}
