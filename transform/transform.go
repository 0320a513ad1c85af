// Package transform is the dispatcher (C7) that routes a station's
// {language, query} declaration to a registered Driver and runs it against
// a windowed batch of trains. Ships one driver, "sql" (see the sql
// subpackage), grounded on the teacher's rule-expression evaluator for
// condition evaluation and its parser package shape for tokenizing.
package transform

import (
	"context"
	"fmt"
	"sync"

	"github.com/data-tracks/DataTracks/errors"
	"github.com/data-tracks/DataTracks/value"
)

// Driver runs a compiled query against a batch of trains, producing zero or
// more output trains.
type Driver interface {
	Run(ctx context.Context, batch []*value.Train) ([]*value.Train, error)
}

// Factory compiles query into a ready-to-run Driver.
type Factory func(query string) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a driver factory under name (e.g. "sql"). Registering the
// same name twice panics at init time - a programmer error, not a runtime
// condition.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic("transform: driver already registered: " + name)
	}
	registry[name] = factory
}

// Build compiles a {language, query} declaration into a runnable Driver.
func Build(language, query string) (Driver, error) {
	registryMu.RLock()
	factory, ok := registry[language]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrTransformFailed, "transform", "Build",
			fmt.Sprintf("no driver registered for language %q", language))
	}
	driver, err := factory(query)
	if err != nil {
		return nil, errors.WrapInvalid(err, "transform", "Build", "compile query")
	}
	return driver, nil
}
