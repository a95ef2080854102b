// Package target connects to the system under test and turns what it
// returns into resultset.Set values.
package target

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/whipper/internal/resultset"
)

// Built-in connection strategies.
const (
	StrategySQLite   = "sqlite"
	StrategyPostgres = "postgres"
)

var (
	// ErrUnavailable means the target can no longer run queries. The
	// scenario using it is aborted.
	ErrUnavailable = errors.New("target unavailable")

	// ErrUnknownStrategy is returned by Open for an unregistered strategy.
	ErrUnknownStrategy = errors.New("unknown connection strategy")

	// ErrDuplicateStrategy is returned when a strategy is registered twice.
	ErrDuplicateStrategy = errors.New("duplicate connection strategy")
)

// Conn is one open connection to the target. Statements run in order on
// the same underlying session.
type Conn interface {
	// Execute runs sql. Errors raised by the statement itself come back as
	// a Set of kind error. A returned error means no result could be built;
	// it wraps ErrUnavailable when the target is gone.
	Execute(ctx context.Context, sql string) (*resultset.Set, error)

	// Ping checks the connection and, when sql is not empty, runs it. A
	// failing ping query is an error.
	Ping(ctx context.Context, sql string) error

	Close() error
}

// Factory opens a connection for a connection URL.
type Factory func(ctx context.Context, url string) (Conn, error)

// Registry maps strategy names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Default returns a registry holding the sqlite and postgres strategies.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(StrategySQLite, openSQLite)
	_ = r.Register(StrategyPostgres, openPostgres)
	return r
}

// Register adds f under name. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("connection strategy name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, key)
	}
	r.factories[key] = f
	return nil
}

// Names returns the registered strategies, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open connects to url using strategy.
func (r *Registry) Open(ctx context.Context, strategy, url string) (Conn, error) {
	key := strings.ToLower(strings.TrimSpace(strategy))
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownStrategy, strategy, strings.Join(r.Names(), ", "))
	}
	return f(ctx, url)
}
