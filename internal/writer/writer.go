// Package writer reports finished scenarios. A run fans every scenario out
// to a Set of writers; one writer failing never stops the others.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/scenario"
)

// Built-in writer names.
const (
	NameSummary       = "summary"
	NameConsole       = "console"
	NameSQLite        = "sqlite"
	NameElasticsearch = "elasticsearch"
)

// ErrDuplicateWriter is returned when a name is registered twice.
var ErrDuplicateWriter = errors.New("duplicate results writer")

// Writer records the outcome of finished scenarios.
//
// Init returns false when the writer cannot work with props; such a writer
// is left out of the run. WriteScenario may be called any number of times
// between Init and Destroy. Destroy releases resources and is safe to call
// more than once.
type Writer interface {
	Init(props config.Properties) bool
	WriteScenario(ctx context.Context, s *scenario.Scenario) error
	Destroy()
	Name() string
}

// Env carries what writers need from the surrounding run.
type Env struct {
	Log    zerolog.Logger
	Stdout io.Writer
	Now    func() time.Time
	RunID  string
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// Factory creates a fresh, uninitialized writer.
type Factory func(env Env) Writer

// Registry maps lower-case names to writer factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Default returns a registry holding the built-in writers.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(NameSummary, func(env Env) Writer { return newSummary(env) })
	_ = r.Register(NameConsole, func(env Env) Writer { return newConsole(env) })
	_ = r.Register(NameSQLite, func(env Env) Writer { return newSQLite(env) })
	_ = r.Register(NameElasticsearch, func(env Env) Writer { return newElasticsearch(env) })
	return r
}

// Register adds a factory under name. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("results writer name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateWriter, key)
	}
	r.factories[key] = f
	r.order = append(r.order, key)
	return nil
}

// New creates the writer registered under name.
func (r *Registry) New(name string, env Env) (Writer, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(env.withDefaults()), true
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
