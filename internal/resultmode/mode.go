// Package resultmode decides what happens to a query's actual result: ignore
// it, capture it as a new fixture, or compare it with the fixture on record.
package resultmode

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/scenario"
)

// Built-in mode names.
const (
	NameNone    = "NONE"
	NameCapture = "CAPTURE"
	NameCompare = "COMPARE"
)

var (
	// ErrDuplicateMode is returned when a name is registered twice.
	ErrDuplicateMode = errors.New("duplicate result mode")

	// ErrUnknownMode is returned for names that were never registered.
	ErrUnknownMode = errors.New("unknown result mode")
)

// Mode handles the actual result of each query.
//
// Init may be called again to apply new configuration. Destroy must be safe
// to call more than once and before Init. Expected conditions such as a
// missing fixture are reported through the returned Result; a returned error
// means something broke.
type Mode interface {
	Init(props config.Properties) error
	HandleResult(ctx context.Context, q *scenario.Query) (scenario.Result, error)
	Destroy()
	Name() string
}

// ErrorFiler is implemented by modes that write a detail file for failed
// queries. ErrorFile reports false when no file was written for q.
type ErrorFiler interface {
	ErrorFile(q *scenario.Query) (string, bool)
}

// Factory creates a fresh, uninitialized mode.
type Factory func() Mode

// Registry maps upper-case names to mode factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Default returns a registry holding NONE, CAPTURE and COMPARE.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(NameNone, func() Mode { return &noneMode{} })
	_ = r.Register(NameCapture, func() Mode { return &captureMode{} })
	_ = r.Register(NameCompare, func() Mode { return &compareMode{} })
	return r
}

// Register adds a factory under name. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) error {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("result mode name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMode, key)
	}
	r.factories[key] = f
	r.order = append(r.order, key)
	return nil
}

// New creates the mode registered under name.
func (r *Registry) New(name string) (Mode, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return f(), nil
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Select creates the mode called name, falling back to NONE with a warning
// when name is empty or unknown.
func Select(r *Registry, name string, log zerolog.Logger) Mode {
	if strings.TrimSpace(name) == "" {
		log.Warn().Msg("result mode not set, using NONE")
		return &noneMode{}
	}
	m, err := r.New(name)
	if err != nil {
		log.Warn().Err(err).Str("mode", name).Msg("result mode not found, using NONE")
		return &noneMode{}
	}
	return m
}

type noneMode struct{}

func (*noneMode) Init(config.Properties) error { return nil }

func (*noneMode) HandleResult(context.Context, *scenario.Query) (scenario.Result, error) {
	return scenario.Pass(), nil
}

func (*noneMode) Destroy()     {}
func (*noneMode) Name() string { return NameNone }
