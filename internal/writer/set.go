package writer

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/scenario"
)

// WriteError records one writer's failure to write a scenario.
type WriteError struct {
	Writer   string
	Scenario string
	Err      error
}

func (e WriteError) Error() string {
	return fmt.Sprintf("writer %s failed on scenario %s: %v", e.Writer, e.Scenario, e.Err)
}

func (e WriteError) Unwrap() error { return e.Err }

// Set is the group of writers active for a run.
type Set struct {
	writers  []Writer
	excluded []string
	log      zerolog.Logger
	destroy  sync.Once
}

// Open creates and initializes the writers called names, in order. Unknown
// names and writers whose Init returns false are excluded and logged.
func Open(reg *Registry, names []string, props config.Properties, env Env) *Set {
	s := &Set{log: env.Log}
	seen := map[string]bool{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if seen[key] {
			s.log.Warn().Str("writer", key).Msg("results writer listed twice, ignoring repeat")
			continue
		}
		seen[key] = true

		w, ok := reg.New(key, env)
		if !ok {
			s.log.Warn().Str("writer", key).Msg("unknown results writer, excluding it")
			s.excluded = append(s.excluded, key)
			continue
		}
		if !w.Init(props) {
			s.log.Warn().Str("writer", key).Msg("results writer failed to initialize, excluding it")
			w.Destroy()
			s.excluded = append(s.excluded, key)
			continue
		}
		s.writers = append(s.writers, w)
	}
	if len(s.writers) == 0 {
		s.log.Warn().Msg("no results writers active, results will not be recorded")
	}
	return s
}

// Active returns the names of the writers in the set.
func (s *Set) Active() []string {
	names := make([]string, len(s.writers))
	for i, w := range s.writers {
		names[i] = w.Name()
	}
	return names
}

// Excluded returns the names that were asked for but are not active.
func (s *Set) Excluded() []string {
	return slices.Clone(s.excluded)
}

// Write hands sc to every active writer in order. Failures and panics are
// logged and returned; they never stop the remaining writers.
func (s *Set) Write(ctx context.Context, sc *scenario.Scenario) []WriteError {
	var errs []WriteError
	for _, w := range s.writers {
		if err := safeWrite(ctx, w, sc); err != nil {
			s.log.Error().Err(err).Str("writer", w.Name()).Str("scenario", sc.ID).Msg("results writer failed")
			errs = append(errs, WriteError{Writer: w.Name(), Scenario: sc.ID, Err: err})
		}
	}
	return errs
}

func safeWrite(ctx context.Context, w Writer, sc *scenario.Scenario) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.WriteScenario(ctx, sc)
}

// Destroy destroys every active writer. Only the first call has an effect.
func (s *Set) Destroy() {
	s.destroy.Do(func() {
		for _, w := range s.writers {
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error().Str("writer", w.Name()).Interface("panic", r).Msg("results writer panicked on destroy")
					}
				}()
				w.Destroy()
			}()
		}
	})
}
