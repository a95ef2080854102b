package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/resultmode"
	"github.com/roach88/whipper/internal/scenario"
	"github.com/roach88/whipper/internal/target"
	"github.com/roach88/whipper/internal/writer"
)

// PropertiesDumpFile receives the resolved run properties in output.dir.
const PropertiesDumpFile = "initial.properties"

// Options configure a Runner. Settings is required; registries, clock and
// run ID generator fall back to the built-in ones.
type Options struct {
	// Props are the run properties. Scenario definitions are merged over
	// them.
	Props config.Properties

	// Overrides are applied over every scenario definition.
	Overrides config.Properties

	Settings *config.Settings

	Modes   *resultmode.Registry
	Writers *writer.Registry
	Targets *target.Registry

	Log      zerolog.Logger
	Stdout   io.Writer
	Now      func() time.Time
	IDs      IDGenerator
	Monitors []Monitor
}

// Runner runs scenarios.
type Runner struct {
	props     config.Properties
	overrides config.Properties
	settings  *config.Settings

	modes   *resultmode.Registry
	writers *writer.Registry
	targets *target.Registry

	log     zerolog.Logger
	stdout  io.Writer
	now     func() time.Time
	ids     IDGenerator
	monitor monitors
}

// New creates a Runner from opts.
func New(opts Options) (*Runner, error) {
	if opts.Settings == nil {
		return nil, errors.New("runner settings are required")
	}
	r := &Runner{
		props:     opts.Props.Clone(),
		overrides: opts.Overrides.Clone(),
		settings:  opts.Settings,
		modes:     opts.Modes,
		writers:   opts.Writers,
		targets:   opts.Targets,
		log:       opts.Log,
		stdout:    opts.Stdout,
		now:       opts.Now,
		ids:       opts.IDs,
		monitor:   append(monitors{LogMonitor{Log: opts.Log}}, opts.Monitors...),
	}
	if r.modes == nil {
		r.modes = resultmode.Default()
	}
	if r.writers == nil {
		r.writers = writer.Default()
	}
	if r.targets == nil {
		r.targets = target.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.ids == nil {
		r.ids = ulidGenerator{}
	}
	return r, nil
}

// Run runs defs and reports every scenario to the configured writers.
//
// Scenario failures are part of the returned Summary, not errors. The
// error is non-nil only when ctx was cancelled before every scenario
// started; the Summary then covers the scenarios that did run.
func (r *Runner) Run(ctx context.Context, defs []*scenario.Definition) (*Summary, error) {
	runProps, err := r.props.Merge(r.overrides).Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve run properties: %w", err)
	}

	runID := r.ids.Generate()
	log := r.log.With().Str("run", runID).Logger()

	writers := writer.Open(r.writers, r.settings.Writers, runProps, writer.Env{
		Log:    log,
		Stdout: r.stdout,
		Now:    r.now,
		RunID:  runID,
	})
	defer writers.Destroy()

	if r.settings.OutputDir != "" {
		if err := config.Dump(runProps, filepath.Join(r.settings.OutputDir, PropertiesDumpFile)); err != nil {
			log.Error().Err(err).Msg("cannot dump properties")
		}
	}

	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	summary := &Summary{
		RunID:           runID,
		Started:         r.now(),
		Writers:         writers.Active(),
		ExcludedWriters: writers.Excluded(),
	}
	r.monitor.RunStarted(runID, ids)

	finished := make([]*scenario.Scenario, len(defs))
	jobs := make(chan int)

	workers := min(r.settings.Workers, len(defs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mode := resultmode.Select(r.modes, r.settings.ResultMode, log)
			defer mode.Destroy()
			for i := range jobs {
				sc := r.runScenario(ctx, log, mode, defs[i])
				writers.Write(context.WithoutCancel(ctx), sc)
				finished[i] = sc
			}
		}()
	}

	var runErr error
feed:
	for i := range defs {
		if runErr = ctx.Err(); runErr == nil {
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
			case jobs <- i:
				continue
			}
		}
		log.Warn().Err(runErr).Int("remaining", len(defs)-i).Msg("run cancelled, not starting remaining scenarios")
		break feed
	}
	close(jobs)
	wg.Wait()

	for _, sc := range finished {
		if sc != nil {
			summary.add(sc)
		}
	}
	summary.Finished = r.now()

	if r.settings.OutputDir != "" {
		if err := summary.WriteFile(r.settings.OutputDir); err != nil {
			log.Error().Err(err).Msg("cannot write run summary")
		}
	}
	r.monitor.RunFinished(summary)
	return summary, runErr
}
