package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/resultmode"
	"github.com/roach88/whipper/internal/resultset"
	"github.com/roach88/whipper/internal/scenario"
	"github.com/roach88/whipper/internal/target"
)

// runScenario builds and runs one scenario. It always returns a finished
// scenario; anything that stopped it from running is recorded in its Err.
//
// Cancelling ctx does not interrupt a statement in flight. It is checked
// between queries, and the after query still runs.
func (r *Runner) runScenario(ctx context.Context, log zerolog.Logger, mode resultmode.Mode, def *scenario.Definition) *scenario.Scenario {
	log = log.With().Str("scenario", def.ID).Logger()
	start := r.now()

	sc, settings, err := r.prepare(def)
	if err != nil {
		log.Error().Err(err).Msg("cannot prepare scenario")
		sc.Err = err
		sc.Start, sc.End = start, r.now()
		r.monitor.ScenarioStarted(sc)
		r.monitor.ScenarioFinished(sc)
		return sc
	}

	sc.Start = start
	r.monitor.ScenarioStarted(sc)
	defer func() {
		sc.End = r.now()
		r.monitor.ScenarioFinished(sc)
	}()

	if err := mode.Init(sc.Props); err != nil {
		sc.Err = fmt.Errorf("result mode %s: %w", mode.Name(), err)
		log.Error().Err(err).Str("mode", mode.Name()).Msg("result mode setup failed, skipping scenario")
		r.skipRemaining(sc, "result mode setup failed")
		return sc
	}

	exec := context.WithoutCancel(ctx)
	conn, err := r.targets.Open(exec, settings.Strategy, settings.URL)
	if err != nil {
		r.failAll(sc, "connect", err)
		log.Error().Err(err).Str("strategy", settings.Strategy).Msg("cannot connect to target")
		return sc
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("closing target connection")
		}
	}()

	if err := conn.Ping(exec, settings.PingQuery); err != nil {
		r.failAll(sc, "ping", err)
		log.Error().Err(err).Msg("target ping failed")
		return sc
	}

	e := &execution{
		r:        r,
		ctx:      ctx,
		exec:     exec,
		log:      log,
		sc:       sc,
		conn:     conn,
		mode:     mode,
		failFast: settings.FailFast,
	}
	e.run()

	if settings.AfterQuery != "" && !e.lost {
		res, err := conn.Execute(exec, settings.AfterQuery)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("after query failed")
		case res.Kind == resultset.KindError:
			log.Warn().Str("error", res.Error.Message).Msg("after query failed")
		}
	}
	return sc
}

// prepare resolves the scenario properties and loads its suites. The
// returned scenario is never nil.
func (r *Runner) prepare(def *scenario.Definition) (*scenario.Scenario, *config.ScenarioSettings, error) {
	props, err := r.props.Merge(def.Props, r.overrides).Resolve()
	if err != nil {
		return scenario.New(def.ID, r.props.Merge(def.Props, r.overrides)), nil,
			fmt.Errorf("failed to resolve properties: %w", err)
	}
	settings, err := config.ParseScenarioSettings(props)
	if err != nil {
		return scenario.New(def.ID, props), nil, err
	}
	suites, err := scenario.LoadSuites(settings.QueriesDir)
	if err != nil {
		return scenario.New(def.ID, props), nil, fmt.Errorf("failed to load suites: %w", err)
	}
	return scenario.New(def.ID, props, suites...), settings, nil
}

// execution runs the queries of one scenario on one connection.
type execution struct {
	r *Runner

	// ctx is the run context, checked between queries. exec is never
	// cancelled and is what statements run with.
	ctx  context.Context
	exec context.Context

	log      zerolog.Logger
	sc       *scenario.Scenario
	conn     target.Conn
	mode     resultmode.Mode
	failFast string

	// abort, once set, is the reason every remaining query is skipped.
	abort string
	lost  bool
}

// run runs every query set in order, applying the fail-fast policy. A
// target that becomes unavailable aborts the rest of the scenario.
func (e *execution) run() {
	for _, suite := range e.sc.Suites {
		suite.Start = e.r.now()
		for _, set := range suite.Sets {
			e.runSet(set)
		}
		suite.End = e.r.now()
	}
}

func (e *execution) runSet(set *scenario.QuerySet) {
	e.checkInterrupted()
	if e.abort != "" {
		e.skip(set.Queries, e.abort)
		return
	}

	if cause := e.runStatements(set.Before, true); cause != nil {
		if e.lost {
			e.skip(set.Queries, e.abort)
			return
		}
		err := fmt.Errorf("before set %s failed [%w]", set.ID, cause)
		e.log.Warn().Err(cause).Str("set", set.ID).Msg("before set failed, failing query set")
		now := e.r.now()
		for _, q := range set.Queries {
			q.Start, q.End = now, now
			e.r.complete(e.log, q, scenario.Errored(err))
		}
	} else {
		e.runMain(set)
	}

	if !e.lost {
		if cause := e.runStatements(set.After, false); cause != nil && !e.lost {
			e.log.Warn().Err(cause).Str("set", set.ID).Msg("after set failed")
		}
	}
}

func (e *execution) runMain(set *scenario.QuerySet) {
	setFailed := false
	for _, q := range set.Queries {
		e.checkInterrupted()
		switch {
		case e.abort != "":
			e.r.complete(e.log, q, scenario.Skip(e.abort))
			continue
		case setFailed:
			e.r.complete(e.log, q, scenario.Skip(fmt.Sprintf("query set %s failed", set.ID)))
			continue
		}

		if err := e.runQuery(q); err != nil {
			e.targetLost(q, err)
			continue
		}
		if !q.Result().Failed() {
			continue
		}
		switch e.failFast {
		case config.FailFastQuerySet:
			setFailed = true
		case config.FailFastScenario:
			e.abort = fmt.Sprintf("query %s/%s failed", q.Suite, q.ID)
		}
	}
}

// runStatements runs before or after statements. They pass unless the
// target reports an error. With stopOnFailure the first failure ends the
// list. The first failure is returned.
func (e *execution) runStatements(stmts []*scenario.Query, stopOnFailure bool) error {
	var first error
	for _, q := range stmts {
		q.Start = e.r.now()
		actual, err := e.conn.Execute(e.exec, q.SQL)
		q.End = e.r.now()
		q.Actual = actual

		switch {
		case err != nil:
			e.r.complete(e.log, q, scenario.Errored(err))
			if errors.Is(err, target.ErrUnavailable) {
				e.targetLost(q, err)
				return err
			}
		case actual.Kind == resultset.KindError:
			err = errors.New(actual.Error.Message)
			e.r.complete(e.log, q, scenario.Errored(err))
		default:
			e.r.complete(e.log, q, scenario.Pass())
			continue
		}
		if first == nil {
			first = fmt.Errorf("%s: %w", q.ID, err)
		}
		if stopOnFailure {
			return first
		}
	}
	return first
}

// checkInterrupted stops the scenario once the run context is done.
func (e *execution) checkInterrupted() {
	if e.abort != "" || e.ctx.Err() == nil {
		return
	}
	e.sc.Err = fmt.Errorf("run interrupted: %w", context.Cause(e.ctx))
	e.abort = "run interrupted"
	e.log.Warn().Msg("run interrupted, skipping remaining queries")
}

func (e *execution) targetLost(q *scenario.Query, err error) {
	e.sc.Err = err
	e.abort = "target unavailable"
	e.lost = true
	e.log.Error().Err(err).Str("suite", q.Suite).Str("query", q.ID).Msg("target unavailable, aborting scenario")
}

func (e *execution) skip(queries []*scenario.Query, reason string) {
	for _, q := range queries {
		e.r.complete(e.log, q, scenario.Skip(reason))
	}
}

// runQuery executes q and completes it. The returned error wraps
// target.ErrUnavailable when the target is gone.
func (e *execution) runQuery(q *scenario.Query) error {
	e.r.monitor.QueryStarted(q)
	defer e.r.monitor.QueryFinished(q)

	q.Start = e.r.now()
	actual, err := e.conn.Execute(e.exec, q.SQL)
	q.End = e.r.now()
	if err != nil {
		e.r.complete(e.log, q, scenario.Errored(err))
		if errors.Is(err, target.ErrUnavailable) {
			return err
		}
		return nil
	}
	q.Actual = actual

	result, err := safeHandle(e.exec, e.mode, q)
	if err != nil {
		result = scenario.Errored(err)
	}
	e.r.complete(e.log, q, result)

	if result.Failed() {
		if filer, ok := e.mode.(resultmode.ErrorFiler); ok {
			if file, written := filer.ErrorFile(q); written {
				e.log.Debug().Str("query", q.ID).Str("file", file).Msg("failure details written")
			}
		}
	}
	return nil
}

func safeHandle(ctx context.Context, mode resultmode.Mode, q *scenario.Query) (res scenario.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return mode.HandleResult(ctx, q)
}

func (r *Runner) complete(log zerolog.Logger, q *scenario.Query, res scenario.Result) {
	if err := q.Complete(res); err != nil {
		log.Error().Err(err).Msg("query result recorded twice")
	}
}

// skipRemaining marks every query that has not completed as skipped.
func (r *Runner) skipRemaining(sc *scenario.Scenario, reason string) {
	for _, q := range sc.Queries() {
		if !q.Completed() {
			_ = q.Complete(scenario.Skip(reason))
		}
	}
}

// failAll fails every query with "<phase> failed [cause]" and records the
// cause on the scenario.
func (r *Runner) failAll(sc *scenario.Scenario, phase string, cause error) {
	err := fmt.Errorf("%s failed [%w]", phase, cause)
	sc.Err = err
	now := r.now()
	for _, q := range sc.Queries() {
		q.Start, q.End = now, now
		_ = q.Complete(scenario.Errored(err))
	}
}
