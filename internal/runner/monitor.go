package runner

import (
	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/scenario"
)

// Monitor observes the progress of a run. With several workers the hooks
// are called concurrently, so implementations must be safe for concurrent
// use.
type Monitor interface {
	RunStarted(runID string, scenarios []string)
	RunFinished(s *Summary)
	ScenarioStarted(sc *scenario.Scenario)
	ScenarioFinished(sc *scenario.Scenario)
	QueryStarted(q *scenario.Query)
	QueryFinished(q *scenario.Query)
}

// monitors fans hooks out to several monitors.
type monitors []Monitor

func (m monitors) RunStarted(runID string, scenarios []string) {
	for _, mon := range m {
		mon.RunStarted(runID, scenarios)
	}
}

func (m monitors) RunFinished(s *Summary) {
	for _, mon := range m {
		mon.RunFinished(s)
	}
}

func (m monitors) ScenarioStarted(sc *scenario.Scenario) {
	for _, mon := range m {
		mon.ScenarioStarted(sc)
	}
}

func (m monitors) ScenarioFinished(sc *scenario.Scenario) {
	for _, mon := range m {
		mon.ScenarioFinished(sc)
	}
}

func (m monitors) QueryStarted(q *scenario.Query) {
	for _, mon := range m {
		mon.QueryStarted(q)
	}
}

func (m monitors) QueryFinished(q *scenario.Query) {
	for _, mon := range m {
		mon.QueryFinished(q)
	}
}

// LogMonitor reports progress to a logger: run and scenario events at info,
// queries at debug.
type LogMonitor struct {
	Log zerolog.Logger
}

func (m LogMonitor) RunStarted(runID string, scenarios []string) {
	m.Log.Info().Str("run", runID).Strs("scenarios", scenarios).Msg("starting run")
}

func (m LogMonitor) RunFinished(s *Summary) {
	m.Log.Info().
		Str("run", s.RunID).
		Int("passed", s.Totals.Passed).
		Int("failed", s.Totals.Failed).
		Int("skipped", s.Totals.Skipped).
		Int("all", s.Totals.All).
		Msg("run finished")
}

func (m LogMonitor) ScenarioStarted(sc *scenario.Scenario) {
	m.Log.Info().Str("scenario", sc.ID).Int("suites", len(sc.Suites)).Msg("starting scenario")
}

func (m LogMonitor) ScenarioFinished(sc *scenario.Scenario) {
	c := sc.Counts()
	ev := m.Log.Info()
	if sc.Err != nil {
		ev = m.Log.Warn().Err(sc.Err)
	}
	ev.Str("scenario", sc.ID).
		Bool("passed", sc.Passed()).
		Int("failed", c.Failed).
		Int("all", c.All).
		Dur("elapsed", sc.Duration()).
		Msg("scenario finished")
}

func (m LogMonitor) QueryStarted(q *scenario.Query) {
	m.Log.Debug().Str("scenario", q.Scenario).Str("suite", q.Suite).Str("query", q.ID).Msg("running query")
}

func (m LogMonitor) QueryFinished(q *scenario.Query) {
	r := q.Result()
	ev := m.Log.Debug()
	if r.Failed() {
		ev = ev.Str("reason", r.Reason())
	}
	ev.Str("scenario", q.Scenario).
		Str("suite", q.Suite).
		Str("query", q.ID).
		Str("status", string(r.Status())).
		Dur("elapsed", q.Duration()).
		Msg("query finished")
}
