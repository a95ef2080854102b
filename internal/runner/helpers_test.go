package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/resultset"
	"github.com/roach88/whipper/internal/scenario"
	"github.com/roach88/whipper/internal/target"
	"github.com/roach88/whipper/internal/testutil"
	"github.com/roach88/whipper/internal/writer"
)

const usersSuite = `queries:
  - id: setup
    queries:
      - id: create
        sql: CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)
      - id: seed
        sql: INSERT INTO users (id, name) VALUES (1, 'ann'), (2, 'bob')
  - id: count_users
    sql: SELECT count(*) AS n FROM users
  - id: names
    sql: SELECT name FROM users ORDER BY id
`

// workspace is a query set tree on disk: suites under queries/, fixture
// layers under expected/ and reports under out/.
type workspace struct {
	root string
	out  string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	w := &workspace{root: t.TempDir()}
	w.out = filepath.Join(w.root, "out")
	w.writeSuite(t, "users", usersSuite)
	return w
}

func (w *workspace) writeSuite(t *testing.T, name, content string) {
	t.Helper()
	dir := filepath.Join(w.root, config.DefaultQueriesSubdir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
}

func (w *workspace) writeFixture(t *testing.T, layer, suite, query string, s *resultset.Set) {
	t.Helper()
	doc, err := resultset.Encode(s)
	require.NoError(t, err)
	dir := filepath.Join(w.root, "expected", layer, suite)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, query+scenario.FixtureExt), doc, 0o644))
}

// props are run properties for a sqlite in-memory target.
func (w *workspace) props(mode string, writers string) config.Properties {
	return config.Properties{
		config.KeyScenarioPath:        w.root,
		config.KeyArtifactsDir:        w.root,
		config.KeyOutputDir:           w.out,
		config.KeyResultMode:          mode,
		config.KeyResultWriters:       writers,
		config.KeyExpectedResultsDirs: "expected/base,expected/env",
		config.KeyConnectionStrategy:  target.StrategySQLite,
		config.KeyConnectionURL:       ":memory:",
	}
}

func def(id string, props config.Properties) *scenario.Definition {
	return &scenario.Definition{ID: id, Props: props}
}

type testRun struct {
	runner   *Runner
	recorder *recordingWriter
	monitor  *recordingMonitor
	logs     *bytes.Buffer
}

func newRunner(t *testing.T, props config.Properties, mutate ...func(*Options)) *testRun {
	t.Helper()
	settings, err := config.ParseSettings(props)
	require.NoError(t, err)

	rec := &recordingWriter{}
	writers := writer.Default()
	require.NoError(t, writers.Register("recorder", func(writer.Env) writer.Writer { return rec }))

	var logs bytes.Buffer
	mon := &recordingMonitor{}
	clock := testutil.NewDeterministicClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), 10*time.Millisecond)
	opts := Options{
		Props:    props,
		Settings: settings,
		Writers:  writers,
		Log:      zerolog.New(&logs),
		Stdout:   &bytes.Buffer{},
		Now:      clock.Now,
		IDs:      testutil.NewFixedRunID("run-1"),
		Monitors: []Monitor{mon},
	}
	for _, m := range mutate {
		m(&opts)
	}
	r, err := New(opts)
	require.NoError(t, err)
	return &testRun{runner: r, recorder: rec, monitor: mon, logs: &logs}
}

func (f *testRun) run(t *testing.T, defs ...*scenario.Definition) *Summary {
	t.Helper()
	s, err := f.runner.Run(context.Background(), defs)
	require.NoError(t, err)
	return s
}

// recordingWriter keeps every scenario it is given.
type recordingWriter struct {
	mu        sync.Mutex
	scenarios []*scenario.Scenario
	destroys  int
	ctxErrs   []error
}

func (w *recordingWriter) Name() string                { return "recorder" }
func (w *recordingWriter) Init(config.Properties) bool { return true }

func (w *recordingWriter) WriteScenario(ctx context.Context, s *scenario.Scenario) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scenarios = append(w.scenarios, s)
	w.ctxErrs = append(w.ctxErrs, ctx.Err())
	return nil
}

func (w *recordingWriter) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroys++
}

func (w *recordingWriter) get(id string) *scenario.Scenario {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.scenarios {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// recordingMonitor counts hook calls and keeps finished queries in order.
// onFinish, when set, is called after each finished query.
type recordingMonitor struct {
	mu       sync.Mutex
	events   map[string]int
	finished []string
	onFinish func(*scenario.Query)
}

func (m *recordingMonitor) inc(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		m.events = map[string]int{}
	}
	m.events[name]++
}

func (m *recordingMonitor) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[name]
}

func (m *recordingMonitor) RunStarted(string, []string)         { m.inc("run-started") }
func (m *recordingMonitor) RunFinished(*Summary)                { m.inc("run-finished") }
func (m *recordingMonitor) ScenarioStarted(*scenario.Scenario)  { m.inc("scenario-started") }
func (m *recordingMonitor) ScenarioFinished(*scenario.Scenario) { m.inc("scenario-finished") }
func (m *recordingMonitor) QueryStarted(*scenario.Query)        { m.inc("query-started") }

func (m *recordingMonitor) QueryFinished(q *scenario.Query) {
	m.inc("query-finished")
	m.mu.Lock()
	m.finished = append(m.finished, q.Suite+"/"+q.ID)
	hook := m.onFinish
	m.mu.Unlock()
	if hook != nil {
		hook(q)
	}
}

func (m *recordingMonitor) order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.finished)
}

// scriptedConn answers queries from a script; a nil entry means the target
// went away. cancelled counts statements that arrived with a done context.
type scriptedConn struct {
	mu        sync.Mutex
	answers   map[string]*resultset.Set
	executed  []string
	cancelled int
	closed    bool
}

func (c *scriptedConn) Execute(ctx context.Context, sql string) (*resultset.Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executed = append(c.executed, sql)
	if ctx.Err() != nil {
		c.cancelled++
	}
	res, ok := c.answers[sql]
	if !ok {
		return resultset.None(), nil
	}
	if res == nil {
		return nil, target.ErrUnavailable
	}
	return res, nil
}

func (c *scriptedConn) Ping(context.Context, string) error { return nil }

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func scriptedTargets(t *testing.T, conn *scriptedConn) *target.Registry {
	t.Helper()
	reg := target.NewRegistry()
	require.NoError(t, reg.Register("scripted", func(context.Context, string) (target.Conn, error) {
		return conn, nil
	}))
	return reg
}
