package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/resultmode"
	"github.com/roach88/whipper/internal/resultset"
	"github.com/roach88/whipper/internal/scenario"
	"github.com/roach88/whipper/internal/target"
)

func statuses(s *scenario.Scenario) map[string]scenario.Status {
	out := map[string]scenario.Status{}
	for _, q := range s.Queries() {
		out[q.ID] = q.Result().Status()
	}
	return out
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestCaptureThenCompare(t *testing.T) {
	ws := newWorkspace(t)

	f := newRunner(t, ws.props("capture", "recorder"))
	s := f.run(t, def("local", nil))
	require.True(t, s.Passed(), "capture run: %+v", s.Scenarios)
	assert.Equal(t, 4, s.Totals.Passed)

	captured := filepath.Join(ws.out, "capture", "local")
	assert.FileExists(t, filepath.Join(captured, "users", "names.expected"))

	require.NoError(t, os.CopyFS(filepath.Join(ws.root, "expected", "base"), os.DirFS(captured)))

	f = newRunner(t, ws.props("COMPARE", "recorder"))
	s = f.run(t, def("local", nil))
	assert.True(t, s.Passed(), "compare run: %+v", s.Scenarios)
	assert.Equal(t, 4, s.Totals.Executed)
}

func TestCompareUsesOverrideLayer(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeFixture(t, "base", "users", "create", resultset.Update(0))
	ws.writeFixture(t, "base", "users", "seed", resultset.Update(2))
	ws.writeFixture(t, "base", "users", "count_users",
		resultset.Table([]resultset.Column{{Label: "n", Type: ""}}, [][]any{{2}}))
	ws.writeFixture(t, "base", "users", "names",
		resultset.Table([]resultset.Column{{Label: "name", Type: "TEXT"}}, [][]any{{"ann"}, {"bob"}}))
	ws.writeFixture(t, "env", "users", "count_users",
		resultset.Table([]resultset.Column{{Label: "n", Type: ""}}, [][]any{{5}}))

	f := newRunner(t, ws.props("COMPARE", "recorder"))
	s := f.run(t, def("local", nil))

	assert.False(t, s.Passed())
	sc := f.recorder.get("local")
	require.NotNil(t, sc)
	assert.Equal(t, map[string]scenario.Status{
		"create":      scenario.StatusPass,
		"seed":        scenario.StatusPass,
		"count_users": scenario.StatusFail,
		"names":       scenario.StatusPass,
	}, statuses(sc))
	assert.FileExists(t, filepath.Join(ws.out, "local", "errors_for_COMPARE", "users_count_users_failures.txt"))
}

func TestFailFastPolicies(t *testing.T) {
	tests := []struct {
		policy string
		want   map[string]scenario.Status
	}{
		{
			policy: config.FailFastOff,
			want: map[string]scenario.Status{
				"create": scenario.StatusFail, "seed": scenario.StatusFail,
				"count_users": scenario.StatusFail, "names": scenario.StatusFail,
			},
		},
		{
			policy: config.FailFastQuerySet,
			want: map[string]scenario.Status{
				"create": scenario.StatusFail, "seed": scenario.StatusSkip,
				"count_users": scenario.StatusFail, "names": scenario.StatusFail,
			},
		},
		{
			policy: config.FailFastScenario,
			want: map[string]scenario.Status{
				"create": scenario.StatusFail, "seed": scenario.StatusSkip,
				"count_users": scenario.StatusSkip, "names": scenario.StatusSkip,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			ws := newWorkspace(t)
			// no fixtures exist, so every compared query fails
			f := newRunner(t, ws.props("COMPARE", "recorder"))
			f.run(t, def("local", config.Properties{config.KeyFailFast: tt.policy}))

			sc := f.recorder.get("local")
			require.NotNil(t, sc)
			assert.Equal(t, tt.want, statuses(sc))
			assert.NoError(t, sc.Err)
		})
	}
}

func TestSkippedQueriesAreNotExecuted(t *testing.T) {
	ws := newWorkspace(t)
	f := newRunner(t, ws.props("COMPARE", "recorder"))
	f.run(t, def("local", config.Properties{config.KeyFailFast: config.FailFastScenario}))

	sc := f.recorder.get("local")
	c := sc.Counts()
	assert.Equal(t, 1, c.Executed)
	assert.Equal(t, 3, c.Skipped)
	assert.Equal(t, "query users/create failed", sc.Queries()[1].Result().Reason())
}

func TestConnectFailureFailsEveryQuery(t *testing.T) {
	ws := newWorkspace(t)
	f := newRunner(t, ws.props("NONE", "recorder"))
	s := f.run(t, def("broken", config.Properties{config.KeyConnectionStrategy: "oracle"}))

	sc := f.recorder.get("broken")
	require.NotNil(t, sc)
	require.Error(t, sc.Err)
	assert.ErrorIs(t, sc.Err, target.ErrUnknownStrategy)
	for _, q := range sc.Queries() {
		assert.True(t, q.Result().Failed())
		assert.Contains(t, q.Result().Reason(), "connect failed [")
	}
	assert.Equal(t, 4, s.Totals.Failed)
}

func TestPingFailureFailsEveryQuery(t *testing.T) {
	ws := newWorkspace(t)
	f := newRunner(t, ws.props("NONE", "recorder"))
	f.run(t, def("local", config.Properties{config.KeyPingQuery: "SELECT * FROM missing"}))

	sc := f.recorder.get("local")
	require.Error(t, sc.Err)
	assert.Contains(t, sc.Err.Error(), "ping failed [ping query failed:")
	assert.Equal(t, 4, sc.Counts().Failed)
}

func TestModeInitFailureSkipsScenario(t *testing.T) {
	ws := newWorkspace(t)
	props := ws.props("COMPARE", "recorder")
	delete(props, config.KeyExpectedResultsDirs)

	f := newRunner(t, props)
	s := f.run(t, def("local", nil))

	sc := f.recorder.get("local")
	require.Error(t, sc.Err)
	assert.Equal(t, 4, sc.Counts().Skipped)
	assert.False(t, s.Passed())
}

func TestInvalidScenarioIsStillReported(t *testing.T) {
	ws := newWorkspace(t)
	props := ws.props("NONE", "recorder")
	delete(props, config.KeyConnectionURL)

	f := newRunner(t, props)
	s := f.run(t, def("nourl", nil), def("loop", config.Properties{config.KeyConnectionURL: "${a}", "a": "${a}"}))

	require.Len(t, s.Scenarios, 2)
	for _, id := range []string{"nourl", "loop"} {
		sc := f.recorder.get(id)
		require.NotNil(t, sc, id)
		assert.Error(t, sc.Err, id)
		assert.Empty(t, sc.Suites, id)
	}
	assert.ErrorIs(t, f.recorder.get("loop").Err, config.ErrRecursivePlaceholder)
	assert.Equal(t, []string{"nourl", "loop"}, s.FailedScenarios())
}

func TestPlaceholdersInScenarioProperties(t *testing.T) {
	ws := newWorkspace(t)
	props := ws.props("NONE", "recorder")
	props[config.KeyConnectionURL] = "${db.url}"

	f := newRunner(t, props)
	s := f.run(t, def("local", config.Properties{"db.url": ":memory:"}))
	assert.True(t, s.Passed())
}

func TestOverridesWinOverScenarioFiles(t *testing.T) {
	ws := newWorkspace(t)
	f := newRunner(t, ws.props("NONE", "recorder"), func(o *Options) {
		o.Overrides = config.Properties{config.KeyConnectionStrategy: target.StrategySQLite}
	})
	s := f.run(t, def("local", config.Properties{config.KeyConnectionStrategy: "oracle"}))
	assert.True(t, s.Passed())
}

func TestTargetUnavailableAbortsScenario(t *testing.T) {
	ws := newWorkspace(t)
	conn := &scriptedConn{answers: map[string]*resultset.Set{
		"SELECT count(*) AS n FROM users": nil,
	}}
	props := ws.props("NONE", "recorder")
	props[config.KeyConnectionStrategy] = "scripted"
	props[config.KeyAfterQuery] = "DROP TABLE users"

	f := newRunner(t, props, func(o *Options) { o.Targets = scriptedTargets(t, conn) })
	f.run(t, def("local", nil))

	sc := f.recorder.get("local")
	assert.ErrorIs(t, sc.Err, target.ErrUnavailable)
	assert.Equal(t, map[string]scenario.Status{
		"create":      scenario.StatusPass,
		"seed":        scenario.StatusPass,
		"count_users": scenario.StatusFail,
		"names":       scenario.StatusSkip,
	}, statuses(sc))
	assert.Equal(t, "target unavailable", sc.Queries()[3].Result().Reason())
	assert.NotContains(t, conn.executed, "DROP TABLE users", "after query is not run on a lost target")
	assert.True(t, conn.closed)
}

func TestAfterQueryRuns(t *testing.T) {
	ws := newWorkspace(t)
	conn := &scriptedConn{}
	props := ws.props("NONE", "recorder")
	props[config.KeyConnectionStrategy] = "scripted"
	props[config.KeyAfterQuery] = "DROP TABLE users"

	f := newRunner(t, props, func(o *Options) { o.Targets = scriptedTargets(t, conn) })
	f.run(t, def("local", nil))

	require.NotEmpty(t, conn.executed)
	assert.Equal(t, "DROP TABLE users", conn.executed[len(conn.executed)-1])
}

func TestConcurrentWorkers(t *testing.T) {
	ws := newWorkspace(t)
	props := ws.props("CAPTURE", "recorder")
	props[config.KeyWorkers] = "3"

	var defs []*scenario.Definition
	for i := 0; i < 6; i++ {
		defs = append(defs, def(fmt.Sprintf("s%d", i), nil))
	}

	f := newRunner(t, props)
	s := f.run(t, defs...)

	require.Len(t, s.Scenarios, 6)
	for i, sc := range s.Scenarios {
		assert.Equal(t, fmt.Sprintf("s%d", i), sc.ID, "summary keeps definition order")
		assert.True(t, sc.Passed)
		assert.FileExists(t, filepath.Join(ws.out, "capture", sc.ID, "users", "seed.expected"))
	}
	assert.Len(t, f.recorder.scenarios, 6)
	assert.Equal(t, 1, f.recorder.destroys)
	assert.Equal(t, 24, s.Totals.Passed)
}

func TestMonitorHooks(t *testing.T) {
	ws := newWorkspace(t)
	f := newRunner(t, ws.props("NONE", "recorder"))
	f.run(t, def("a", nil), def("b", nil))

	assert.Equal(t, 1, f.monitor.count("run-started"))
	assert.Equal(t, 1, f.monitor.count("run-finished"))
	assert.Equal(t, 2, f.monitor.count("scenario-started"))
	assert.Equal(t, 2, f.monitor.count("scenario-finished"))
	assert.Equal(t, 8, f.monitor.count("query-started"))
	assert.Equal(t, 8, f.monitor.count("query-finished"))

	assert.Contains(t, f.logs.String(), `"message":"scenario finished"`)
	assert.Contains(t, f.logs.String(), `"message":"run finished"`)
}

func TestRunArtifacts(t *testing.T) {
	ws := newWorkspace(t)
	f := newRunner(t, ws.props("NONE", "summary,recorder,bogus"))
	s := f.run(t, def("local", nil))

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, []string{"summary", "recorder"}, s.Writers)
	assert.Equal(t, []string{"bogus"}, s.ExcludedWriters)

	assert.FileExists(t, filepath.Join(ws.out, "Summary_local.txt"))
	dumped, err := config.LoadFile(filepath.Join(ws.out, PropertiesDumpFile))
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dumped[config.KeyConnectionURL])

	read, err := ReadSummary(ws.out)
	require.NoError(t, err)
	assert.Equal(t, s.Totals, read.Totals)
	sum, ok := read.Scenario("local")
	require.True(t, ok)
	require.Len(t, sum.Suites, 1)
	assert.Equal(t, []string{"setup", "count_users", "names"}, []string{
		sum.Suites[0].Sets[0].ID, sum.Suites[0].Sets[1].ID, sum.Suites[0].Sets[2].ID,
	})
	assert.Equal(t, 2, sum.Suites[0].Sets[0].Counts.Passed)
}

func TestCancelledRun(t *testing.T) {
	ws := newWorkspace(t)
	f := newRunner(t, ws.props("NONE", "recorder"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := f.runner.Run(ctx, []*scenario.Definition{def("a", nil)})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, s)
	assert.Empty(t, s.Scenarios)
	assert.Equal(t, 1, f.recorder.destroys)
}

func TestInterruptedRunFinishesScenario(t *testing.T) {
	ws := newWorkspace(t)
	conn := &scriptedConn{}
	props := ws.props("NONE", "recorder,summary")
	props[config.KeyConnectionStrategy] = "scripted"
	props[config.KeyAfterQuery] = "DROP TABLE users"

	f := newRunner(t, props, func(o *Options) { o.Targets = scriptedTargets(t, conn) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.monitor.onFinish = func(*scenario.Query) { cancel() }

	s, err := f.runner.Run(ctx, []*scenario.Definition{def("local", nil)})
	require.NoError(t, err, "every scenario had started")
	require.Len(t, s.Scenarios, 1)
	assert.False(t, s.Scenarios[0].Passed)

	sc := f.recorder.get("local")
	require.NotNil(t, sc, "interrupted scenario is still reported")
	assert.ErrorIs(t, sc.Err, context.Canceled)
	assert.NotErrorIs(t, sc.Err, target.ErrUnavailable)
	assert.Equal(t, map[string]scenario.Status{
		"create":      scenario.StatusPass,
		"seed":        scenario.StatusSkip,
		"count_users": scenario.StatusSkip,
		"names":       scenario.StatusSkip,
	}, statuses(sc))
	for _, q := range sc.Queries()[1:] {
		assert.Equal(t, "run interrupted", q.Result().Reason(), q.ID)
	}

	assert.Equal(t, []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"DROP TABLE users",
	}, conn.executed, "after query still runs")
	assert.Zero(t, conn.cancelled, "statements never see the cancelled context")
	assert.True(t, conn.closed)
	assert.Equal(t, []error{nil}, f.recorder.ctxErrs, "writers get a live context")
	assert.FileExists(t, filepath.Join(ws.out, "Summary_local.txt"))
}

type panicMode struct{}

func (*panicMode) Init(config.Properties) error { return nil }

func (*panicMode) HandleResult(context.Context, *scenario.Query) (scenario.Result, error) {
	panic("fixture decoder exploded")
}

func (*panicMode) Destroy()     {}
func (*panicMode) Name() string { return "PANIC" }

func TestPanickingModeFailsQueries(t *testing.T) {
	ws := newWorkspace(t)
	modes := resultmode.Default()
	require.NoError(t, modes.Register("PANIC", func() resultmode.Mode { return &panicMode{} }))

	f := newRunner(t, ws.props("panic", "recorder"), func(o *Options) { o.Modes = modes })
	s := f.run(t, def("local", nil))

	assert.False(t, s.Passed())
	assert.Equal(t, 4, s.Totals.Failed)

	sc := f.recorder.get("local")
	require.NotNil(t, sc)
	for _, q := range sc.Queries() {
		assert.True(t, q.Result().Failed(), q.ID)
		assert.Contains(t, q.Result().Reason(), "panic: fixture decoder exploded", q.ID)
	}
	assert.Equal(t, 1, f.recorder.destroys)
}

func TestBinaryColumnCaptureThenCompare(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeSuite(t, "blobs", `queries:
  - id: blob
    sql: SELECT x'00ff10' AS b
`)

	f := newRunner(t, ws.props("CAPTURE", "recorder"))
	s := f.run(t, def("local", nil))
	require.True(t, s.Passed(), "capture run: %+v", s.Scenarios)

	captured := filepath.Join(ws.out, "capture", "local")
	doc, err := os.ReadFile(filepath.Join(captured, "blobs", "blob.expected"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), resultset.BinaryPrefix+"AP8Q")

	require.NoError(t, os.CopyFS(filepath.Join(ws.root, "expected", "base"), os.DirFS(captured)))

	f = newRunner(t, ws.props("COMPARE", "recorder"))
	s = f.run(t, def("local", nil))
	assert.True(t, s.Passed(), "compare run: %+v", s.Scenarios)
	assert.Equal(t, 5, s.Totals.Passed)
}

const ordersSuite = `queries:
  - id: orders
    before:
      - id: create
        sql: CREATE TABLE orders (id INTEGER)
      - id: fill
        sql: %s
    after:
      - id: drop
        sql: DROP TABLE orders
    queries:
      - id: insert_order
        sql: INSERT INTO orders VALUES (2)
      - id: read_order
        sql: SELECT id FROM orders ORDER BY id
  - id: check_dropped
    sql: SELECT count(*) AS n FROM sqlite_master WHERE name = 'orders'
`

func query(t *testing.T, sc *scenario.Scenario, suite, id string) *scenario.Query {
	t.Helper()
	for _, q := range sc.Queries() {
		if q.Suite == suite && q.ID == id {
			return q
		}
	}
	require.Failf(t, "query not found", "%s/%s", suite, id)
	return nil
}

func TestBeforeAndAfterSets(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeSuite(t, "orders", fmt.Sprintf(ordersSuite, "INSERT INTO orders VALUES (1)"))

	f := newRunner(t, ws.props("NONE", "recorder"))
	s := f.run(t, def("local", nil))
	require.True(t, s.Passed(), "%+v", s.Scenarios)
	assert.Equal(t, 7, s.Totals.Passed, "before and after statements are not counted")

	sc := f.recorder.get("local")
	read := query(t, sc, "orders", "read_order")
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}}, read.Actual.Rows, "before ran first")
	dropped := query(t, sc, "orders", "check_dropped")
	assert.Equal(t, [][]any{{int64(0)}}, dropped.Actual.Rows, "after ran before the next set")
}

func TestBeforeSetFailureFailsQuerySet(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeSuite(t, "orders", fmt.Sprintf(ordersSuite, "INSERT INTO missing VALUES (1)"))

	f := newRunner(t, ws.props("NONE", "recorder"))
	s := f.run(t, def("local", nil))
	assert.False(t, s.Passed())

	sc := f.recorder.get("local")
	require.NotNil(t, sc)
	assert.NoError(t, sc.Err)
	for _, id := range []string{"insert_order", "read_order"} {
		q := query(t, sc, "orders", id)
		assert.True(t, q.Result().Failed(), id)
		assert.Contains(t, q.Result().Reason(), "before set orders failed [fill: ", id)
		assert.Contains(t, q.Result().Reason(), "no such table: missing", id)
		assert.Nil(t, q.Actual, "%s is not executed", id)
	}

	dropped := query(t, sc, "orders", "check_dropped")
	assert.True(t, dropped.Result().Passed())
	assert.Equal(t, [][]any{{int64(0)}}, dropped.Actual.Rows, "after set still runs")
	assert.True(t, query(t, sc, "users", "names").Result().Passed(), "other suites are unaffected")
	assert.Equal(t, 5, f.monitor.count("query-finished"), "queries failed by the before set are not run")
}

func TestQueriesRunInDeclarationOrder(t *testing.T) {
	ws := newWorkspace(t)
	ws.writeSuite(t, "audit", `queries:
  - id: events
    before:
      - id: open
        sql: SELECT 'open'
    after:
      - id: close
        sql: SELECT 'close'
    queries:
      - id: first_event
        sql: SELECT 1
      - id: last_event
        sql: SELECT 2
  - id: totals
    sql: SELECT 3
`)
	conn := &scriptedConn{}
	props := ws.props("NONE", "recorder")
	props[config.KeyConnectionStrategy] = "scripted"

	f := newRunner(t, props, func(o *Options) { o.Targets = scriptedTargets(t, conn) })
	f.run(t, def("local", nil))

	assert.Equal(t, []string{
		"SELECT 'open'",
		"SELECT 1",
		"SELECT 2",
		"SELECT 'close'",
		"SELECT 3",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO users (id, name) VALUES (1, 'ann'), (2, 'bob')",
		"SELECT count(*) AS n FROM users",
		"SELECT name FROM users ORDER BY id",
	}, conn.executed)

	want := []string{
		"audit/first_event",
		"audit/last_event",
		"audit/totals",
		"users/create",
		"users/seed",
		"users/count_users",
		"users/names",
	}
	assert.Equal(t, want, f.monitor.order())

	sc := f.recorder.get("local")
	require.NotNil(t, sc)
	var got []string
	for _, q := range sc.Queries() {
		got = append(got, q.Suite+"/"+q.ID)
	}
	assert.Equal(t, want, got)
}
