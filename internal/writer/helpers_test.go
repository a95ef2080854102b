package writer

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/resultset"
	"github.com/roach88/whipper/internal/scenario"
	"github.com/roach88/whipper/internal/testutil"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func ran(q *scenario.Query, startMS, endMS int, r scenario.Result) {
	q.Start, q.End = at(startMS), at(endMS)
	_ = q.Complete(r)
}

// smokeScenario is a finished scenario with a pass, a failure, an error and
// a skipped query across two suites.
func smokeScenario() *scenario.Scenario {
	countUsers := &scenario.Query{ID: "count_users", SQL: "SELECT count(*) FROM users", Suite: "accounts", Set: "count_users",
		Actual: resultset.Table([]resultset.Column{{Label: "count(*)", Type: "INTEGER"}}, [][]any{{3}})}
	insertOrder := &scenario.Query{ID: "insert_order", SQL: "INSERT INTO orders VALUES (1)", Suite: "accounts", Set: "orders",
		Actual: resultset.Update(0)}
	readOrder := &scenario.Query{ID: "read_order", SQL: "SELECT * FROM orders", Suite: "accounts", Set: "orders"}
	totals := &scenario.Query{ID: "totals", SQL: "SELECT sum(amount) FROM invoices", Suite: "billing", Set: "totals",
		Actual: resultset.Table([]resultset.Column{{Label: "sum(amount)", Type: "REAL"}}, [][]any{{12.5}})}

	accounts := &scenario.Suite{ID: "accounts", Start: at(100), End: at(1100), Sets: []*scenario.QuerySet{
		{ID: "count_users", Queries: []*scenario.Query{countUsers}},
		{ID: "orders", Queries: []*scenario.Query{insertOrder, readOrder}},
	}}
	billing := &scenario.Suite{ID: "billing", Start: at(1200), End: at(2400), Sets: []*scenario.QuerySet{
		{ID: "totals", Queries: []*scenario.Query{totals}},
	}}

	s := scenario.New("smoke", nil, billing, accounts)
	s.Start, s.End = at(0), at(2500)

	ran(countUsers, 100, 350, scenario.Pass())
	ran(insertOrder, 400, 450, scenario.Fail("Expected and actual update count are different. Expected: [1], actual: [0]."))
	_ = readOrder.Complete(scenario.Skip("query set failed"))
	ran(totals, 1200, 2400, scenario.Errored(errors.New("read fixture: permission denied")))
	return s
}

// cleanScenario is a finished scenario where every query passed.
func cleanScenario(id string) *scenario.Scenario {
	q := &scenario.Query{ID: "ping", SQL: "SELECT 1", Suite: "health", Set: "ping",
		Actual: resultset.Table([]resultset.Column{{Label: "1", Type: "INTEGER"}}, [][]any{{1}})}
	suite := &scenario.Suite{ID: "health", Start: at(0), End: at(10), Sets: []*scenario.QuerySet{
		{ID: "ping", Queries: []*scenario.Query{q}},
	}}
	s := scenario.New(id, nil, suite)
	s.Start, s.End = at(0), at(10)
	ran(q, 0, 10, scenario.Pass())
	return s
}

func testEnv() Env {
	clock := testutil.NewDeterministicClock(at(3000), time.Second)
	return Env{
		Log:   zerolog.Nop(),
		Now:   clock.Now,
		RunID: testutil.NewFixedRunID("01HTESTRUN0000000000000000").Generate(),
	}
}
