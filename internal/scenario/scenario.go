package scenario

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/resultset"
)

// ErrAlreadyCompleted is returned when a query is completed twice.
var ErrAlreadyCompleted = errors.New("query already completed")

// FixtureExt is the extension of expected result fixtures.
const FixtureExt = ".expected"

// Query is one SQL statement and, once run, its outcome.
type Query struct {
	ID       string
	SQL      string
	Scenario string
	Suite    string
	Set      string

	// Actual is what the target returned. Nil until executed.
	Actual *resultset.Set

	Start time.Time
	End   time.Time

	result    Result
	completed bool
}

// FixtureName is the file name of the query's fixture within its suite
// directory.
func (q *Query) FixtureName() string {
	return q.ID + FixtureExt
}

// Complete records the query's result. A query completes exactly once.
func (q *Query) Complete(r Result) error {
	if q.completed {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyCompleted, q.Suite, q.ID)
	}
	q.result = r
	q.completed = true
	return nil
}

// Completed reports whether Complete has been called.
func (q *Query) Completed() bool { return q.completed }

// Result returns the recorded result, or the zero Result before Complete.
func (q *Query) Result() Result { return q.result }

// Executed reports whether the query ran, as opposed to being skipped.
func (q *Query) Executed() bool {
	return q.completed && !q.result.Skipped()
}

// Duration is End minus Start, or zero when the query never ran.
func (q *Query) Duration() time.Duration {
	if q.Start.IsZero() || q.End.IsZero() {
		return 0
	}
	return q.End.Sub(q.Start)
}

// QuerySet is an ordered group of queries.
//
// Before and After hold setup and cleanup statements run around the set.
// They are not compared and do not count towards the set's results.
type QuerySet struct {
	ID      string
	Queries []*Query

	Before []*Query
	After  []*Query
}

// Counts returns the set's aggregate counters.
func (s *QuerySet) Counts() Counts {
	return count(s.Queries)
}

// Suite is the content of one suite file.
type Suite struct {
	ID   string
	Sets []*QuerySet

	Start time.Time
	End   time.Time
}

// Queries returns the suite's queries in declaration order.
func (s *Suite) Queries() []*Query {
	var out []*Query
	for _, set := range s.Sets {
		out = append(out, set.Queries...)
	}
	return out
}

// Counts returns the suite's aggregate counters.
func (s *Suite) Counts() Counts {
	return count(s.Queries())
}

// Duration is End minus Start, or zero when the suite never ran.
func (s *Suite) Duration() time.Duration {
	if s.Start.IsZero() || s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Scenario is a run of suites against one target.
type Scenario struct {
	ID     string
	Props  config.Properties
	Suites []*Suite

	Start time.Time
	End   time.Time

	// Err records why the scenario could not run to completion: result mode
	// setup, target connection or a lost target.
	Err error
}

// New builds a scenario. Suites are sorted by ID and every query is stamped
// with the scenario ID.
func New(id string, props config.Properties, suites ...*Suite) *Scenario {
	suites = slices.Clone(suites)
	slices.SortStableFunc(suites, func(a, b *Suite) int {
		return strings.Compare(a.ID, b.ID)
	})
	s := &Scenario{ID: id, Props: props, Suites: suites}
	for _, suite := range suites {
		for _, set := range suite.Sets {
			for _, group := range [][]*Query{set.Before, set.Queries, set.After} {
				for _, q := range group {
					q.Scenario = id
				}
			}
		}
	}
	return s
}

// Queries returns every query of every suite in run order.
func (s *Scenario) Queries() []*Query {
	var out []*Query
	for _, suite := range s.Suites {
		out = append(out, suite.Queries()...)
	}
	return out
}

// Counts returns the scenario's aggregate counters.
func (s *Scenario) Counts() Counts {
	return count(s.Queries())
}

// Passed reports whether the scenario ran to completion and every query
// passed.
func (s *Scenario) Passed() bool {
	if s.Err != nil {
		return false
	}
	for _, q := range s.Queries() {
		if !q.Result().Passed() {
			return false
		}
	}
	return true
}

// FailedQueries returns the queries that failed, in run order.
func (s *Scenario) FailedQueries() []*Query {
	var out []*Query
	for _, q := range s.Queries() {
		if q.Result().Failed() {
			out = append(out, q)
		}
	}
	return out
}

// Duration is End minus Start, or zero when the scenario never ran.
func (s *Scenario) Duration() time.Duration {
	if s.Start.IsZero() || s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Counts aggregates query outcomes.
type Counts struct {
	All      int `json:"all"`
	Executed int `json:"executed"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Add returns the field-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		All:      c.All + o.All,
		Executed: c.Executed + o.Executed,
		Passed:   c.Passed + o.Passed,
		Failed:   c.Failed + o.Failed,
		Skipped:  c.Skipped + o.Skipped,
	}
}

func count(queries []*Query) Counts {
	c := Counts{All: len(queries)}
	for _, q := range queries {
		r := q.Result()
		switch {
		case r.Passed():
			c.Passed++
		case r.Failed():
			c.Failed++
		case r.Skipped():
			c.Skipped++
		}
		if q.Executed() {
			c.Executed++
		}
	}
	return c
}
