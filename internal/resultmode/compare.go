package resultmode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/fixture"
	"github.com/roach88/whipper/internal/resultset"
	"github.com/roach88/whipper/internal/scenario"
)

// compareMode matches each actual result with the fixture found in the
// highest priority expected results layer.
type compareMode struct {
	outputDir  string
	divergence float64
	fixtures   *fixture.Resolver

	// written holds the detail files written since Init.
	written map[string]bool
}

func (m *compareMode) Init(props config.Properties) error {
	out := props.Get(config.KeyOutputDir)
	if out == "" {
		return fmt.Errorf("%s: %s is not set", NameCompare, config.KeyOutputDir)
	}
	dirs := config.ExpectedDirs(props)
	if len(dirs) == 0 {
		return fmt.Errorf("%s: %s is not set", NameCompare, config.KeyExpectedResultsDirs)
	}
	div, err := props.Float(config.KeyAllowedDivergence, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", NameCompare, err)
	}
	if div < 0 {
		return fmt.Errorf("%s: %s must not be negative", NameCompare, config.KeyAllowedDivergence)
	}

	m.outputDir = out
	m.divergence = div
	m.fixtures = fixture.New(dirs...)
	m.written = map[string]bool{}
	return nil
}

func (m *compareMode) HandleResult(_ context.Context, q *scenario.Query) (scenario.Result, error) {
	if m.fixtures == nil {
		return scenario.Result{}, fmt.Errorf("%s: not initialized", NameCompare)
	}

	path, ok := m.fixtures.Sub(q.Suite).Resolve(q.FixtureName())
	if !ok {
		return scenario.Fail(fmt.Sprintf("expected result fixture %s/%s not found in %s",
			q.Suite, q.FixtureName(), strings.Join(m.fixtures.Dirs(), ", "))), nil
	}
	if q.Actual == nil {
		return scenario.Fail("no query result available"), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return scenario.Result{}, fmt.Errorf("read fixture: %w", err)
	}
	expected, err := resultset.Decode(data)
	if err != nil {
		return scenario.Result{}, fmt.Errorf("fixture %s: %w", path, err)
	}

	reasons := resultset.Compare(expected, q.Actual, resultset.Options{
		Sortable:   !resultset.OrderSensitive(q.SQL),
		Divergence: m.divergence,
	})
	if len(reasons) == 0 {
		return scenario.Pass(), nil
	}

	diff, err := resultset.Diff(expected, q.Actual)
	if err != nil {
		return scenario.Result{}, err
	}
	if err := m.writeErrorFiles(q, path, expected, reasons, diff); err != nil {
		reasons = append(reasons, fmt.Sprintf("cannot write error files: %v", err))
	}
	return scenario.Fail(reasons...).WithPayload([]byte(diff)), nil
}

func (m *compareMode) errorBase(q *scenario.Query) string {
	return filepath.Join(m.outputDir, q.Scenario, "errors_for_"+NameCompare, q.Suite+"_"+q.ID)
}

func (m *compareMode) detailFile(q *scenario.Query) string {
	return m.errorBase(q) + "_error.json"
}

// ErrorFile returns the JSON detail file of a failed query, and whether
// this mode wrote it.
func (m *compareMode) ErrorFile(q *scenario.Query) (string, bool) {
	path := m.detailFile(q)
	return path, m.written[path]
}

type errorDetail struct {
	Scenario string          `json:"scenario"`
	Suite    string          `json:"suite"`
	Query    string          `json:"query"`
	SQL      string          `json:"sql"`
	Fixture  string          `json:"fixture"`
	Failures []string        `json:"failures"`
	Expected json.RawMessage `json:"expected"`
	Actual   json.RawMessage `json:"actual"`
	Diff     string          `json:"diff"`
}

func (m *compareMode) writeErrorFiles(q *scenario.Query, fixturePath string, expected *resultset.Set, reasons []string, diff string) error {
	base := m.errorBase(q)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return err
	}

	var failures strings.Builder
	for _, r := range reasons {
		failures.WriteString(r)
		failures.WriteByte('\n')
	}
	txtErr := os.WriteFile(base+"_failures.txt", []byte(failures.String()), 0o644)

	want, err := resultset.EncodeCompact(expected)
	if err != nil {
		return errors.Join(txtErr, err)
	}
	got, err := resultset.EncodeCompact(q.Actual)
	if err != nil {
		return errors.Join(txtErr, err)
	}
	detail, err := json.MarshalIndent(errorDetail{
		Scenario: q.Scenario,
		Suite:    q.Suite,
		Query:    q.ID,
		SQL:      q.SQL,
		Fixture:  fixturePath,
		Failures: reasons,
		Expected: want,
		Actual:   got,
		Diff:     diff,
	}, "", "  ")
	if err != nil {
		return errors.Join(txtErr, err)
	}
	if err := os.WriteFile(m.detailFile(q), detail, 0o644); err != nil {
		return errors.Join(txtErr, err)
	}
	m.written[m.detailFile(q)] = true
	return txtErr
}

func (m *compareMode) Destroy() {
	m.fixtures = nil
	m.written = nil
}

func (m *compareMode) Name() string { return NameCompare }
