package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/scenario"
)

const (
	namePad    = 50
	resultsPad = 6

	dateLayout  = "2006-01-02 15:04:05"
	clockLayout = "15:04:05.000"
	stampLayout = "_20060102_150405"

	totalsFile = "Summary_totals.txt"
	errorsFile = "Summary_errors.txt"
)

// summary writes plain text reports under output.dir:
//
//	Summary_totals.txt       one row per scenario
//	Summary_errors.txt       failed queries of every scenario
//	Summary_<scenario>.txt   per-suite counts of one scenario
//	<scenario>/<suite>.txt   per-query lines, appended on every run
type summary struct {
	log zerolog.Logger
	now func() time.Time

	mu        sync.Mutex
	outputDir string
}

func newSummary(env Env) *summary {
	return &summary{log: env.Log, now: env.Now}
}

func (w *summary) Name() string { return NameSummary }

func (w *summary) Init(props config.Properties) bool {
	out := props.Get(config.KeyOutputDir)
	if out == "" {
		w.log.Error().Msg("cannot write results: output directory is not set")
		return false
	}
	info, err := os.Stat(out)
	switch {
	case err == nil && !info.IsDir():
		w.log.Error().Str("dir", out).Msg("cannot write results: output directory is not a directory")
		return false
	case err != nil:
		if err := os.MkdirAll(out, 0o755); err != nil {
			w.log.Error().Err(err).Str("dir", out).Msg("cannot write results: output directory cannot be created")
			return false
		}
	}

	w.mu.Lock()
	w.outputDir = out
	w.mu.Unlock()
	return true
}

func (w *summary) Destroy() {
	w.mu.Lock()
	w.outputDir = ""
	w.mu.Unlock()
}

func (w *summary) WriteScenario(_ context.Context, s *scenario.Scenario) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.outputDir == "" {
		return fmt.Errorf("%s writer is not initialized", NameSummary)
	}

	if err := w.writeSummary(s); err != nil {
		return err
	}

	dir := filepath.Join(w.outputDir, s.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create scenario directory: %w", err)
	}
	stamp := w.now().Format(stampLayout)
	for _, suite := range s.Suites {
		if err := w.writeSuite(dir, stamp, suite); err != nil {
			return err
		}
	}
	return nil
}

func (w *summary) writeSummary(s *scenario.Scenario) error {
	var totals, errs strings.Builder

	totalsPath := filepath.Join(w.outputDir, totalsFile)
	if !exists(totalsPath) {
		totals.WriteString("==============\nSummary totals\n==============\n")
		totals.WriteString(pad("Scenario", namePad) + pad("Pass", resultsPad) + pad("Fail", resultsPad) +
			pad("Total", resultsPad) + pad("Skipped", resultsPad) + "\n")
	}
	errorsPath := filepath.Join(w.outputDir, errorsFile)
	if !exists(errorsPath) {
		errs.WriteString("==============\nSummary errors\n==============\n")
	}

	var report strings.Builder
	writeScenarioHeader(&report, s)
	writeFailedQueries(&report, s)
	writeFailedQueries(&errs, s)

	c := s.Counts()
	totals.WriteString(pad(s.ID, namePad) + padInt(c.Passed) + padInt(c.Failed) +
		padInt(c.All) + padInt(c.All-c.Failed-c.Passed) + "\n")

	if err := os.WriteFile(filepath.Join(w.outputDir, "Summary_"+s.ID+".txt"), []byte(report.String()), 0o644); err != nil {
		return fmt.Errorf("write scenario summary: %w", err)
	}
	if err := appendFile(errorsPath, errs.String()); err != nil {
		return fmt.Errorf("write error summary: %w", err)
	}
	if err := appendFile(totalsPath, totals.String()); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}
	return nil
}

func writeScenarioHeader(b *strings.Builder, s *scenario.Scenario) {
	fmt.Fprintf(b, "Scenario - %s\n", s.ID)
	b.WriteString("======================\n")
	fmt.Fprintf(b, "Start Time:           %s\n", formatDate(s.Start))
	fmt.Fprintf(b, "End Time:             %s\n", formatDate(s.End))
	fmt.Fprintf(b, "Elapsed:              %s\n", formatElapsed(s.Duration()))
	b.WriteString("----------------------\n")
	fmt.Fprintf(b, "Number of all suites: %d\n", len(s.Suites))
	b.WriteString(pad("Name", namePad) + pad("Pass", resultsPad) + pad("Fail", resultsPad) + pad("Total", resultsPad) + "\n")

	var total scenario.Counts
	for _, suite := range s.Suites {
		c := suite.Counts()
		total = total.Add(c)
		b.WriteString(pad(suite.ID, namePad) + padInt(c.Passed) + padInt(c.Failed) + padInt(c.All) + "\n")
	}
	b.WriteString("----------------------\n")
	b.WriteString(pad("Totals", namePad) + padInt(total.Passed) + padInt(total.Failed) + padInt(total.All) + "\n")
	if s.Err != nil {
		fmt.Fprintf(b, "Aborted:              %v\n", s.Err)
	}
}

func writeFailedQueries(b *strings.Builder, s *scenario.Scenario) {
	failed := s.FailedQueries()
	if len(failed) == 0 {
		return
	}
	b.WriteString("\n----------------------\n")
	fmt.Fprintf(b, "Failed queries [%s]\n", s.ID)
	for _, q := range failed {
		fmt.Fprintf(b, "    %s_%s - %s\n", q.Suite, q.ID, q.Result().Reason())
	}
}

func (w *summary) writeSuite(dir, stamp string, suite *scenario.Suite) error {
	var b strings.Builder
	writeSuiteHeader(&b, suite)
	writeSuiteResults(&b, suite)
	report := b.String()

	if err := appendFile(filepath.Join(dir, suite.ID+".txt"), report+"\n\n"); err != nil {
		return fmt.Errorf("write suite %s: %w", suite.ID, err)
	}
	if err := os.WriteFile(filepath.Join(dir, suite.ID+stamp+".txt"), []byte(report), 0o644); err != nil {
		return fmt.Errorf("write suite %s: %w", suite.ID, err)
	}
	return nil
}

func writeSuiteHeader(b *strings.Builder, suite *scenario.Suite) {
	c := suite.Counts()
	fmt.Fprintf(b, "Suite - %s\n", suite.ID)
	b.WriteString("============================\n")
	fmt.Fprintf(b, "Start Time:                 %s\n", formatDate(suite.Start))
	fmt.Fprintf(b, "End Time:                   %s\n", formatDate(suite.End))
	fmt.Fprintf(b, "Elapsed:                    %s\n", formatElapsed(suite.Duration()))
	fmt.Fprintf(b, "Number of all queries:      %d\n", c.All)
	fmt.Fprintf(b, "Number of skipped queries:  %d\n", c.All-c.Executed)
	fmt.Fprintf(b, "Number of executed queries: %d\n", c.Executed)
	fmt.Fprintf(b, "Number of passed queries:   %d\n", c.Passed)
	fmt.Fprintf(b, "Number of failed queries:   %d\n", c.Failed)
	b.WriteString("============================\n")
}

func writeSuiteResults(b *strings.Builder, suite *scenario.Suite) {
	first := true
	for _, q := range suite.Queries() {
		if !q.Completed() {
			continue
		}
		if first {
			b.WriteString("\n")
			first = false
		}
		b.WriteString(queryLine(q))
		b.WriteString("\n")
	}
}

// queryLine renders set,query,pass|fail|skipped,start,end,duration[,reason].
func queryLine(q *scenario.Query) string {
	r := q.Result()
	verdict := "fail"
	switch {
	case r.Passed():
		verdict = "pass"
	case r.Skipped():
		verdict = "skipped"
	}
	duration := int64(-1)
	if !q.Start.IsZero() && !q.End.IsZero() {
		duration = q.Duration().Milliseconds()
	}
	line := strings.Join([]string{
		q.Set, q.ID, verdict, formatClock(q.Start), formatClock(q.End), strconv.FormatInt(duration, 10),
	}, ",")
	if reason := r.Reason(); reason != "" && !r.Passed() {
		line += "," + reason
	}
	return line
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func padInt(n int) string {
	return pad(strconv.Itoa(n), resultsPad)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "-1"
	}
	return t.Format(clockLayout)
}

// formatElapsed renders d as HH:MM:SS.mmm.
func formatElapsed(d time.Duration) string {
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
