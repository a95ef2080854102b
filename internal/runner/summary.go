package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/whipper/internal/scenario"
)

// SummaryFile is written to output.dir at the end of a run.
const SummaryFile = "result.json"

// Summary is the outcome of a whole run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Writers         []string `json:"writers"`
	ExcludedWriters []string `json:"excluded_writers,omitempty"`

	Totals    scenario.Counts   `json:"totals"`
	Scenarios []ScenarioSummary `json:"scenarios"`
}

// ScenarioSummary holds the counts of one scenario.
type ScenarioSummary struct {
	ID     string          `json:"id"`
	Passed bool            `json:"passed"`
	Error  string          `json:"error,omitempty"`
	Counts scenario.Counts `json:"counts"`
	Suites []SuiteSummary  `json:"suites,omitempty"`
}

// SuiteSummary holds the counts of one suite.
type SuiteSummary struct {
	ID     string          `json:"id"`
	Counts scenario.Counts `json:"counts"`
	Sets   []SetSummary    `json:"query_sets"`
}

// SetSummary holds the counts of one query set.
type SetSummary struct {
	ID     string          `json:"id"`
	Counts scenario.Counts `json:"counts"`
}

func (s *Summary) add(sc *scenario.Scenario) {
	ss := ScenarioSummary{ID: sc.ID, Passed: sc.Passed(), Counts: sc.Counts()}
	if sc.Err != nil {
		ss.Error = sc.Err.Error()
	}
	for _, suite := range sc.Suites {
		su := SuiteSummary{ID: suite.ID, Counts: suite.Counts()}
		for _, set := range suite.Sets {
			su.Sets = append(su.Sets, SetSummary{ID: set.ID, Counts: set.Counts()})
		}
		ss.Suites = append(ss.Suites, su)
	}
	s.Scenarios = append(s.Scenarios, ss)
	s.Totals = s.Totals.Add(ss.Counts)
}

// Passed reports whether every scenario passed.
func (s *Summary) Passed() bool {
	for _, sc := range s.Scenarios {
		if !sc.Passed {
			return false
		}
	}
	return true
}

// FailedScenarios returns the IDs of scenarios that did not pass.
func (s *Summary) FailedScenarios() []string {
	var ids []string
	for _, sc := range s.Scenarios {
		if !sc.Passed {
			ids = append(ids, sc.ID)
		}
	}
	return ids
}

// Scenario returns the summary of the scenario called id.
func (s *Summary) Scenario(id string) (ScenarioSummary, bool) {
	for _, sc := range s.Scenarios {
		if sc.ID == id {
			return sc, true
		}
	}
	return ScenarioSummary{}, false
}

// WriteFile writes s as indented JSON to dir/result.json.
func (s *Summary) WriteFile(dir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, SummaryFile), append(data, '\n'), 0o644)
}

// ReadSummary loads a summary written by WriteFile.
func ReadSummary(dir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid summary %s: %w", filepath.Join(dir, SummaryFile), err)
	}
	return &s, nil
}
