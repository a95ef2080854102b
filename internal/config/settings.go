package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Settings are the options that apply to a whole run.
type Settings struct {
	ScenarioPath string   `validate:"required"`
	Include      []string `validate:"dive,glob"`
	Exclude      []string `validate:"dive,glob"`
	ResultMode   string
	Writers      []string `validate:"dive,required"`
	OutputDir    string
	Workers      int    `validate:"min=1,max=64"`
	LogLevel     string `validate:"oneof=trace debug info warn error"`
	LogFormat    string `validate:"oneof=text json"`
}

// ParseSettings reads and validates the run settings from p.
func ParseSettings(p Properties) (*Settings, error) {
	workers, err := p.Int(KeyWorkers, DefaultWorkers)
	if err != nil {
		return nil, err
	}

	writers := p.List(KeyResultWriters)
	if _, set := p[KeyResultWriters]; !set {
		writers = strings.Split(DefaultWriters, ",")
	}

	s := &Settings{
		ScenarioPath: p.Get(KeyScenarioPath),
		Include:      p.List(KeyScenarioInclude),
		Exclude:      p.List(KeyScenarioExclude),
		ResultMode:   strings.ToUpper(p.Get(KeyResultMode)),
		Writers:      writers,
		OutputDir:    p.Get(KeyOutputDir),
		Workers:      workers,
		LogLevel:     strings.ToLower(p.GetOr(KeyLogLevel, DefaultLogLevel)),
		LogFormat:    strings.ToLower(p.GetOr(KeyLogFormat, DefaultLogFormat)),
	}
	if err := validate(s); err != nil {
		return nil, fmt.Errorf("invalid run settings: %w", err)
	}
	return s, nil
}

// ScenarioSettings are the options read from one scenario's merged
// properties.
type ScenarioSettings struct {
	// QueriesDir holds the suite files of the scenario.
	QueriesDir string `validate:"required"`

	Strategy   string `validate:"required"`
	URL        string `validate:"required"`
	PingQuery  string
	AfterQuery string
	FailFast   string `validate:"oneof=off queryset scenario"`
}

// ParseScenarioSettings reads and validates per-scenario settings from p.
func ParseScenarioSettings(p Properties) (*ScenarioSettings, error) {
	s := &ScenarioSettings{
		QueriesDir: QueriesDir(p),
		Strategy:   strings.ToLower(p.Get(KeyConnectionStrategy)),
		URL:        p.Get(KeyConnectionURL),
		PingQuery:  p.Get(KeyPingQuery),
		AfterQuery: p.Get(KeyAfterQuery),
		FailFast:   strings.ToLower(p.GetOr(KeyFailFast, DefaultFailFast)),
	}
	if err := validate(s); err != nil {
		return nil, fmt.Errorf("invalid scenario settings: %w", err)
	}
	return s, nil
}

// QuerySetRoot returns artifacts.dir joined with queryset.dir.
func QuerySetRoot(p Properties) string {
	return filepath.Join(p.Get(KeyArtifactsDir), p.Get(KeyQuerySetDir))
}

// QueriesDir returns the directory holding suite files. An absolute
// test.queries.dir is used as is; a relative one is taken from the query
// set root.
func QueriesDir(p Properties) string {
	dir := p.GetOr(KeyTestQueriesDir, DefaultQueriesSubdir)
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(QuerySetRoot(p), dir)
}

// ExpectedDirs returns expected.results.dirs in declared order, lowest
// priority first. Relative entries are taken from the query set root.
func ExpectedDirs(p Properties) []string {
	dirs := p.List(KeyExpectedResultsDirs)
	root := QuerySetRoot(p)
	for i, d := range dirs {
		if !filepath.IsAbs(d) {
			dirs[i] = filepath.Join(root, d)
		}
	}
	return dirs
}

func validate(v any) error {
	err := validatorInstance().Struct(v)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s failed %s=%s (got %q)", fe.Namespace(), fe.Tag(), fe.Param(), fmt.Sprint(fe.Value()))
		} else {
			msgs[i] = fmt.Sprintf("%s failed %s (got %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
