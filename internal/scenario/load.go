package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/roach88/whipper/internal/config"
)

type suiteFile struct {
	Queries []suiteEntry `yaml:"queries"`
}

type suiteEntry struct {
	ID      string       `yaml:"id"`
	SQL     string       `yaml:"sql"`
	Queries []queryEntry `yaml:"queries"`
	Before  []queryEntry `yaml:"before"`
	After   []queryEntry `yaml:"after"`
}

type queryEntry struct {
	ID  string `yaml:"id"`
	SQL string `yaml:"sql"`
}

// LoadSuite reads a suite file. The suite ID is the file name without its
// extension. Unknown fields are rejected.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var file suiteFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	suite, err := buildSuite(id, &file)
	if err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return suite, nil
}

func buildSuite(id string, file *suiteFile) (*Suite, error) {
	if len(file.Queries) == 0 {
		return nil, fmt.Errorf("queries list is required and must be non-empty")
	}

	suite := &Suite{ID: id}
	seen := map[string]bool{}
	addQuery := func(set *QuerySet, e queryEntry, where string) error {
		if e.ID == "" {
			return fmt.Errorf("%s: id is required", where)
		}
		if strings.TrimSpace(e.SQL) == "" {
			return fmt.Errorf("%s: sql is required", where)
		}
		if seen[e.ID] {
			return fmt.Errorf("%s: duplicate query id %q", where, e.ID)
		}
		seen[e.ID] = true
		set.Queries = append(set.Queries, &Query{ID: e.ID, SQL: e.SQL, Suite: id, Set: set.ID})
		return nil
	}

	for i, e := range file.Queries {
		where := fmt.Sprintf("queries[%d]", i)
		var set *QuerySet
		switch {
		case e.SQL != "" && len(e.Queries) > 0:
			return nil, fmt.Errorf("%s: sql and queries are mutually exclusive", where)
		case len(e.Queries) > 0:
			if e.ID == "" {
				return nil, fmt.Errorf("%s: id is required", where)
			}
			set = &QuerySet{ID: e.ID}
			for j, q := range e.Queries {
				if err := addQuery(set, q, fmt.Sprintf("%s.queries[%d]", where, j)); err != nil {
					return nil, err
				}
			}
		default:
			set = &QuerySet{ID: e.ID}
			if err := addQuery(set, queryEntry{ID: e.ID, SQL: e.SQL}, where); err != nil {
				return nil, err
			}
		}

		var err error
		if set.Before, err = metaQueries(id, set.ID, e.Before, where+".before"); err != nil {
			return nil, err
		}
		if set.After, err = metaQueries(id, set.ID, e.After, where+".after"); err != nil {
			return nil, err
		}
		suite.Sets = append(suite.Sets, set)
	}
	return suite, nil
}

// metaQueries builds the before or after statements of a query set.
func metaQueries(suite, set string, entries []queryEntry, where string) ([]*Query, error) {
	var out []*Query
	seen := map[string]bool{}
	for i, e := range entries {
		at := fmt.Sprintf("%s[%d]", where, i)
		switch {
		case e.ID == "":
			return nil, fmt.Errorf("%s: id is required", at)
		case strings.TrimSpace(e.SQL) == "":
			return nil, fmt.Errorf("%s: sql is required", at)
		case seen[e.ID]:
			return nil, fmt.Errorf("%s: duplicate query id %q", at, e.ID)
		}
		seen[e.ID] = true
		out = append(out, &Query{ID: e.ID, SQL: e.SQL, Suite: suite, Set: set})
	}
	return out, nil
}

// LoadSuites reads every .yaml and .yml suite file directly under dir,
// sorted by suite ID.
func LoadSuites(dir string) ([]*Suite, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error accessing queries directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error scanning queries directory: %w", err)
	}

	var suites []*Suite
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		s, err := LoadSuite(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	slices.SortFunc(suites, func(a, b *Suite) int { return strings.Compare(a.ID, b.ID) })
	return suites, nil
}

// Definition is a scenario file: its ID and the properties it sets.
type Definition struct {
	ID    string
	Path  string
	Props config.Properties
}

var definitionExts = []string{".yaml", ".yml", ".cue", ".env", ".properties"}

// Discover finds scenario definitions at path. A file yields one definition;
// a directory yields one per property file directly inside it whose base
// name matches an include pattern (all when none) and no exclude pattern.
// Definitions are sorted by ID.
func Discover(path string, include, exclude []string) ([]*Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing scenario path: %w", err)
	}
	if !info.IsDir() {
		def, err := loadDefinition(path)
		if err != nil {
			return nil, err
		}
		return []*Definition{def}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("error scanning scenario directory: %w", err)
	}

	var defs []*Definition
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !slices.Contains(definitionExts, strings.ToLower(filepath.Ext(name))) {
			continue
		}
		if !selected(name, include, exclude) {
			continue
		}
		def, err := loadDefinition(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	slices.SortFunc(defs, func(a, b *Definition) int { return strings.Compare(a.ID, b.ID) })
	return defs, nil
}

func selected(name string, include, exclude []string) bool {
	if len(include) > 0 && !matchAny(include, name) {
		return false
	}
	return !matchAny(exclude, name)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func loadDefinition(path string) (*Definition, error) {
	props, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	return &Definition{
		ID:    strings.TrimSuffix(base, filepath.Ext(base)),
		Path:  path,
		Props: props,
	}, nil
}
