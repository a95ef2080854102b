// Package fixture locates expected-result files across layered override
// directories.
//
// Directories are supplied lowest priority first, the way they appear in
// configuration. The resolver stores them in reverse so that a linear
// "first match wins" scan returns the file from the highest-priority layer.
//
//	r := fixture.New("artifacts/base", "artifacts/env-override")
//	path, ok := r.Resolve("query1.expected")
//	// path is artifacts/env-override/query1.expected when both layers have it
package fixture

import (
	"os"
	"path/filepath"
	"slices"
)

// Resolver finds a named file in an ordered set of override layers.
// A Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	// dirs holds the layers highest priority first.
	dirs []string
}

// New creates a resolver from directories ordered lowest to highest priority.
// The input slice is copied; the caller may reuse it.
func New(dirs ...string) *Resolver {
	return &Resolver{dirs: reversed(dirs)}
}

// reversed returns a reversed copy of dirs. Kept separate so the
// precedence flip is an explicit, testable step.
func reversed(dirs []string) []string {
	out := slices.Clone(dirs)
	slices.Reverse(out)
	return out
}

// Resolve returns the path of the highest-priority regular file named name.
// The second result is false when no layer contains such a file.
//
// Layers that do not exist or cannot be read count as non-matching.
// An empty name never matches.
func (r *Resolver) Resolve(name string) (string, bool) {
	if r == nil || name == "" {
		return "", false
	}
	for _, dir := range r.dirs {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Dirs returns the layers in lookup order, highest priority first.
func (r *Resolver) Dirs() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.dirs)
}

// Sub returns a resolver whose layers are elem joined onto each layer of r.
// Priority is preserved. Used to scope lookups to a suite directory while
// keeping Resolve's plain-filename contract.
func (r *Resolver) Sub(elem string) *Resolver {
	if r == nil {
		return nil
	}
	dirs := make([]string, len(r.dirs))
	for i, dir := range r.dirs {
		dirs[i] = filepath.Join(dir, elem)
	}
	return &Resolver{dirs: dirs}
}
