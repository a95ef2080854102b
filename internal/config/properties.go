package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ErrRecursivePlaceholder is returned by Resolve when a value refers back to
// its own key.
var ErrRecursivePlaceholder = errors.New("recursive placeholder")

// Properties is a flat string-to-string configuration bag.
type Properties map[string]string

// Get returns the trimmed value for key, or "" when unset.
func (p Properties) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// GetOr returns the value for key, or def when the key is unset or blank.
func (p Properties) GetOr(key, def string) string {
	if v := p.Get(key); v != "" {
		return v
	}
	return def
}

// Int parses key as an integer, returning def when unset.
func (p Properties) Int(key string, def int) (int, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Float parses key as a decimal number, returning def when unset.
func (p Properties) Float(key string, def float64) (float64, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// List splits a comma separated value, dropping blank entries.
func (p Properties) List(key string) []string {
	var out []string
	for _, part := range strings.Split(p[key], ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// Merge returns a new bag holding p overlaid with each of others in turn.
func (p Properties) Merge(others ...Properties) Properties {
	out := p.Clone()
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// Keys returns the keys in sorted order.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Resolve returns a copy of p with every ${key} reference replaced by the
// referenced value. References to unknown keys stay as written.
func (p Properties) Resolve() (Properties, error) {
	r := &resolver{src: p, done: make(map[string]string, len(p)), active: map[string]bool{}}
	out := make(Properties, len(p))
	for _, k := range p.Keys() {
		v, err := r.value(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

type resolver struct {
	src    Properties
	done   map[string]string
	active map[string]bool
}

func (r *resolver) value(key string) (string, error) {
	if v, ok := r.done[key]; ok {
		return v, nil
	}
	if r.active[key] {
		return "", fmt.Errorf("%w: %s", ErrRecursivePlaceholder, key)
	}
	r.active[key] = true
	defer delete(r.active, key)

	v, err := r.expand(r.src[key])
	if err != nil {
		return "", err
	}
	r.done[key] = v
	return v, nil
}

func (r *resolver) expand(s string) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.Index(s[start+2:], "}")
		if end < 0 {
			break
		}
		end += start + 2
		name := s[start+2 : end]

		b.WriteString(s[:start])
		if _, ok := r.src[name]; ok && name != "" {
			v, err := r.value(name)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String(), nil
}

// ParseOverrides turns key=value pairs into properties.
func ParseOverrides(pairs []string) (Properties, error) {
	out := Properties{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property override %q: expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}
