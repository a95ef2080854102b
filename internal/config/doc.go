// Package config holds the string property bag handed to result modes and
// writers, the loaders that build it from files, and the validated settings
// the runner reads from it.
//
// Properties come from, in increasing precedence:
//
//  1. the run file given on the command line (.yaml, .yml, .cue, .env or
//     .properties)
//  2. the scenario file, for properties scoped to one scenario
//  3. -P key=value overrides
//
// Values may reference other keys as ${key}. Unknown references are left as
// written; a key that refers to itself, directly or through other keys, is an
// error.
package config
