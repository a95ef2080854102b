// Package runner executes scenarios.
//
// A run opens the configured results writers once, then runs every
// scenario definition: its properties are merged over the run properties
// and resolved, its suites are loaded, a connection to the target is opened
// and pinged, and each query is executed in order and handed to the result
// mode. Every scenario, including one that could not start, is fanned out
// to the writers as soon as it finishes.
//
// With runner.workers above one, scenarios run concurrently. Each worker
// owns its own result mode instance; writers are shared.
package runner
