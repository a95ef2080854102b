package resultmode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/resultset"
	"github.com/roach88/whipper/internal/scenario"
)

const captureDir = "capture"

// captureMode writes each actual result as a fixture under
// <output.dir>/capture/<scenario>/<suite>/. The tree can be copied into an
// expected results layer as is.
type captureMode struct {
	outputDir string
}

func (m *captureMode) Init(props config.Properties) error {
	dir := props.Get(config.KeyOutputDir)
	if dir == "" {
		return fmt.Errorf("%s: %s is not set", NameCapture, config.KeyOutputDir)
	}
	m.outputDir = dir
	return nil
}

func (m *captureMode) HandleResult(_ context.Context, q *scenario.Query) (scenario.Result, error) {
	if m.outputDir == "" {
		return scenario.Result{}, fmt.Errorf("%s: not initialized", NameCapture)
	}
	if q.Actual == nil {
		return scenario.Fail("no query result available"), nil
	}

	doc, err := resultset.Encode(q.Actual)
	if err != nil {
		return scenario.Result{}, fmt.Errorf("encode result of %s/%s: %w", q.Suite, q.ID, err)
	}

	dir := filepath.Join(m.outputDir, captureDir, q.Scenario, q.Suite)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return scenario.Errored(fmt.Errorf("cannot capture result: %s is a file", dir)), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scenario.Errored(fmt.Errorf("cannot capture result: %w", err)), nil
	}
	if err := os.WriteFile(filepath.Join(dir, q.FixtureName()), doc, 0o644); err != nil {
		return scenario.Errored(fmt.Errorf("cannot capture result: %w", err)), nil
	}
	return scenario.Pass().WithPayload(doc), nil
}

func (m *captureMode) Destroy() {}

func (m *captureMode) Name() string { return NameCapture }
