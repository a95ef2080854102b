package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/logging"
	"github.com/roach88/whipper/internal/runner"
	"github.com/roach88/whipper/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigFile string
	Properties []string
	Mode       string
	Writers    string

	// IDs overrides the run ID generator (for testing).
	IDs runner.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario-path]",
		Short: "Run scenarios",
		Long: `Run every scenario found at the scenario path.

Properties come from the --config file (.yaml, .yml, .cue, .env or
.properties) and are overridden by -P key=value flags. Each scenario file
adds its own properties on top; -P flags win over those too. A scenario
path given as argument replaces scenario.path.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid configuration, no scenarios, etc.)

Examples:
  whipper run -f whipper.yaml
  whipper run -f whipper.yaml ./scenarios/nightly.yaml
  whipper run -f whipper.yaml --mode compare -P output.dir=/tmp/out
  whipper run -f whipper.yaml --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "f", "", "properties file")
	cmd.Flags().StringArrayVarP(&opts.Properties, "property", "P", nil, "property override as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "result mode (none|capture|compare), same as -P result.mode=")
	cmd.Flags().StringVar(&opts.Writers, "writers", "", "comma-separated results writers, same as -P result.writers=")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *RunOptions, args []string) error {
	out := newOutput(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	props, overrides, err := loadProperties(opts, args)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "invalid configuration", err))
	}
	resolved, err := props.Merge(overrides).Resolve()
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "invalid configuration", err))
	}
	settings, err := config.ParseSettings(resolved)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "invalid configuration", err))
	}

	level := settings.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Options{
		Level:         level,
		HumanReadable: settings.LogFormat == "text",
		Writer:        out.Diagnostics(),
	})
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "invalid log level", err))
	}

	defs, err := scenario.Discover(settings.ScenarioPath, settings.Include, settings.Exclude)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "cannot load scenarios", err))
	}
	if len(defs) == 0 {
		return fail(out, NewExitError(ExitCommandError, fmt.Sprintf("no scenarios found in %s", settings.ScenarioPath)))
	}
	out.Verbosef("found %d scenario(s) in %s", len(defs), settings.ScenarioPath)

	// Console reports would corrupt the JSON document on stdout.
	stdout := cmd.OutOrStdout()
	if out.JSON() {
		stdout = out.Diagnostics()
	}
	r, err := runner.New(runner.Options{
		Props:     props,
		Overrides: overrides,
		Settings:  settings,
		Log:       log,
		Stdout:    stdout,
		IDs:       opts.IDs,
	})
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "cannot create runner", err))
	}

	summary, runErr := r.Run(cmd.Context(), defs)
	if summary == nil {
		return fail(out, WrapExitError(ExitCommandError, "run failed", runErr))
	}
	if err := out.Result(summary, summaryLine(summary)); err != nil {
		return err
	}

	switch {
	case runErr != nil:
		return WrapExitError(ExitFailure, "run interrupted", runErr)
	case !summary.Passed():
		failed := summary.FailedScenarios()
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d scenario(s) failed: %s", len(failed), strings.Join(failed, ", ")))
	}
	return nil
}

// loadProperties returns the run properties and the overrides that apply on
// top of every scenario.
func loadProperties(opts *RunOptions, args []string) (config.Properties, config.Properties, error) {
	props := config.Properties{}
	if opts.ConfigFile != "" {
		loaded, err := config.LoadFile(opts.ConfigFile)
		if err != nil {
			return nil, nil, err
		}
		props = loaded
	}

	overrides, err := config.ParseOverrides(opts.Properties)
	if err != nil {
		return nil, nil, err
	}
	if len(args) == 1 {
		overrides[config.KeyScenarioPath] = args[0]
	}
	if opts.Mode != "" {
		overrides[config.KeyResultMode] = opts.Mode
	}
	if opts.Writers != "" {
		overrides[config.KeyResultWriters] = opts.Writers
	}
	return props, overrides, nil
}

func summaryLine(s *runner.Summary) string {
	passed := len(s.Scenarios) - len(s.FailedScenarios())
	return fmt.Sprintf("%d of %d scenario(s) passed; queries: %d passed, %d failed, %d skipped of %d",
		passed, len(s.Scenarios), s.Totals.Passed, s.Totals.Failed, s.Totals.Skipped, s.Totals.All)
}

// fail reports err in JSON mode before returning it, so scripts always get
// a document on stdout.
func fail(out *Output, err error) error {
	if out.JSON() {
		out.Fail(err)
	}
	return err
}
