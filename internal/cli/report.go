package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/whipper/internal/runner"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <output-dir>",
		Short: "Show the summary of a finished run",
		Long: `Print the per-scenario and per-suite counts that a run saved in its
output directory.

Examples:
  whipper report ./out
  whipper report ./out --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			summary, err := runner.ReadSummary(args[0])
			if err != nil {
				return fail(out, WrapExitError(ExitCommandError, "cannot read run summary", err))
			}
			return out.Result(summary, formatReport(summary, rootOpts.Verbose))
		},
	}
	return cmd
}

func formatReport(s *runner.Summary, suites bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n", s.RunID, s.Finished.Sub(s.Started).Round(time.Millisecond))
	for _, sc := range s.Scenarios {
		verdict := "PASS"
		if !sc.Passed {
			verdict = "FAIL"
		}
		fmt.Fprintf(&b, "%s %-30s %4d passed %4d failed %4d skipped\n",
			verdict, sc.ID, sc.Counts.Passed, sc.Counts.Failed, sc.Counts.Skipped)
		if sc.Error != "" {
			fmt.Fprintf(&b, "     error: %s\n", sc.Error)
		}
		if !suites {
			continue
		}
		for _, su := range sc.Suites {
			fmt.Fprintf(&b, "     %-30s %4d passed %4d failed %4d skipped\n",
				su.ID, su.Counts.Passed, su.Counts.Failed, su.Counts.Skipped)
		}
	}
	fmt.Fprintf(&b, "Totals: %d passed, %d failed, %d skipped of %d",
		s.Totals.Passed, s.Totals.Failed, s.Totals.Skipped, s.Totals.All)
	return b.String()
}
