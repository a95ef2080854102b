package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/whipper/internal/resultset"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Sorted     bool
	Divergence float64
}

// DiffResult is the outcome of comparing two fixture documents.
type DiffResult struct {
	Equal   bool     `json:"equal"`
	Reasons []string `json:"reasons,omitempty"`
	Diff    string   `json:"diff,omitempty"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <expected> <actual>",
		Short: "Compare two result fixtures",
		Long: `Compare two result fixture documents the way the compare result mode
does and print every mismatch followed by a line diff.

Rows are compared in order only with --sorted, which stands for a query
with ORDER BY.

Exit codes:
  0 - The results match
  1 - The results differ
  2 - Command error (unreadable or invalid documents)`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return diffFixtures(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Sorted, "sorted", false, "row order is significant")
	cmd.Flags().Float64Var(&opts.Divergence, "divergence", 0, "allowed difference between numeric cells")

	return cmd
}

func diffFixtures(cmd *cobra.Command, opts *DiffOptions, expectedPath, actualPath string) error {
	out := newOutput(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Divergence < 0 {
		return fail(out, NewExitError(ExitCommandError, "divergence must not be negative"))
	}

	expected, err := readFixture(expectedPath)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "cannot read expected result", err))
	}
	actual, err := readFixture(actualPath)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "cannot read actual result", err))
	}

	reasons := resultset.Compare(expected, actual, resultset.Options{
		Sortable:   !opts.Sorted,
		Divergence: opts.Divergence,
	})
	if len(reasons) == 0 {
		return out.Result(DiffResult{Equal: true}, "results match")
	}

	diff, err := resultset.Diff(expected, actual)
	if err != nil {
		return fail(out, WrapExitError(ExitCommandError, "cannot diff results", err))
	}
	var text strings.Builder
	for _, r := range reasons {
		fmt.Fprintf(&text, "- %s\n", r)
	}
	text.WriteString("\n")
	text.WriteString(strings.TrimRight(diff, "\n"))
	if err := out.Result(DiffResult{Reasons: reasons, Diff: diff}, text.String()); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d difference(s)", len(reasons)))
}

func readFixture(path string) (*resultset.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return resultset.Decode(data)
}
