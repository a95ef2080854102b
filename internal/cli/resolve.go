package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/whipper/internal/config"
	"github.com/roach88/whipper/internal/fixture"
	"github.com/roach88/whipper/internal/scenario"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Dirs       []string
	ConfigFile string
	Properties []string
	Suite      string
}

// ResolveResult is the outcome of a fixture lookup.
type ResolveResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Layers []string `json:"layers"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Show which fixture layer provides a file",
		Long: `Resolve a fixture name against layered directories and print the path
that wins. Layers are given lowest priority first, either with repeated
--dir flags or through expected.results.dirs in a properties file.

Examples:
  whipper resolve --dir expected/base --dir expected/pg16 --suite users count_users
  whipper resolve -f whipper.yaml --suite users count_users.expected`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveFixture(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Dirs, "dir", nil, "fixture layer, lowest priority first (repeatable)")
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "f", "", "properties file providing expected.results.dirs")
	cmd.Flags().StringArrayVarP(&opts.Properties, "property", "P", nil, "property override as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "suite subdirectory to look in")

	return cmd
}

func resolveFixture(cmd *cobra.Command, opts *ResolveOptions, name string) error {
	out := newOutput(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dirs := opts.Dirs
	if len(dirs) == 0 {
		props, overrides, err := loadProperties(&RunOptions{ConfigFile: opts.ConfigFile, Properties: opts.Properties}, nil)
		if err != nil {
			return fail(out, WrapExitError(ExitCommandError, "invalid configuration", err))
		}
		resolved, err := props.Merge(overrides).Resolve()
		if err != nil {
			return fail(out, WrapExitError(ExitCommandError, "invalid configuration", err))
		}
		dirs = config.ExpectedDirs(resolved)
	}
	if len(dirs) == 0 {
		return fail(out, NewExitError(ExitCommandError, "no fixture layers: use --dir or set expected.results.dirs"))
	}

	if filepath.Ext(name) == "" {
		name += scenario.FixtureExt
	}
	r := fixture.New(dirs...)
	if opts.Suite != "" {
		r = r.Sub(opts.Suite)
	}
	out.Verbosef("searching %s", strings.Join(r.Dirs(), ", "))

	path, ok := r.Resolve(name)
	if !ok {
		return fail(out, NewExitError(ExitFailure,
			fmt.Sprintf("%s not found in %s", name, strings.Join(r.Dirs(), ", "))))
	}
	return out.Result(ResolveResult{Name: name, Path: path, Layers: r.Dirs()}, path)
}
