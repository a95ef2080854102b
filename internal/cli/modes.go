package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/whipper/internal/resultmode"
	"github.com/roach88/whipper/internal/target"
	"github.com/roach88/whipper/internal/writer"
)

// Capabilities lists the built-in components a run can be configured with.
type Capabilities struct {
	ResultModes []string `json:"result_modes"`
	Writers     []string `json:"writers"`
	Strategies  []string `json:"connection_strategies"`
}

// NewModesCommand creates the modes command.
func NewModesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List result modes, results writers and connection strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			caps := Capabilities{
				ResultModes: resultmode.Default().Names(),
				Writers:     writer.Default().Names(),
				Strategies:  target.Default().Names(),
			}
			text := fmt.Sprintf("result modes:          %s\nresults writers:       %s\nconnection strategies: %s",
				strings.Join(caps.ResultModes, ", "),
				strings.Join(caps.Writers, ", "),
				strings.Join(caps.Strategies, ", "))
			return out.Result(caps, text)
		},
	}
}
