package version

import (
	"context"
	"fmt"

	"github.com/compozy/docbuddy/cli/cmd"
	"github.com/compozy/docbuddy/cli/helpers"
	"github.com/compozy/docbuddy/pkg/version"
	"github.com/spf13/cobra"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(cobraCmd, cmd.ModeHandlers{
				JSON: func(_ context.Context, c *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
					return helpers.WriteJSON(c.OutOrStdout(), version.Get())
				},
				TUI: func(_ context.Context, c *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
					_, err := fmt.Fprintf(c.OutOrStdout(), "docbuddy %s\n", version.Get())
					return err
				},
			}, args)
		},
	}
}
