package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewVersionCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(root.out, "ecs-alert version %s\n", cliVersion)
			fmt.Fprintf(root.out, "  Commit: %s\n", cliGitCommit)
			fmt.Fprintf(root.out, "  Built:  %s\n", cliBuildDate)
		},
	}
}
