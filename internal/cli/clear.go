package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ConfirmWord must be typed exactly to clear the table interactively
const ConfirmWord = "YES"

func NewClearCommand(root *RootCommand) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored alert",
		Long: `Delete every stored alert. Alerts still present upstream will be collected
and notified again on the next cycle of a running monitor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.setup(); err != nil {
				return err
			}
			if !yes && !root.confirm() {
				fmt.Fprintln(root.out, "Aborted, nothing was deleted")
				return nil
			}

			store, closeStore, err := root.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := store.ClearAll(cmd.Context())
			if err != nil {
				return err
			}
			root.logger.WithField("deleted", n).Info("Cleared alert table")
			fmt.Fprintf(root.out, "Deleted %d alerts\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func (r *RootCommand) confirm() bool {
	fmt.Fprintf(r.out, "This deletes every stored alert. Type %s to confirm: ", ConfirmWord)
	line, err := bufio.NewReader(r.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.TrimSpace(line) == ConfirmWord
}
