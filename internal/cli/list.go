package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ecs-alert/ecs-alert/internal/database"
)

func NewListCommand(root *RootCommand) *cobra.Command {
	var notified, pending bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored alerts as JSON",
		Long: `Print every stored alert as a JSON array. --notified limits the output to
alerts a notification was sent for, --pending to alerts still waiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.setup(); err != nil {
				return err
			}
			store, closeStore, err := root.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			selectFn := store.SelectAll
			switch {
			case notified:
				selectFn = store.SelectNotified
			case pending:
				selectFn = store.SelectPending
			}
			return root.printAlerts(cmd.Context(), selectFn)
		},
	}

	cmd.Flags().BoolVar(&notified, "notified", false, "Only alerts that were notified")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only alerts not yet notified")
	cmd.MarkFlagsMutuallyExclusive("notified", "pending")
	return cmd
}

func (r *RootCommand) printAlerts(ctx context.Context, selectFn func(context.Context) ([]database.Alert, error)) error {
	rows, err := selectFn(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
