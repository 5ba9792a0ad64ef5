package cli

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ecs-alert/ecs-alert/internal/ecs"
	"github.com/ecs-alert/ecs-alert/internal/notify"
)

func NewCheckCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the database, every cluster and the delivery channel",
		Long: `Run the same connectivity checks the monitor runs at startup and report
each result. Exits non-zero when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.setup(); err != nil {
				return err
			}
			return root.runChecks(cmd.Context())
		},
	}
}

func (r *RootCommand) runChecks(ctx context.Context) error {
	var result *multierror.Error
	report := func(name string, err error) {
		if err != nil {
			fmt.Fprintf(r.out, "FAIL  %s: %v\n", name, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			return
		}
		fmt.Fprintf(r.out, "OK    %s\n", name)
	}

	store, closeStore, err := r.openStore()
	if err == nil {
		err = store.Ping(ctx)
	}
	closeStore()
	report("database", err)

	registry, err := ecs.NewRegistry(r.cfg, r.logger)
	if err != nil {
		report("clusters", err)
	} else {
		for _, c := range registry.Clients() {
			_, err := c.Login(ctx)
			report("ecs "+c.BaseURL(), err)
		}
		registry.LogoutAll(ctx)
		registry.Close()
	}

	channel, err := notify.New(r.cfg)
	if err == nil {
		err = channel.Check(ctx)
	}
	report("delivery "+r.cfg.Delivery, err)

	return result.ErrorOrNil()
}
