package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/database"
	"github.com/ecs-alert/ecs-alert/internal/ecs"
	"github.com/ecs-alert/ecs-alert/internal/handlers"
	"github.com/ecs-alert/ecs-alert/internal/jobs"
	"github.com/ecs-alert/ecs-alert/internal/middleware"
	"github.com/ecs-alert/ecs-alert/internal/notify"
)

const shutdownTimeout = 10 * time.Second

func NewRunCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the alert monitor",
		Long: `Connect to every configured ECS cluster, then collect alerts and dispatch
notifications on their own intervals until interrupted. A cycle in progress
always finishes before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.setup(); err != nil {
				return err
			}
			return root.runMonitor(cmd.Context())
		},
	}
}

func (r *RootCommand) runMonitor(ctx context.Context) error {
	cfg, log := r.cfg, r.logger

	store, closeStore, err := r.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	channel, err := notify.New(cfg)
	if err != nil {
		return err
	}
	if err := channel.Check(ctx); err != nil {
		return fmt.Errorf("%s delivery check failed: %w", channel.Name(), err)
	}
	log.Infof("Delivery channel %s ready", channel.Name())

	registry, err := ecs.NewRegistry(cfg, log)
	if err != nil {
		return err
	}
	defer registry.Close()
	if err := registry.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		registry.LogoutAll(logoutCtx)
	}()

	runner := jobs.NewRunner(log, buildTasks(ctx, r, store, channel, registry)...)

	if cfg.HTTP.Enabled {
		stopServer, err := r.startHTTP(store)
		if err != nil {
			return err
		}
		defer stopServer()
	}

	log.WithField("tasks", len(runner.Tasks())).Info("Monitor started")
	runner.Start(ctx)
	runner.Wait()
	log.Info("Monitor stopped")
	return nil
}

// buildTasks wires one collect task per cluster and a single dispatch task
// sharing the store.
func buildTasks(ctx context.Context, r *RootCommand, store *database.AlertStore, channel notify.Channel, registry *ecs.Registry) []jobs.Task {
	cfg, log := r.cfg, r.logger
	policy := alerts.FilterPolicyFromConfig(cfg.Filter)

	tasks := make([]jobs.Task, 0, len(registry.Clients())+1)
	for _, client := range registry.Clients() {
		cluster := registry.Cluster(ctx, client)
		clog := log.WithField("cluster", cluster.Endpoint)
		collector := alerts.NewCollector(cluster, client, store, policy, clog)
		tasks = append(tasks, jobs.NewCollectTask(collector, cfg.CollectInterval(), clog))
	}

	dispatcher := alerts.NewDispatcher(store, channel, registry, alerts.DispatcherOptions{
		AcknowledgeAfterNotify: cfg.AcknowledgeAfterNotify,
	}, log.WithField("channel", channel.Name()))
	tasks = append(tasks, jobs.NewDispatchTask(dispatcher, cfg.DispatchInterval(), log))
	return tasks
}

// startHTTP serves the reporting API in the background and returns a func
// that shuts it down gracefully.
func (r *RootCommand) startHTTP(store *database.AlertStore) (func(), error) {
	cfg, log := r.cfg.HTTP, r.logger
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString()
		log.Warn("No JWT secret configured, generated one; tokens will not survive a restart")
	}

	auth, err := middleware.NewJWTAuth(cfg, log, handlers.PublicPaths...)
	if err != nil {
		return nil, err
	}
	srv := handlers.NewServer(cfg, handlers.NewRouter(cliVersion, store, store, auth, log))

	go func() {
		log.Infof("Reporting API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Reporting API stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Reporting API shutdown failed")
		}
	}, nil
}
