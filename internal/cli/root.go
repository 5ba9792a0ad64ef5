// Package cli is the ecs-alert command line: the monitor itself plus the
// reporting and maintenance commands that share its configuration.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/database"
	"github.com/ecs-alert/ecs-alert/internal/logging"
)

var (
	cliVersion   = "dev"
	cliBuildDate = "unknown"
	cliGitCommit = "unknown"
)

// DefaultConfigPath is used when neither --config nor ECS_ALERT_CONFIG is set
const DefaultConfigPath = "config.yaml"

type RootCommand struct {
	cmd    *cobra.Command
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	cfg    *config.Config
	logger *logrus.Logger
}

func NewRootCommand() *RootCommand {
	root := &RootCommand{
		v:   viper.New(),
		in:  os.Stdin,
		out: os.Stdout,
	}

	cmd := &cobra.Command{
		Use:   "ecs-alert",
		Short: "Forward Elastic Cloud Storage alerts to email or Slack",
		Long: `ecs-alert polls the alert feed of one or more ECS clusters, stores every
new alert that passes the severity and symptom code filters, and sends one
notification per alert through SMTP, SendGrid or a Slack webhook.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pflags := cmd.PersistentFlags()
	pflags.String("config", DefaultConfigPath, "Config file path")
	pflags.String("log-level", "", "Override the configured log level (debug, info, warning, error)")

	_ = root.v.BindPFlag("config", pflags.Lookup("config"))
	_ = root.v.BindPFlag("log-level", pflags.Lookup("log-level"))
	root.v.SetEnvPrefix("ECS_ALERT")
	root.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	root.v.AutomaticEnv()

	root.cmd = cmd
	root.addSubCommands()
	return root
}

func (r *RootCommand) addSubCommands() {
	r.cmd.AddCommand(NewRunCommand(r))
	r.cmd.AddCommand(NewListCommand(r))
	r.cmd.AddCommand(NewClearCommand(r))
	r.cmd.AddCommand(NewCheckCommand(r))
	r.cmd.AddCommand(NewVersionCommand(r))
}

func (r *RootCommand) Command() *cobra.Command {
	return r.cmd
}

// SetIO redirects the prompt input and command output
func (r *RootCommand) SetIO(in io.Reader, out io.Writer) {
	r.in = in
	r.out = out
}

// setup loads the configuration and builds the logger once per invocation.
func (r *RootCommand) setup() error {
	if r.cfg != nil && r.logger != nil {
		return nil
	}

	cfg, err := config.Load(r.v.GetString("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if lvl := r.v.GetString("log-level"); lvl != "" {
		if _, err := logging.ParseLevel(lvl); err != nil {
			return err
		}
		cfg.Logging.Level = lvl
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	r.cfg = cfg
	r.logger = logger
	return nil
}

// openStore connects to and migrates the configured database. The returned
// close func is always safe to call.
func (r *RootCommand) openStore() (*database.AlertStore, func(), error) {
	db, err := database.Connect(r.cfg.Database.URL, logging.GormLevel(r.logger.GetLevel()))
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() {
		if err := database.Close(db); err != nil {
			r.logger.WithError(err).Warn("Failed to close database")
		}
	}
	if err := database.AutoMigrate(db); err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return database.NewAlertStore(db), closeFn, nil
}

func (r *RootCommand) ExecuteContext(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

// Execute runs the command line until SIGINT or SIGTERM and returns the exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func SetVersion(version, buildDate, gitCommit string) {
	cliVersion = version
	cliBuildDate = buildDate
	cliGitCommit = gitCommit
}
