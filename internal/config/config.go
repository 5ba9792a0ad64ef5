package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/ecs-alert/ecs-alert/internal/logging"
)

// Delivery systems
const (
	DeliverySMTP     = "smtp"
	DeliverySendGrid = "sendgrid"
	DeliverySlack    = "slack"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application
type Config struct {
	Logging   LoggingConfig     `yaml:"logging"`
	Database  DatabaseConfig    `yaml:"database"`
	Clusters  []ClusterConfig   `yaml:"clusters"`
	VDCLookup map[string]string `yaml:"vdc_lookup"` // management host -> VDC name
	Polling   PollingConfig     `yaml:"polling"`
	Filter    FilterConfig      `yaml:"filter"`

	// Delivery selects the single active notification channel
	Delivery               string `yaml:"delivery"`
	AcknowledgeAfterNotify bool   `yaml:"acknowledge_after_notify"`

	SMTP     SMTPConfig     `yaml:"smtp"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
	Slack    SlackConfig    `yaml:"slack"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the alert store. A postgres:// URL uses PostgreSQL,
// anything else is treated as a SQLite file path.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// ClusterConfig is one monitored ECS management endpoint
type ClusterConfig struct {
	Protocol           string `yaml:"protocol"`
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	VDC                string `yaml:"vdc"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// BaseURL returns the management API root, e.g. https://10.1.1.1:4443
func (c ClusterConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}

// PollingConfig controls the per-cluster collection loop
type PollingConfig struct {
	AlertsIntervalSeconds int     `yaml:"alerts_interval_seconds"`
	PageSize              int     `yaml:"page_size"`
	RequestsPerSecond     float64 `yaml:"requests_per_second"` // 0 disables rate limiting
	TimeoutSeconds        int     `yaml:"timeout_seconds"`     // 0 means no timeout
}

// FilterConfig holds the admission allow-lists. An empty list admits every value.
type FilterConfig struct {
	Severities   []string `yaml:"severities"`
	SymptomCodes []string `yaml:"symptom_codes"`
}

// SMTPConfig configures the SMTP delivery channel
type SMTPConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	AuthenticationRequired bool   `yaml:"authentication_required"`
	From                   string `yaml:"from"`
	To                     string `yaml:"to"`
	PollingIntervalSeconds int    `yaml:"polling_interval_seconds"`
}

// SendGridConfig configures the SendGrid delivery channel
type SendGridConfig struct {
	APIKey                 string `yaml:"api_key"`
	From                   string `yaml:"from"`
	To                     string `yaml:"to"`
	PollingIntervalSeconds int    `yaml:"polling_interval_seconds"`
}

// SlackConfig configures the Slack incoming-webhook delivery channel
type SlackConfig struct {
	WebhookURL             string `yaml:"webhook_url"`
	InsecureSkipVerify     bool   `yaml:"insecure_skip_verify"`
	PollingIntervalSeconds int    `yaml:"polling_interval_seconds"`
}

// HTTPConfig controls the optional read-only reporting API
type HTTPConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	AdminUsername  string `yaml:"admin_username"`
	AdminPassword  string `yaml:"admin_password"`
	JWTSecret      string `yaml:"jwt_secret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours"`
}

// Load reads the YAML file at path, applies defaults and environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no configuration file path provided", ErrInvalid)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, applies defaults and environment overrides, and validates
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = "ecs-alert.db"
	}
	if cfg.Polling.AlertsIntervalSeconds == 0 {
		cfg.Polling.AlertsIntervalSeconds = 60
	}
	if cfg.Polling.PageSize == 0 {
		cfg.Polling.PageSize = 100
	}
	for i := range cfg.Clusters {
		if cfg.Clusters[i].Protocol == "" {
			cfg.Clusters[i].Protocol = "https"
		}
		if cfg.Clusters[i].Port == 0 {
			cfg.Clusters[i].Port = 4443
		}
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 25
	}
	if cfg.SMTP.PollingIntervalSeconds == 0 {
		cfg.SMTP.PollingIntervalSeconds = 60
	}
	if cfg.SendGrid.PollingIntervalSeconds == 0 {
		cfg.SendGrid.PollingIntervalSeconds = 60
	}
	if cfg.Slack.PollingIntervalSeconds == 0 {
		cfg.Slack.PollingIntervalSeconds = 60
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.HTTP.AdminUsername == "" {
		cfg.HTTP.AdminUsername = "admin"
	}
	if cfg.HTTP.JWTExpiryHours == 0 {
		cfg.HTTP.JWTExpiryHours = 24
	}
}

// applyEnvOverrides lets secrets live outside the config file
func applyEnvOverrides(cfg *Config) {
	cfg.Logging.Level = getEnvOrDefault("ECS_ALERT_LOG_LEVEL", cfg.Logging.Level)
	cfg.Database.URL = getEnvOrDefault("ECS_ALERT_DATABASE_URL", cfg.Database.URL)
	cfg.SMTP.Password = getEnvOrDefault("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SendGrid.APIKey = getEnvOrDefault("SENDGRID_API_KEY", cfg.SendGrid.APIKey)
	cfg.Slack.WebhookURL = getEnvOrDefault("SLACK_WEBHOOK_URL", cfg.Slack.WebhookURL)
	cfg.HTTP.AdminPassword = getEnvOrDefault("ECS_ALERT_ADMIN_PASSWORD", cfg.HTTP.AdminPassword)
	cfg.HTTP.JWTSecret = getEnvOrDefault("ECS_ALERT_JWT_SECRET", cfg.HTTP.JWTSecret)
	cfg.HTTP.Port = getEnvAsIntOrDefault("ECS_ALERT_HTTP_PORT", cfg.HTTP.Port)
}

// Validate reports every problem found, not just the first
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, err)
	}

	if !slices.Contains([]string{DeliverySMTP, DeliverySendGrid, DeliverySlack}, c.Delivery) {
		result = multierror.Append(result, fmt.Errorf("delivery must be set to one of smtp, sendgrid or slack, got %q", c.Delivery))
	}

	if len(c.Clusters) == 0 {
		result = multierror.Append(result, errors.New("at least one ECS connection must be configured"))
	}
	for i, cl := range c.Clusters {
		if err := cl.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("clusters[%d]: %w", i, err))
		}
	}

	if c.Polling.AlertsIntervalSeconds < 0 {
		result = multierror.Append(result, errors.New("polling.alerts_interval_seconds must be greater than 0"))
	}
	if c.Polling.PageSize < 0 || c.Polling.RequestsPerSecond < 0 || c.Polling.TimeoutSeconds < 0 {
		result = multierror.Append(result, errors.New("polling values must not be negative"))
	}

	switch c.Delivery {
	case DeliverySMTP:
		if c.SMTP.Host == "" {
			result = multierror.Append(result, errors.New("smtp.host is required"))
		}
		if c.SMTP.From == "" || c.SMTP.To == "" {
			result = multierror.Append(result, errors.New("smtp.from and smtp.to are required"))
		}
		if c.SMTP.AuthenticationRequired && (c.SMTP.User == "" || c.SMTP.Password == "") {
			result = multierror.Append(result, errors.New("the SMTP authentication required is set but the user or password is not set"))
		}
		if c.SMTP.PollingIntervalSeconds <= 0 {
			result = multierror.Append(result, errors.New("smtp.polling_interval_seconds must be greater than 0"))
		}
	case DeliverySendGrid:
		if c.SendGrid.APIKey == "" {
			result = multierror.Append(result, errors.New("sendgrid.api_key is required"))
		}
		if c.SendGrid.From == "" || c.SendGrid.To == "" {
			result = multierror.Append(result, errors.New("sendgrid.from and sendgrid.to are required"))
		}
		if c.SendGrid.PollingIntervalSeconds <= 0 {
			result = multierror.Append(result, errors.New("sendgrid.polling_interval_seconds must be greater than 0"))
		}
	case DeliverySlack:
		if c.Slack.WebhookURL == "" {
			result = multierror.Append(result, errors.New("slack.webhook_url is required"))
		}
		if c.Slack.PollingIntervalSeconds <= 0 {
			result = multierror.Append(result, errors.New("slack.polling_interval_seconds must be greater than 0"))
		}
	}

	if c.HTTP.Enabled && c.HTTP.AdminPassword == "" {
		result = multierror.Append(result, errors.New("http.admin_password (or ECS_ALERT_ADMIN_PASSWORD) is required when the HTTP API is enabled"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c ClusterConfig) validate() error {
	var result *multierror.Error
	if c.Protocol != "http" && c.Protocol != "https" {
		result = multierror.Append(result, fmt.Errorf("the ECS management protocol must be http or https, got %q", c.Protocol))
	}
	if c.Host == "" {
		result = multierror.Append(result, errors.New("the ECS management host is not configured"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("the ECS management port %d is invalid", c.Port))
	}
	if c.User == "" {
		result = multierror.Append(result, errors.New("the ECS management user is not configured"))
	}
	if c.Password == "" {
		result = multierror.Append(result, errors.New("the ECS management user's password is not configured"))
	}
	return result.ErrorOrNil()
}

// CollectInterval is the sleep between alert collection cycles of one cluster
func (c *Config) CollectInterval() time.Duration {
	return time.Duration(c.Polling.AlertsIntervalSeconds) * time.Second
}

// DispatchInterval is the sleep between dispatcher cycles. Each delivery channel
// carries its own interval; only the active one applies.
func (c *Config) DispatchInterval() time.Duration {
	var seconds int
	switch c.Delivery {
	case DeliverySMTP:
		seconds = c.SMTP.PollingIntervalSeconds
	case DeliverySendGrid:
		seconds = c.SendGrid.PollingIntervalSeconds
	case DeliverySlack:
		seconds = c.Slack.PollingIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// RequestTimeout is the HTTP client timeout for ECS calls; zero means none
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Polling.TimeoutSeconds) * time.Second
}

// LookupVDC returns the configured VDC name for a management host
func (c *Config) LookupVDC(host string) (string, bool) {
	name, ok := c.VDCLookup[strings.TrimSpace(host)]
	return name, ok && name != ""
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the value of an environment variable as an integer or a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
