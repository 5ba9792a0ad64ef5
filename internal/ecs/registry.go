package ecs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/cache"
	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/ratelimit"
)

// ErrUnknownCluster is returned for an endpoint that is not configured
var ErrUnknownCluster = errors.New("unknown ECS management endpoint")

// Registry holds one client per configured cluster and routes
// acknowledgments to the cluster an alert came from.
type Registry struct {
	clients map[string]*Client
	order   []*Client
	mu      sync.Mutex
	vdcs    map[string]string
	tokens  *cache.Cache[string]
	lookup  func(host string) (string, bool)
	logger  logrus.FieldLogger
}

// NewRegistry builds clients for every cluster in cfg. Nothing is dialed yet.
func NewRegistry(cfg *config.Config, logger logrus.FieldLogger) (*Registry, error) {
	r := &Registry{
		clients: make(map[string]*Client, len(cfg.Clusters)),
		vdcs:    make(map[string]string, len(cfg.Clusters)),
		tokens:  cache.New[string](TokenTTL, 10*time.Minute),
		lookup:  cfg.LookupVDC,
		logger:  logger,
	}

	for _, cl := range cfg.Clusters {
		if _, dup := r.clients[cl.Host]; dup {
			r.Close()
			return nil, fmt.Errorf("ECS management host %s is configured more than once", cl.Host)
		}
		limiter := ratelimit.New(cfg.Polling.RequestsPerSecond, 1)
		if limiter.Enabled() {
			logger.WithField("cluster", cl.Host).Debugf("Alert page requests limited to %.2f/s", cfg.Polling.RequestsPerSecond)
		}
		client := NewClient(cl, Options{
			PageSize: cfg.Polling.PageSize,
			Timeout:  cfg.RequestTimeout(),
			Limiter:  limiter,
			Tokens:   r.tokens,
			Logger:   logger,
		})
		r.clients[cl.Host] = client
		r.order = append(r.order, client)
		if cl.VDC != "" {
			r.vdcs[cl.Host] = cl.VDC
		}
	}
	return r, nil
}

// Clients returns the clients in configuration order
func (r *Registry) Clients() []*Client {
	return r.order
}

// Connect logs in to every cluster and resolves its VDC name. Any failure is
// returned; the monitor does not start against an unreachable cluster.
func (r *Registry) Connect(ctx context.Context) error {
	for _, c := range r.order {
		if _, err := c.Login(ctx); err != nil {
			return fmt.Errorf("failed to connect to ECS %s: %w", c.BaseURL(), err)
		}
		r.logger.WithField("cluster", c.Endpoint()).Infof("Connected to ECS management API, VDC %s", r.resolveVDC(ctx, c))
	}
	return nil
}

// Cluster returns the identity recorded on alerts collected from c
func (r *Registry) Cluster(ctx context.Context, c *Client) alerts.Cluster {
	return alerts.Cluster{Endpoint: c.Endpoint(), VDC: r.resolveVDC(ctx, c)}
}

// resolveVDC picks the display name: explicit config, then the lookup table,
// then the cluster itself, then the host.
func (r *Registry) resolveVDC(ctx context.Context, c *Client) string {
	host := c.Endpoint()

	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.vdcs[host]; ok {
		return name
	}
	name, ok := r.lookup(host)
	if !ok {
		var err error
		if name, err = c.LocalVDCName(ctx); err != nil {
			r.logger.WithField("cluster", host).WithError(err).Warn("Unable to resolve VDC name, using host")
			return host
		}
	}
	r.vdcs[host] = name
	return name
}

// AcknowledgeAlert routes the acknowledgment to the cluster identified by endpoint
func (r *Registry) AcknowledgeAlert(ctx context.Context, managementEndpoint, alertID string) error {
	c, ok := r.clients[managementEndpoint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCluster, managementEndpoint)
	}
	return c.AcknowledgeAlert(ctx, alertID)
}

// LogoutAll ends every cached session. Errors are logged, not returned.
func (r *Registry) LogoutAll(ctx context.Context) {
	for _, c := range r.order {
		if err := c.Logout(ctx); err != nil {
			r.logger.WithField("cluster", c.Endpoint()).WithError(err).Warn("ECS logout failed")
		}
	}
}

// Close stops the shared token cache sweep
func (r *Registry) Close() {
	r.tokens.Stop()
}
