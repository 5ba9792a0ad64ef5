package ecs

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/cache"
	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/ratelimit"
)

// AuthTokenHeader carries the ECS management session token
const AuthTokenHeader = "X-SDS-AUTH-TOKEN"

// TokenTTL bounds how long a session token is reused before logging in again
const TokenTTL = time.Hour

// ErrUnauthorized is returned when the cluster rejects the credentials
var ErrUnauthorized = errors.New("ECS management API rejected the credentials")

// StatusError is a non-2xx response from the management API
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP error %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Options tune a Client. Zero values mean no timeout, no rate limit and a
// private token cache.
type Options struct {
	PageSize int
	Timeout  time.Duration
	Limiter  *ratelimit.Limiter
	Tokens   *cache.Cache[string]
	Logger   logrus.FieldLogger
}

// Client talks to one ECS management endpoint
type Client struct {
	cfg      config.ClusterConfig
	baseURL  string
	http     *http.Client
	tokens   *cache.Cache[string]
	limiter  *ratelimit.Limiter
	pageSize int
	logger   logrus.FieldLogger
}

func NewClient(cfg config.ClusterConfig, opts Options) *Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = cache.New[string](TokenTTL, 0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		cfg:      cfg,
		baseURL:  cfg.BaseURL(),
		http:     &http.Client{Timeout: opts.Timeout, Transport: transport},
		tokens:   tokens,
		limiter:  opts.Limiter,
		pageSize: opts.PageSize,
		logger:   logger.WithField("cluster", cfg.Host),
	}
}

// Endpoint is the management host; it is the cluster half of the alert key
func (c *Client) Endpoint() string {
	return c.cfg.Host
}

// BaseURL returns the management API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) tokenKey() string {
	return c.baseURL + "|" + c.cfg.User
}

// Login authenticates with basic auth and caches the session token
func (c *Client) Login(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/login", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("login to %s failed: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("login to %s: %w", c.baseURL, ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Method: http.MethodGet, Path: "/login", StatusCode: resp.StatusCode}
	}

	token := resp.Header.Get(AuthTokenHeader)
	if token == "" {
		return "", fmt.Errorf("login to %s returned no %s header", c.baseURL, AuthTokenHeader)
	}

	c.tokens.Set(c.tokenKey(), token)
	c.logger.Debugf("Auth token cached (TTL: %v)", TokenTTL)
	return token, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(c.tokenKey()); ok {
		return token, nil
	}
	return c.Login(ctx)
}

// do sends an authenticated request. A 401 drops the cached token and retries
// once with a fresh login.
func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}

		body, status, err := c.send(ctx, method, path, query, token)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			c.tokens.Delete(c.tokenKey())
			if attempt == 0 {
				c.logger.Debug("Session token rejected, logging in again")
				continue
			}
			return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
		}
		if status < 200 || status > 299 {
			return nil, &StatusError{Method: method, Path: path, StatusCode: status, Body: string(body)}
		}
		return body, nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, token string) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(AuthTokenHeader, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// FetchAlertPage returns one page of the dashboard alert feed
func (c *Client) FetchAlertPage(ctx context.Context, marker string) (*alerts.Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	query := url.Values{}
	if c.pageSize > 0 {
		query.Set("limit", strconv.Itoa(c.pageSize))
	}
	if marker != "" {
		query.Set("marker", marker)
	}

	body, err := c.do(ctx, http.MethodGet, "/vdc/alerts", query)
	if err != nil {
		return nil, err
	}

	var resp alertsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse alert page: %w", err)
	}
	return resp.page(), nil
}

// AcknowledgeAlert clears an alert on the cluster
func (c *Client) AcknowledgeAlert(ctx context.Context, alertID string) error {
	path := "/vdc/alerts/" + url.PathEscape(alertID) + "/acknowledgment"
	if _, err := c.do(ctx, http.MethodPut, path, nil); err != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", alertID, err)
	}
	return nil
}

// LocalVDCName asks the cluster for the name of its local VDC
func (c *Client) LocalVDCName(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/object/vdcs/vdc/local", nil)
	if err != nil {
		return "", err
	}

	var vdc vdcResponse
	if err := json.Unmarshal(body, &vdc); err != nil {
		return "", fmt.Errorf("failed to parse VDC response: %w", err)
	}
	if vdc.Name == "" {
		return "", fmt.Errorf("cluster %s reported an empty VDC name", c.cfg.Host)
	}
	return vdc.Name, nil
}

// Logout ends the cached session, if any
func (c *Client) Logout(ctx context.Context) error {
	token, ok := c.tokens.Get(c.tokenKey())
	if !ok {
		return nil
	}
	c.tokens.Delete(c.tokenKey())

	_, status, err := c.send(ctx, http.MethodGet, "/logout", nil, token)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusUnauthorized {
		return &StatusError{Method: http.MethodGet, Path: "/logout", StatusCode: status}
	}
	return nil
}
