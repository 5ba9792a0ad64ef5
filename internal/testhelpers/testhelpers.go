// Package testhelpers provides reusable testing utilities for ecs-alert.
//
// This package contains:
// - HTTP test helpers (creating requests, asserting responses)
// - Fakes for the alert source, delivery channel and acknowledgment adapter
// - A throwaway SQLite alert store
package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm/logger"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/database"
)

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  httptest.NewRequest(method, path, body),
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	if body := ctx.Recorder.Body.String(); !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Alert Store
// ========================================

// SetupTestStore opens a migrated SQLite store in a temp dir. A file database
// is used rather than :memory: so that every pooled connection sees the same data.
func SetupTestStore(t *testing.T) *database.AlertStore {
	t.Helper()
	db, err := database.Connect(filepath.Join(t.TempDir(), "ecs-alert.db"), logger.Silent)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return database.NewAlertStore(db)
}

// ========================================
// Fake Alert Source
// ========================================

// FakeSource serves a fixed chain of pages keyed by the marker that requests them
type FakeSource struct {
	mu      sync.Mutex
	pages   map[string]*alerts.Page
	errs    map[string]error
	Markers []string // markers requested, in order
}

// NewFakeSource chains pages so that page i is followed by page i+1. The first
// page is served for the empty marker.
func NewFakeSource(pages ...[]alerts.RawAlert) *FakeSource {
	s := &FakeSource{pages: map[string]*alerts.Page{}, errs: map[string]error{}}
	marker := ""
	for i, items := range pages {
		next := ""
		if i < len(pages)-1 {
			next = fmt.Sprintf("m%d", i+1)
		}
		s.pages[marker] = &alerts.Page{Alerts: items, NextMarker: next}
		marker = next
	}
	if len(pages) == 0 {
		s.pages[""] = &alerts.Page{}
	}
	return s
}

// WithPage serves page for marker, replacing any chained page
func (s *FakeSource) WithPage(marker string, page *alerts.Page) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[marker] = page
	return s
}

// FailAt makes the request for marker fail with err
func (s *FakeSource) FailAt(marker string, err error) *FakeSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[marker] = err
	return s
}

// FetchAlertPage implements alerts.Source
func (s *FakeSource) FetchAlertPage(ctx context.Context, marker string) (*alerts.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Markers = append(s.Markers, marker)
	if err, ok := s.errs[marker]; ok {
		return nil, err
	}
	page, ok := s.pages[marker]
	if !ok {
		return nil, fmt.Errorf("fake source: unknown marker %q", marker)
	}
	return page, nil
}

// Requests returns how many pages were requested
func (s *FakeSource) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Markers)
}

// ========================================
// Fake Delivery Channel
// ========================================

// FakeChannel records deliveries. FailFor makes Send fail for given alert ids.
type FakeChannel struct {
	mu       sync.Mutex
	name     string
	Sent     []database.Alert
	FailFor  map[string]error
	CheckErr error
}

// NewFakeChannel creates a channel that accepts everything
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{name: "fake", FailFor: map[string]error{}}
}

// Name implements the channel interface
func (c *FakeChannel) Name() string {
	return c.name
}

// Check implements the channel interface
func (c *FakeChannel) Check(ctx context.Context) error {
	return c.CheckErr
}

// Send implements alerts.Notifier
func (c *FakeChannel) Send(ctx context.Context, alert *database.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.FailFor[alert.AlertID]; ok {
		return err
	}
	c.Sent = append(c.Sent, *alert)
	return nil
}

// SentIDs returns the upstream ids delivered so far, in order
func (c *FakeChannel) SentIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.Sent))
	for _, a := range c.Sent {
		ids = append(ids, a.AlertID)
	}
	return ids
}

// ========================================
// Fake Acknowledger
// ========================================

// FakeAcker records acknowledgments as "endpoint/alertID"
type FakeAcker struct {
	mu      sync.Mutex
	Acked   []string
	FailFor map[string]error
}

// NewFakeAcker creates an acknowledger that always succeeds
func NewFakeAcker() *FakeAcker {
	return &FakeAcker{FailFor: map[string]error{}}
}

// AcknowledgeAlert implements alerts.Acknowledger
func (a *FakeAcker) AcknowledgeAlert(ctx context.Context, managementEndpoint, alertID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err, ok := a.FailFor[alertID]; ok {
		return err
	}
	a.Acked = append(a.Acked, managementEndpoint+"/"+alertID)
	return nil
}
