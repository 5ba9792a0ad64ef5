package alerts

import (
	"context"
	"time"

	"github.com/ecs-alert/ecs-alert/internal/database"
)

// RawAlert is one alert as reported by a cluster, before admission
type RawAlert struct {
	ID           string
	Acknowledged bool
	Description  string
	Namespace    string
	Severity     string
	SymptomCode  string
	Timestamp    string
}

// Page is one slice of a cluster's alert feed. An empty NextMarker ends the stream.
type Page struct {
	Alerts     []RawAlert
	NextMarker string
}

// Source retrieves one page of alerts. marker is empty for the first page.
type Source interface {
	FetchAlertPage(ctx context.Context, marker string) (*Page, error)
}

// Cluster identifies where admitted alerts came from
type Cluster struct {
	Endpoint string // management host, part of the dedup key
	VDC      string // display name
}

// AlertWriter is the store surface used during collection
type AlertWriter interface {
	Exists(ctx context.Context, managementEndpoint, alertID string) (bool, error)
	Insert(ctx context.Context, alert *database.Alert) (database.InsertResult, error)
}

// AlertLifecycle is the store surface used during dispatch
type AlertLifecycle interface {
	SelectPending(ctx context.Context) ([]database.Alert, error)
	MarkNotified(ctx context.Context, id uint, at time.Time) error
	MarkCleared(ctx context.Context, id uint, at time.Time) error
}

// Notifier delivers a single alert through the configured channel
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert *database.Alert) error
}

// Acknowledger clears an alert on the cluster it came from
type Acknowledger interface {
	AcknowledgeAlert(ctx context.Context, managementEndpoint, alertID string) error
}
