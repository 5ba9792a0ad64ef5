package testhelpers

import (
	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/database"
)

// ========================================
// Raw Alert Builder
// ========================================

// RawAlertBuilder builds alerts as a cluster would report them
type RawAlertBuilder struct {
	alert alerts.RawAlert
}

// NewRawAlertBuilder creates a builder with an ERROR alert
func NewRawAlertBuilder(id string) *RawAlertBuilder {
	return &RawAlertBuilder{
		alert: alerts.RawAlert{
			ID:          id,
			Description: "Disk failure on node " + id,
			Namespace:   "ns1",
			Severity:    "ERROR",
			SymptomCode: "1005",
			Timestamp:   "2024-01-01T00:00:00Z",
		},
	}
}

// WithSeverity sets the severity
func (b *RawAlertBuilder) WithSeverity(severity string) *RawAlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithSymptomCode sets the symptom code
func (b *RawAlertBuilder) WithSymptomCode(code string) *RawAlertBuilder {
	b.alert.SymptomCode = code
	return b
}

// WithDescription sets the description
func (b *RawAlertBuilder) WithDescription(desc string) *RawAlertBuilder {
	b.alert.Description = desc
	return b
}

// Acknowledged marks the alert acknowledged upstream
func (b *RawAlertBuilder) Acknowledged() *RawAlertBuilder {
	b.alert.Acknowledged = true
	return b
}

// Build returns the constructed alert
func (b *RawAlertBuilder) Build() alerts.RawAlert {
	return b.alert
}

// RawAlerts builds one ERROR alert per id
func RawAlerts(ids ...string) []alerts.RawAlert {
	out := make([]alerts.RawAlert, 0, len(ids))
	for _, id := range ids {
		out = append(out, NewRawAlertBuilder(id).Build())
	}
	return out
}

// ========================================
// Stored Alert Builder
// ========================================

// AlertBuilder builds database.Alert rows
type AlertBuilder struct {
	alert database.Alert
}

// NewAlertBuilder creates a builder for a pending row
func NewAlertBuilder(endpoint, alertID string) *AlertBuilder {
	return &AlertBuilder{
		alert: database.Alert{
			VDC:                "vdc1",
			ManagementEndpoint: endpoint,
			AlertID:            alertID,
			Description:        "Disk failure",
			Namespace:          "ns1",
			Severity:           "ERROR",
			SymptomCode:        "1005",
			AlertTimestamp:     "2024-01-01T00:00:00Z",
		},
	}
}

// WithVDC sets the VDC name
func (b *AlertBuilder) WithVDC(vdc string) *AlertBuilder {
	b.alert.VDC = vdc
	return b
}

// WithSeverity sets the severity
func (b *AlertBuilder) WithSeverity(severity string) *AlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithDescription sets the description
func (b *AlertBuilder) WithDescription(desc string) *AlertBuilder {
	b.alert.Description = desc
	return b
}

// Build returns the constructed row
func (b *AlertBuilder) Build() *database.Alert {
	a := b.alert
	return &a
}
