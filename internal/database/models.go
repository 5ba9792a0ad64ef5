package database

import (
	"time"
)

// Alert is one admitted ECS alert and its notification lifecycle.
// (ManagementEndpoint, AlertID) is unique: the same upstream id may exist on several clusters.
type Alert struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	VDC                  string     `gorm:"type:varchar(255);not null" json:"vdc"`
	ManagementEndpoint   string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_ecs_alerts_endpoint_alert,priority:1" json:"management_endpoint"`
	AlertID              string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_ecs_alerts_endpoint_alert,priority:2" json:"alert_id"`
	AcknowledgedUpstream bool       `gorm:"not null;default:false" json:"acknowledged_upstream"`
	Description          string     `gorm:"type:text;not null" json:"description"`
	Namespace            string     `gorm:"type:varchar(255)" json:"namespace"`
	Severity             string     `gorm:"type:varchar(32);index" json:"severity"`
	SymptomCode          string     `gorm:"type:varchar(64)" json:"symptom_code"`
	AlertTimestamp       string     `gorm:"type:varchar(64)" json:"alert_timestamp"`
	Notified             bool       `gorm:"not null;default:false;index" json:"notified"`
	UpstreamCleared      bool       `gorm:"not null;default:false" json:"upstream_cleared"`
	CreatedAt            time.Time  `json:"created_at"`
	NotifiedAt           *time.Time `json:"notified_at,omitempty"`
	ClearedAt            *time.Time `json:"cleared_at,omitempty"`
}

func (Alert) TableName() string {
	return "ecs_alerts"
}

// State is the lifecycle position of an alert row
type State string

const (
	StatePending  State = "pending"
	StateNotified State = "notified"
	StateCleared  State = "cleared"
)

// State derives the lifecycle position from the flags
func (a *Alert) State() State {
	switch {
	case a.UpstreamCleared:
		return StateCleared
	case a.Notified:
		return StateNotified
	default:
		return StatePending
	}
}

// InsertResult tells the collector whether a row was written
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyExists
)

func (r InsertResult) String() string {
	if r == AlreadyExists {
		return "already_exists"
	}
	return "inserted"
}

// AlertCounts summarizes the table for reporting
type AlertCounts struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Notified int64 `json:"notified"`
	Cleared  int64 `json:"cleared"`
}
