package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotNotified is returned when clearing a row that was never notified
var ErrNotNotified = errors.New("alert has not been notified")

// ErrAlreadyNotified is returned when notifying a row a second time
var ErrAlreadyNotified = errors.New("alert has already been notified")

// ErrAlertNotFound is returned when a state transition targets a missing row
var ErrAlertNotFound = errors.New("alert not found")

// AlertStore is the durable table of admitted alerts. Every mutation is a single
// statement committed on its own; nothing spans more than one alert.
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a store on top of an open connection pool
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// DB returns the underlying gorm handle
func (s *AlertStore) DB() *gorm.DB {
	return s.db
}

// Exists reports whether the (endpoint, alert id) pair has already been admitted
func (s *AlertStore) Exists(ctx context.Context, managementEndpoint, alertID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Alert{}).
		Where("management_endpoint = ? AND alert_id = ?", managementEndpoint, alertID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up alert %s/%s: %w", managementEndpoint, alertID, err)
	}
	return count > 0, nil
}

// Insert writes a new row. A concurrent insert of the same key is not an error:
// the conflict is absorbed by the unique index and reported as AlreadyExists.
func (s *AlertStore) Insert(ctx context.Context, alert *Alert) (InsertResult, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	alert.Notified, alert.NotifiedAt = false, nil
	alert.UpstreamCleared, alert.ClearedAt = false, nil

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "management_endpoint"}, {Name: "alert_id"}},
			DoNothing: true,
		}).
		Create(alert)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return AlreadyExists, nil
		}
		return Inserted, fmt.Errorf("failed to insert alert %s/%s: %w", alert.ManagementEndpoint, alert.AlertID, result.Error)
	}
	if result.RowsAffected == 0 {
		return AlreadyExists, nil
	}
	return Inserted, nil
}

// SelectPending returns rows not yet notified in insertion order
func (s *AlertStore) SelectPending(ctx context.Context) ([]Alert, error) {
	return s.selectWhere(ctx, "notified = ?", false)
}

// SelectNotified returns rows that have been notified in insertion order
func (s *AlertStore) SelectNotified(ctx context.Context) ([]Alert, error) {
	return s.selectWhere(ctx, "notified = ?", true)
}

// SelectAll returns every row in insertion order
func (s *AlertStore) SelectAll(ctx context.Context) ([]Alert, error) {
	return s.selectWhere(ctx, "")
}

func (s *AlertStore) selectWhere(ctx context.Context, query string, args ...interface{}) ([]Alert, error) {
	tx := s.db.WithContext(ctx).Order("id asc")
	if query != "" {
		tx = tx.Where(query, args...)
	}

	alerts := []Alert{}
	if err := tx.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to select alerts: %w", err)
	}
	return alerts, nil
}

// MarkNotified records that a notification was dispatched for the row. Only
// pending rows move; notified_at is never rewritten.
func (s *AlertStore) MarkNotified(ctx context.Context, id uint, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&Alert{}).
		Where("id = ? AND notified = ?", id, false).
		Updates(map[string]interface{}{
			"notified":    true,
			"notified_at": at.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark alert %d notified: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&Alert{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up alert %d: %w", id, err)
		}
		if count > 0 {
			return fmt.Errorf("failed to mark alert %d notified: %w", id, ErrAlreadyNotified)
		}
		return fmt.Errorf("failed to mark alert %d notified: %w", id, ErrAlertNotFound)
	}
	return nil
}

// MarkCleared records a completed upstream acknowledgment. Only notified rows
// can be cleared.
func (s *AlertStore) MarkCleared(ctx context.Context, id uint, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&Alert{}).
		Where("id = ? AND notified = ?", id, true).
		Updates(map[string]interface{}{
			"upstream_cleared": true,
			"cleared_at":       at.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark alert %d cleared: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to mark alert %d cleared: %w", id, ErrNotNotified)
	}
	return nil
}

// ClearAll empties the table and returns the number of deleted rows
func (s *AlertStore) ClearAll(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Alert{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Counts summarizes the table by lifecycle state
func (s *AlertStore) Counts(ctx context.Context) (*AlertCounts, error) {
	counts := &AlertCounts{}
	queries := []struct {
		dest  *int64
		query string
		args  []interface{}
	}{
		{&counts.Total, "", nil},
		{&counts.Pending, "notified = ?", []interface{}{false}},
		{&counts.Notified, "notified = ?", []interface{}{true}},
		{&counts.Cleared, "upstream_cleared = ?", []interface{}{true}},
	}

	for _, q := range queries {
		tx := s.db.WithContext(ctx).Model(&Alert{})
		if q.query != "" {
			tx = tx.Where(q.query, q.args...)
		}
		if err := tx.Count(q.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count alerts: %w", err)
		}
	}
	return counts, nil
}

// Ping checks that the underlying connection pool answers
func (s *AlertStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
