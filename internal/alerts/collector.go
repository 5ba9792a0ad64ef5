package alerts

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/database"
	"github.com/ecs-alert/ecs-alert/internal/utils"
)

// logDescriptionLen caps upstream descriptions in debug logs
const logDescriptionLen = 200

// AdmitResult is the admission decision for one raw alert
type AdmitResult int

const (
	Admitted AdmitResult = iota
	Duplicate
	Filtered
)

func (r AdmitResult) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	case Filtered:
		return "filtered"
	default:
		return fmt.Sprintf("AdmitResult(%d)", int(r))
	}
}

// CollectStats summarizes one collection cycle for a cluster
type CollectStats struct {
	Seen       int
	Admitted   int
	Duplicates int
	Filtered   int
}

// Collector pulls a cluster's alert feed into the store
type Collector struct {
	cluster Cluster
	fetcher *Fetcher
	store   AlertWriter
	policy  *FilterPolicy
	logger  logrus.FieldLogger
}

func NewCollector(cluster Cluster, source Source, store AlertWriter, policy *FilterPolicy, logger logrus.FieldLogger) *Collector {
	return &Collector{
		cluster: cluster,
		fetcher: NewFetcher(source),
		store:   store,
		policy:  policy,
		logger:  logger.WithField("cluster", cluster.Endpoint),
	}
}

// Cluster returns the cluster this collector reads from
func (c *Collector) Cluster() Cluster {
	return c.cluster
}

// Admit decides whether raw is stored. An alert already on file is a Duplicate
// whether it was found up front or lost the insert race to another writer.
func (c *Collector) Admit(ctx context.Context, raw RawAlert) (AdmitResult, error) {
	exists, err := c.store.Exists(ctx, c.cluster.Endpoint, raw.ID)
	if err != nil {
		return Duplicate, err
	}
	if exists {
		return Duplicate, nil
	}

	if !c.policy.Admits(raw.Severity, raw.SymptomCode) {
		c.logger.WithFields(logrus.Fields{
			"alert_id":     raw.ID,
			"severity":     raw.Severity,
			"symptom_code": raw.SymptomCode,
			"description":  utils.EscapeForLogging(raw.Description, logDescriptionLen),
		}).Debug("Alert filtered out")
		return Filtered, nil
	}

	result, err := c.store.Insert(ctx, c.toRow(raw))
	if err != nil {
		return Duplicate, err
	}
	if result == database.AlreadyExists {
		return Duplicate, nil
	}
	c.logger.WithFields(logrus.Fields{
		"alert_id":    raw.ID,
		"severity":    raw.Severity,
		"description": utils.EscapeForLogging(raw.Description, logDescriptionLen),
	}).Debug("Alert admitted")
	return Admitted, nil
}

func (c *Collector) toRow(raw RawAlert) *database.Alert {
	return &database.Alert{
		VDC:                  c.cluster.VDC,
		ManagementEndpoint:   c.cluster.Endpoint,
		AlertID:              raw.ID,
		AcknowledgedUpstream: raw.Acknowledged,
		Description:          raw.Description,
		Namespace:            raw.Namespace,
		Severity:             raw.Severity,
		SymptomCode:          raw.SymptomCode,
		AlertTimestamp:       raw.Timestamp,
	}
}

// CollectOnce runs one full cycle: every page is fetched and every alert is
// admitted or skipped as it arrives. A fetch or store error aborts the rest of
// the cycle; rows written before it stay written.
func (c *Collector) CollectOnce(ctx context.Context) (CollectStats, error) {
	var stats CollectStats

	for raw, err := range c.fetcher.Alerts(ctx) {
		if err != nil {
			return stats, err
		}
		stats.Seen++

		result, err := c.Admit(ctx, raw)
		if err != nil {
			return stats, fmt.Errorf("failed to admit alert %s: %w", raw.ID, err)
		}
		switch result {
		case Admitted:
			stats.Admitted++
		case Duplicate:
			stats.Duplicates++
		case Filtered:
			stats.Filtered++
		}
	}

	return stats, nil
}
