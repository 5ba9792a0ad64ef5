package alerts_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
	"github.com/ecs-alert/ecs-alert/internal/database"
	"github.com/ecs-alert/ecs-alert/internal/logging"
	"github.com/ecs-alert/ecs-alert/internal/testhelpers"
)

var clusterA = alerts.Cluster{Endpoint: "10.0.0.1", VDC: "vdc-a"}

func newCollector(source alerts.Source, store alerts.AlertWriter, policy *alerts.FilterPolicy) *alerts.Collector {
	return alerts.NewCollector(clusterA, source, store, policy, logging.Discard())
}

func TestCollector_AdmitDecisions(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	policy := alerts.NewFilterPolicy([]string{"ERROR"}, nil)
	c := newCollector(testhelpers.NewFakeSource(), store, policy)
	ctx := context.Background()

	result, err := c.Admit(ctx, testhelpers.NewRawAlertBuilder("a1").Build())
	if err != nil || result != alerts.Admitted {
		t.Fatalf("expected Admitted, got %s (%v)", result, err)
	}

	result, err = c.Admit(ctx, testhelpers.NewRawAlertBuilder("a1").Build())
	if err != nil || result != alerts.Duplicate {
		t.Errorf("expected Duplicate on re-observation, got %s (%v)", result, err)
	}

	result, err = c.Admit(ctx, testhelpers.NewRawAlertBuilder("a2").WithSeverity("INFO").Build())
	if err != nil || result != alerts.Filtered {
		t.Errorf("expected Filtered, got %s (%v)", result, err)
	}

	exists, _ := store.Exists(ctx, clusterA.Endpoint, "a2")
	if exists {
		t.Error("filtered alert must not be stored")
	}
}

func TestCollector_RowCopiesFields(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	c := newCollector(testhelpers.NewFakeSource(), store, alerts.NewFilterPolicy(nil, nil))
	ctx := context.Background()

	raw := testhelpers.NewRawAlertBuilder("a1").
		WithSymptomCode("2001").
		WithDescription("Node down").
		Acknowledged().
		Build()
	if _, err := c.Admit(ctx, raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, _ := store.SelectAll(ctx)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.VDC != "vdc-a" || row.ManagementEndpoint != "10.0.0.1" || row.AlertID != "a1" {
		t.Errorf("unexpected identity: %+v", row)
	}
	if row.SymptomCode != "2001" || row.Description != "Node down" || !row.AcknowledgedUpstream {
		t.Errorf("fields not copied verbatim: %+v", row)
	}
	if row.State() != database.StatePending {
		t.Errorf("expected pending row, got %s", row.State())
	}
}

// raceStore reports every alert as absent so that Insert observes the conflict
type raceStore struct {
	*database.AlertStore
}

func (raceStore) Exists(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestCollector_InsertRaceIsDuplicate(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, testhelpers.NewAlertBuilder(clusterA.Endpoint, "a1").Build()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := newCollector(testhelpers.NewFakeSource(), raceStore{store}, alerts.NewFilterPolicy(nil, nil))
	result, err := c.Admit(ctx, testhelpers.NewRawAlertBuilder("a1").Build())
	if err != nil {
		t.Fatalf("lost insert race must not be an error, got %v", err)
	}
	if result != alerts.Duplicate {
		t.Errorf("expected Duplicate, got %s", result)
	}
}

// Scenario 1: a single page with 3 alerts, one filtered out
func TestCollector_ScenarioSinglePageWithFilter(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	source := testhelpers.NewFakeSource([]alerts.RawAlert{
		testhelpers.NewRawAlertBuilder("1").WithSeverity("ERROR").Build(),
		testhelpers.NewRawAlertBuilder("2").WithSeverity("INFO").Build(),
		testhelpers.NewRawAlertBuilder("3").WithSeverity("CRITICAL").Build(),
	})
	c := newCollector(source, store, alerts.NewFilterPolicy([]string{"ERROR", "CRITICAL"}, nil))

	stats, err := c.CollectOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (alerts.CollectStats{Seen: 3, Admitted: 2, Filtered: 1}) {
		t.Errorf("unexpected stats %+v", stats)
	}

	pending, _ := store.SelectPending(context.Background())
	if len(pending) != 2 || pending[0].AlertID != "1" || pending[1].AlertID != "3" {
		t.Errorf("expected alerts 1 and 3 pending, got %+v", pending)
	}
}

// Scenario 2: the same feed collected twice adds nothing the second time
func TestCollector_ScenarioIdempotentCycles(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	source := testhelpers.NewFakeSource(
		testhelpers.RawAlerts("1", "2"),
		testhelpers.RawAlerts("3"),
	)
	c := newCollector(source, store, alerts.NewFilterPolicy(nil, nil))
	ctx := context.Background()

	first, err := c.CollectOnce(ctx)
	if err != nil || first.Admitted != 3 {
		t.Fatalf("first cycle: expected 3 admitted, got %+v (%v)", first, err)
	}

	second, err := c.CollectOnce(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Admitted != 0 || second.Duplicates != 3 {
		t.Errorf("second cycle: expected 3 duplicates, got %+v", second)
	}

	all, _ := store.SelectAll(ctx)
	if len(all) != 3 {
		t.Errorf("expected 3 rows after two cycles, got %d", len(all))
	}
}

// Scenario 3: a failure on page 2 keeps page 1's rows and the next cycle
// admits only the remainder
func TestCollector_ScenarioPartialCycleThenRetry(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	boom := errors.New("timeout")
	source := testhelpers.NewFakeSource(
		testhelpers.RawAlerts("1", "2"),
		testhelpers.RawAlerts("3", "4"),
	).FailAt("m1", boom)
	c := newCollector(source, store, alerts.NewFilterPolicy(nil, nil))
	ctx := context.Background()

	stats, err := c.CollectOnce(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected page error, got %v", err)
	}
	if stats.Admitted != 2 {
		t.Errorf("expected page 1 admitted before abort, got %+v", stats)
	}
	all, _ := store.SelectAll(ctx)
	if len(all) != 2 {
		t.Fatalf("expected page 1 rows to stay committed, got %d", len(all))
	}

	// Page 2 recovers on the next cycle
	retry := testhelpers.NewFakeSource(
		testhelpers.RawAlerts("1", "2"),
		testhelpers.RawAlerts("3", "4"),
	)
	c = newCollector(retry, store, alerts.NewFilterPolicy(nil, nil))

	stats, err = c.CollectOnce(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Admitted != 2 || stats.Duplicates != 2 {
		t.Errorf("expected only page 2 admitted on retry, got %+v", stats)
	}
}

func TestCollector_SameAlertIDAcrossClusters(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	ctx := context.Background()
	policy := alerts.NewFilterPolicy(nil, nil)

	for _, cl := range []alerts.Cluster{clusterA, {Endpoint: "10.0.0.2", VDC: "vdc-b"}} {
		c := alerts.NewCollector(cl, testhelpers.NewFakeSource(testhelpers.RawAlerts("42")), store, policy, logging.Discard())
		stats, err := c.CollectOnce(ctx)
		if err != nil || stats.Admitted != 1 {
			t.Fatalf("cluster %s: expected alert 42 admitted, got %+v (%v)", cl.Endpoint, stats, err)
		}
	}

	all, _ := store.SelectAll(ctx)
	if len(all) != 2 {
		t.Errorf("expected one row per cluster, got %d", len(all))
	}
}

func TestCollector_ConcurrentAdmitSameAlert(t *testing.T) {
	store := testhelpers.SetupTestStore(t)
	c := newCollector(testhelpers.NewFakeSource(), store, alerts.NewFilterPolicy(nil, nil))
	raw := testhelpers.NewRawAlertBuilder("shared").Build()

	var admitted, duplicates atomic.Int32
	testhelpers.ConcurrentTestWithTimeout(t, 10*time.Second, 8, func(int) {
		result, err := c.Admit(context.Background(), raw)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		switch result {
		case alerts.Admitted:
			admitted.Add(1)
		case alerts.Duplicate:
			duplicates.Add(1)
		}
	})

	if admitted.Load() != 1 || duplicates.Load() != 7 {
		t.Errorf("expected 1 admitted and 7 duplicates, got %d and %d", admitted.Load(), duplicates.Load())
	}
}
