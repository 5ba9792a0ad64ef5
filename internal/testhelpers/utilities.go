package testhelpers

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ecs-alert/ecs-alert/internal/database"
)

// ========================================
// JSON Assertion Helpers
// ========================================

// AssertJSONArrayLength checks the length of a JSON array
func AssertJSONArrayLength(t *testing.T, jsonStr string, expectedLen int, msg string) {
	t.Helper()

	var arr []interface{}
	if err := json.Unmarshal([]byte(jsonStr), &arr); err != nil {
		t.Fatalf("%s: failed to parse JSON array: %v", msg, err)
	}
	if len(arr) != expectedLen {
		t.Errorf("%s: expected array length %d, got %d", msg, expectedLen, len(arr))
	}
}

// ========================================
// Concurrent Testing Helpers
// ========================================

// ConcurrentTestWithTimeout runs fn on several goroutines and fails if they
// do not all finish in time
func ConcurrentTestWithTimeout(t *testing.T, timeout time.Duration, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("concurrent test did not complete within %v", timeout)
	}
}

// ========================================
// Lifecycle Helpers
// ========================================

// AssertTimeAfter checks if a time is after another time
func AssertTimeAfter(t *testing.T, actual, reference time.Time, msg string) {
	t.Helper()
	if !actual.After(reference) {
		t.Errorf("%s: expected time %v to be after %v", msg, actual, reference)
	}
}

// AssertLifecycle checks the flag/timestamp pairing and ordering of a row:
// notifiedAt is set iff notified, clearedAt iff cleared, cleared implies
// notified, and createdAt < notifiedAt < clearedAt.
func AssertLifecycle(t *testing.T, a database.Alert) {
	t.Helper()

	if a.Notified != (a.NotifiedAt != nil) {
		t.Errorf("alert %s: notified=%v but notifiedAt=%v", a.AlertID, a.Notified, a.NotifiedAt)
	}
	if a.UpstreamCleared != (a.ClearedAt != nil) {
		t.Errorf("alert %s: cleared=%v but clearedAt=%v", a.AlertID, a.UpstreamCleared, a.ClearedAt)
	}
	if a.UpstreamCleared && !a.Notified {
		t.Errorf("alert %s: cleared without being notified", a.AlertID)
	}
	if a.NotifiedAt != nil {
		AssertTimeAfter(t, *a.NotifiedAt, a.CreatedAt, "alert "+a.AlertID+" notifiedAt")
	}
	if a.ClearedAt != nil && a.NotifiedAt != nil {
		AssertTimeAfter(t, *a.ClearedAt, *a.NotifiedAt, "alert "+a.AlertID+" clearedAt")
	}
}
