package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordUpdateCheck(t *testing.T) {
	before := testutil.ToFloat64(updateChecks.WithLabelValues(OutcomeFeedError))
	RecordUpdateCheck(OutcomeFeedError)
	RecordUpdateCheck(OutcomeFeedError)

	if got := testutil.ToFloat64(updateChecks.WithLabelValues(OutcomeFeedError)) - before; got != 2 {
		t.Errorf("feed_error delta = %v, want 2", got)
	}
}

func TestRecordMigration(t *testing.T) {
	before := testutil.ToFloat64(migrations.WithLabelValues(OutcomeCompleted))
	RecordMigration(OutcomeCompleted, 250*time.Millisecond)

	if got := testutil.ToFloat64(migrations.WithLabelValues(OutcomeCompleted)) - before; got != 1 {
		t.Errorf("completed delta = %v, want 1", got)
	}
}

func TestAddMigrationConflicts(t *testing.T) {
	before := testutil.ToFloat64(migrationConflicts)
	AddMigrationConflicts(3)
	AddMigrationConflicts(0)
	AddMigrationConflicts(-1)

	if got := testutil.ToFloat64(migrationConflicts) - before; got != 3 {
		t.Errorf("conflicts delta = %v, want 3", got)
	}
}

func TestSetCustomDataDir(t *testing.T) {
	SetCustomDataDir(true)
	if v := testutil.ToFloat64(customDataDir); v != 1 {
		t.Errorf("custom = %v, want 1", v)
	}
	SetCustomDataDir(false)
	if v := testutil.ToFloat64(customDataDir); v != 0 {
		t.Errorf("custom = %v, want 0", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordUpdateCheck(OutcomeUpToDate)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "nooltools_update_checks_total") {
		t.Error("scrape output is missing nooltools_update_checks_total")
	}
}
