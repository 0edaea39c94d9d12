package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nooltools/nooltools/internal/database"
	"github.com/nooltools/nooltools/internal/migration"
	"github.com/nooltools/nooltools/internal/update"
)

type fixedFeed struct {
	release update.ReleaseInfo
	err     error
}

func (f fixedFeed) FetchLatest(context.Context) (update.ReleaseInfo, error) {
	return f.release, f.err
}

func newTestApp(t *testing.T, mutate ...func(*Config)) (*App, string) {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		DataDir:        filepath.Join(root, "data"),
		SettingsDir:    filepath.Join(root, "settings"),
		CurrentVersion: "v1.4.0",
		FeedOverride: fixedFeed{release: update.ReleaseInfo{
			Version:     "v1.5.0",
			Name:        "nooltools v1.5.0",
			PublishedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, root
}

func TestStartupOpensDatabase(t *testing.T) {
	a, root := newTestApp(t)
	ctx := context.Background()
	if err := a.Startup(ctx); err != nil {
		t.Fatal(err)
	}

	status, err := a.DatabaseStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(root, "data", database.FileName); status.Path != want {
		t.Errorf("database path = %s, want %s", status.Path, want)
	}

	settings, err := a.StorageSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.IsCustom {
		t.Error("fresh install should use the default directory")
	}
}

func TestCheckForUpdateRequiresStartup(t *testing.T) {
	a, _ := newTestApp(t)
	if _, _, err := a.CheckForUpdate(context.Background(), false); !errors.Is(err, ErrNotStarted) {
		t.Errorf("CheckForUpdate() before Startup = %v, want ErrNotStarted", err)
	}
}

func TestCheckForUpdate(t *testing.T) {
	a, _ := newTestApp(t, func(c *Config) { c.CacheTTL = time.Minute })
	ctx := context.Background()
	if err := a.Startup(ctx); err != nil {
		t.Fatal(err)
	}

	result, cached, err := a.CheckForUpdate(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasUpdate || result.LatestVersion != "v1.5.0" || cached {
		t.Errorf("first check = %+v cached=%v", result, cached)
	}

	_, cached, _ = a.CheckForUpdate(ctx, false)
	if !cached {
		t.Error("second check should come from cache")
	}
	_, cached, _ = a.CheckForUpdate(ctx, true)
	if cached {
		t.Error("refresh should bypass cache")
	}

	if status := a.UpdateStatus(); status.LastResult == nil || status.CurrentVersion != "v1.4.0" {
		t.Errorf("UpdateStatus() = %+v", status)
	}
}

func TestMigrateMovesDatabase(t *testing.T) {
	a, root := newTestApp(t)
	ctx := context.Background()
	if err := a.Startup(ctx); err != nil {
		t.Fatal(err)
	}

	result, err := a.MigrateToParent(ctx, filepath.Join(root, "disk"))
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "disk", "nooltools_data")
	if result.ToDir != target || !result.RestartRecommended {
		t.Errorf("result = %+v", result)
	}

	status, err := a.DatabaseStatus(ctx)
	if err != nil {
		t.Fatalf("database not reopened: %v", err)
	}
	if status.Path != filepath.Join(target, database.FileName) {
		t.Errorf("database path = %s", status.Path)
	}
	if _, err := os.Stat(filepath.Join(root, "data", database.FileName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("old database still present: %v", err)
	}

	settings, err := a.StorageSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.CurrentDataDir != target || !settings.IsCustom {
		t.Errorf("settings = %+v", settings)
	}
	if a.MigrationStatus().State != migration.StateCompleted {
		t.Errorf("migration state = %s", a.MigrationStatus().State)
	}
}

func TestStartupWithPendingMigrationLeavesDatabaseClosed(t *testing.T) {
	root := t.TempDir()
	settingsDir := filepath.Join(root, "settings")
	if err := os.MkdirAll(settingsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	marker, _ := json.Marshal(migration.Marker{
		ID:      "crash",
		FromDir: filepath.Join(root, "data"),
		ToDir:   filepath.Join(root, "target"),
		Phase:   migration.PhaseMove,
	})
	if err := os.WriteFile(filepath.Join(settingsDir, migration.MarkerFileName), marker, 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{
		DataDir:      filepath.Join(root, "data"),
		SettingsDir:  settingsDir,
		FeedOverride: fixedFeed{},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.Startup(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := a.DatabaseStatus(ctx); !errors.Is(err, database.ErrClosed) {
		t.Errorf("DatabaseStatus() = %v, want ErrClosed", err)
	}
	if _, err := os.Stat(filepath.Join(root, "data", database.FileName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("database created in old directory while migration pending")
	}

	settings, _ := a.StorageSettings()
	if settings.StartupNotice == "" {
		t.Error("expected a notice about the pending migration")
	}
	if a.MigrationStatus().State != migration.StateInterrupted {
		t.Errorf("state = %s", a.MigrationStatus().State)
	}

	if _, err := a.AbortMigration(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := a.DatabaseStatus(ctx); err != nil {
		t.Errorf("database not reopened after abort: %v", err)
	}
}

func TestRestartSignalsOnce(t *testing.T) {
	r := newRestarter("", time.Millisecond)
	var signals atomic.Int32
	done := make(chan struct{}, 2)
	r.signalSelf = func() error {
		signals.Add(1)
		done <- struct{}{}
		return nil
	}

	ctx := context.Background()
	if err := r.restart(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.restart(ctx); err != nil {
		t.Fatal(err)
	}
	if !r.isPending() {
		t.Error("restart should be pending")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("process was never signalled")
	}
	time.Sleep(20 * time.Millisecond)
	if n := signals.Load(); n != 1 {
		t.Errorf("signalled %d times, want 1", n)
	}
}

func TestRestartUsesSystemdUnit(t *testing.T) {
	r := newRestarter("nooltools.service", 0)
	var got string
	r.restartUnit = func(_ context.Context, unit string) error {
		got = unit
		return nil
	}
	r.signalSelf = func() error {
		t.Error("should not signal when a unit is configured")
		return nil
	}

	if err := r.restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != "nooltools.service" {
		t.Errorf("restarted unit %q", got)
	}
	if r.isPending() {
		t.Error("systemd restart should not mark a re-exec as pending")
	}
}
