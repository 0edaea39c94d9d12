// Package app wires storage, migration, database and update checking into
// one object used by the HTTP API and the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nooltools/nooltools/internal/database"
	"github.com/nooltools/nooltools/internal/events"
	"github.com/nooltools/nooltools/internal/logging"
	"github.com/nooltools/nooltools/internal/migration"
	"github.com/nooltools/nooltools/internal/storage"
	"github.com/nooltools/nooltools/internal/update"
	"github.com/nooltools/nooltools/internal/version"
)

// ErrNotStarted is returned by operations that need Startup first.
var ErrNotStarted = errors.New("application not started")

// Config configures an App. Zero values fall back to defaults.
type Config struct {
	DataDir     string // default data directory
	SettingsDir string

	Feed            update.FeedConfig
	FeedOverride    update.Feed // replaces the remote feed, mainly for tests
	AssetNames      []string
	MinAssetSize    int64
	MaxAssetSize    int64
	RequireChecksum bool
	ChecksumAsset   string
	CacheTTL        time.Duration
	InstallDir      string
	CurrentVersion  string

	SystemdUnit  string
	RestartDelay time.Duration

	EventBus *events.Bus
}

// App is the composition root.
type App struct {
	cfg       Config
	bus       *events.Bus
	settings  *storage.SettingsStore
	locator   *storage.Locator
	engine    *migration.Engine
	db        *database.Handle
	evaluator *update.Evaluator
	restarter *restarter
	logger    *slog.Logger
}

// New builds an App without touching the data directory.
func New(cfg Config) (*App, error) {
	var err error
	if cfg.DataDir == "" {
		if cfg.DataDir, err = storage.DefaultDataDir(); err != nil {
			return nil, err
		}
	}
	if cfg.DataDir, err = storage.NormalizePath(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("invalid data directory: %w", err)
	}
	if cfg.SettingsDir == "" {
		if cfg.SettingsDir, err = storage.DefaultSettingsDir(); err != nil {
			return nil, err
		}
	}
	if cfg.CurrentVersion == "" {
		cfg.CurrentVersion = version.Version
	}
	if cfg.EventBus == nil {
		cfg.EventBus = events.New()
	}

	a := &App{
		cfg:       cfg,
		bus:       cfg.EventBus,
		settings:  storage.NewSettingsStore(cfg.SettingsDir),
		db:        database.New(),
		restarter: newRestarter(cfg.SystemdUnit, cfg.RestartDelay),
		logger:    logging.GetLogger("main"),
	}
	a.engine = migration.NewEngine(migration.Options{
		Settings:   a.settings,
		DefaultDir: cfg.DataDir,
		Resources:  []migration.Resource{a.db},
		EventBus:   a.bus,
	})
	a.locator = storage.NewLocator(a.settings, cfg.DataDir,
		storage.WithEventBus(a.bus),
		storage.WithPendingMigration(a.engine.PendingTarget),
	)
	return a, nil
}

// Startup resolves the data directory, opens the database and prepares the
// update checker. The database stays closed while a migration is pending so
// an empty one is never created in the old location.
func (a *App) Startup(ctx context.Context) error {
	settings, err := a.locator.Resolve()
	if err != nil {
		return fmt.Errorf("resolve storage: %w", err)
	}

	if to, pending := a.engine.PendingTarget(); pending {
		a.logger.Warn("Interrupted storage migration, database left closed", "to", to)
	} else if err := a.db.Reopen(ctx, settings.CurrentDataDir); err != nil {
		return err
	}

	feed, err := a.buildFeed(settings.CurrentDataDir)
	if err != nil {
		return err
	}
	a.evaluator = update.NewEvaluator(update.Options{
		Feed:            feed,
		AssetNames:      a.cfg.AssetNames,
		MinAssetSize:    a.cfg.MinAssetSize,
		MaxAssetSize:    a.cfg.MaxAssetSize,
		RequireChecksum: a.cfg.RequireChecksum,
		ChecksumAsset:   a.cfg.ChecksumAsset,
		InstallDir:      a.cfg.InstallDir,
		CacheTTL:        a.cfg.CacheTTL,
		EventBus:        a.bus,
	})

	a.logger.Info("Application started",
		"version", a.cfg.CurrentVersion, "data_dir", settings.CurrentDataDir, "custom", settings.IsCustom)
	return nil
}

func (a *App) buildFeed(dataDir string) (update.Feed, error) {
	if a.cfg.FeedOverride != nil {
		return a.cfg.FeedOverride, nil
	}

	feedCfg := a.cfg.Feed
	if feedCfg.Token == "" {
		token, err := update.LoadToken(filepath.Join(dataDir, update.TokenFileName))
		if err != nil {
			a.logger.Warn("Failed to load feed token", "error", err)
		}
		feedCfg.Token = token
	}
	return update.NewFeedClient(feedCfg)
}

// EventBus returns the bus all components publish on.
func (a *App) EventBus() *events.Bus { return a.bus }

// CurrentVersion returns the version compared against releases.
func (a *App) CurrentVersion() string { return a.cfg.CurrentVersion }

// CheckForUpdate checks the release feed. With refresh set a cached result
// is ignored. The bool reports whether the cache answered.
func (a *App) CheckForUpdate(ctx context.Context, refresh bool) (update.UpdateCheckResult, bool, error) {
	if a.evaluator == nil {
		return update.UpdateCheckResult{}, false, ErrNotStarted
	}
	result, cached := a.evaluator.Check(ctx, a.cfg.CurrentVersion, refresh)
	return result, cached, nil
}

// UpdateStatus returns the last update check.
func (a *App) UpdateStatus() update.Status {
	if a.evaluator == nil {
		return update.Status{CurrentVersion: a.cfg.CurrentVersion}
	}
	return a.evaluator.Status(a.cfg.CurrentVersion)
}

// StorageSettings returns the effective storage settings.
func (a *App) StorageSettings() (storage.StorageSettings, error) {
	return a.locator.Resolve()
}

// Migrate moves the data directory to targetDir. The move is not tied to
// ctx cancellation so a dropped client cannot roll back a finished copy.
func (a *App) Migrate(ctx context.Context, targetDir string) (migration.Result, error) {
	return a.engine.Migrate(context.WithoutCancel(ctx), targetDir)
}

// MigrateToParent moves the data directory into parentDir/nooltools_data.
func (a *App) MigrateToParent(ctx context.Context, parentDir string) (migration.Result, error) {
	target, err := storage.BuildTargetDataDir(parentDir)
	if err != nil {
		return migration.Result{}, &migration.Error{
			Code:    migration.ErrCodeMigrationFailed,
			Message: "invalid parent directory",
			Cause:   err,
		}
	}
	return a.Migrate(ctx, target)
}

// AbortMigration rolls back an interrupted migration.
func (a *App) AbortMigration(ctx context.Context) (migration.Result, error) {
	return a.engine.Abort(context.WithoutCancel(ctx))
}

// MigrationStatus reports the migration engine state.
func (a *App) MigrationStatus() migration.Status {
	return a.engine.Status()
}

// DatabaseStatus checks the database handle.
func (a *App) DatabaseStatus(ctx context.Context) (database.Status, error) {
	return a.db.Check(ctx)
}

// Restart restarts the application.
func (a *App) Restart(ctx context.Context) error {
	return a.restarter.restart(ctx)
}

// RestartPending reports whether Restart asked this process to exit so a
// new one can be started.
func (a *App) RestartPending() bool {
	return a.restarter.isPending()
}

// Reexec starts a new copy of the running binary.
func (a *App) Reexec() error {
	return reexec()
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}
