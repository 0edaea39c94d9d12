package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nooltools/nooltools/internal/events"
	"github.com/nooltools/nooltools/internal/fsx"
	"github.com/nooltools/nooltools/internal/logging"
	"github.com/nooltools/nooltools/internal/metrics"
)

// PendingMigrationFunc reports the target of an unfinished migration, if any.
type PendingMigrationFunc func() (toDir string, pending bool)

// Locator resolves the effective data directory.
type Locator struct {
	store      *SettingsStore
	defaultDir string
	pending    PendingMigrationFunc
	bus        *events.Bus
	logger     *slog.Logger

	once          sync.Once
	bootErr       error
	sessionNotice string
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithEventBus publishes startup notices on bus.
func WithEventBus(bus *events.Bus) LocatorOption {
	return func(l *Locator) { l.bus = bus }
}

// WithPendingMigration lets the locator warn about an unfinished migration.
func WithPendingMigration(fn PendingMigrationFunc) LocatorOption {
	return func(l *Locator) { l.pending = fn }
}

// NewLocator creates a locator over store. defaultDir is the configured
// default data directory.
func NewLocator(store *SettingsStore, defaultDir string, opts ...LocatorOption) *Locator {
	l := &Locator{
		store:      store,
		defaultDir: defaultDir,
		logger:     logging.GetLogger("storage"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the underlying settings store.
func (l *Locator) Store() *SettingsStore { return l.store }

// DefaultDir returns the normalized default data directory.
func (l *Locator) DefaultDir() string { return l.defaultDir }

// Resolve returns the effective storage settings. The first call runs the
// bootstrap; later calls only read the store.
func (l *Locator) Resolve() (StorageSettings, error) {
	l.once.Do(func() {
		l.bootErr = l.bootstrap()
	})
	if l.bootErr != nil {
		return StorageSettings{}, l.bootErr
	}

	settings, _, err := l.store.Load()
	if err != nil {
		return StorageSettings{}, err
	}
	if settings.StartupNotice == "" {
		settings.StartupNotice = l.sessionNotice
	}
	return settings, nil
}

// DataDir returns the current data directory.
func (l *Locator) DataDir() (string, error) {
	settings, err := l.Resolve()
	if err != nil {
		return "", err
	}
	return settings.CurrentDataDir, nil
}

func (l *Locator) bootstrap() error {
	defaultDir, err := NormalizePath(l.defaultDir)
	if err != nil {
		return fmt.Errorf("invalid default data directory: %w", err)
	}
	l.defaultDir = defaultDir

	settings, found, err := l.store.Load()
	if err != nil {
		return err
	}
	if !found || settings.CurrentDataDir == "" {
		settings.CurrentDataDir = defaultDir
	}
	settings.DefaultDataDir = defaultDir

	var notices []string
	if settings.StartupNotice != "" {
		notices = append(notices, settings.StartupNotice)
	}
	settings.StartupNotice = ""

	if !PathsEqual(settings.CurrentDataDir, defaultDir) {
		if err := checkAccessible(settings.CurrentDataDir); err != nil {
			l.logger.Warn("Custom data directory unavailable, falling back to default",
				"data_dir", settings.CurrentDataDir, "default", defaultDir, "error", err)
			notices = append(notices, fmt.Sprintf(
				"Custom storage directory %s is unavailable (%v). Using the default directory %s; "+
					"restore access or choose a new location in storage settings.",
				settings.CurrentDataDir, err, defaultDir))
			settings.CurrentDataDir = defaultDir
		}
	}
	settings.IsCustom = !PathsEqual(settings.CurrentDataDir, defaultDir)

	if err := EnsureLayout(settings.CurrentDataDir); err != nil {
		return err
	}
	if err := checkAccessible(settings.CurrentDataDir); err != nil {
		return fmt.Errorf("data directory %s is not usable: %w", settings.CurrentDataDir, err)
	}

	if l.pending != nil {
		if toDir, ok := l.pending(); ok {
			notices = append(notices, fmt.Sprintf(
				"A storage migration to %s did not finish. Resume it by migrating to the same "+
					"directory again, or abort it to restore your data.", toDir))
		}
	}

	if err := l.store.Save(settings); err != nil {
		return err
	}

	l.sessionNotice = strings.Join(notices, " ")
	metrics.SetCustomDataDir(settings.IsCustom)
	l.logger.Info("Storage resolved",
		"data_dir", settings.CurrentDataDir, "custom", settings.IsCustom)

	if l.sessionNotice != "" {
		l.bus.Publish(events.StorageNoticeEvent{
			Notice:    l.sessionNotice,
			DataDir:   settings.CurrentDataDir,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return nil
}

func checkAccessible(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("directory does not exist")
		}
		return err
	}
	if !fi.IsDir() {
		return errors.New("not a directory")
	}
	return fsx.CheckWritable(dir)
}
