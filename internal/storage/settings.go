package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nooltools/nooltools/internal/fsx"
	"github.com/pelletier/go-toml/v2"
)

// SettingsFileName is the settings file inside the settings directory.
const SettingsFileName = "settings.toml"

const settingsSchemaVersion = 1

// StorageSettings records where application data lives.
type StorageSettings struct {
	CurrentDataDir string `json:"current_data_dir" toml:"current_data_dir"`
	DefaultDataDir string `json:"default_data_dir" toml:"default_data_dir"`
	IsCustom       bool   `json:"is_custom" toml:"is_custom"`
	StartupNotice  string `json:"startup_notice" toml:"startup_notice,omitempty"`
}

type settingsFile struct {
	SchemaVersion int             `toml:"schema_version"`
	Storage       StorageSettings `toml:"storage"`
}

// SettingsStore persists StorageSettings as TOML. All access goes through
// the store lock so readers never see a half-applied update.
type SettingsStore struct {
	dir  string
	path string
	mu   sync.RWMutex
}

// NewSettingsStore creates a store for dir/settings.toml.
func NewSettingsStore(dir string) *SettingsStore {
	return &SettingsStore{
		dir:  dir,
		path: filepath.Join(dir, SettingsFileName),
	}
}

// Dir returns the settings directory.
func (s *SettingsStore) Dir() string { return s.dir }

// Path returns the settings file path.
func (s *SettingsStore) Path() string { return s.path }

// Load returns the persisted settings. found is false when the file is
// missing or empty.
func (s *SettingsStore) Load() (settings StorageSettings, found bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Save replaces the persisted settings.
func (s *SettingsStore) Save(settings StorageSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(settings)
}

// Update applies fn to the current settings and saves the result under one
// lock. Nothing is written when fn returns an error.
func (s *SettingsStore) Update(fn func(*StorageSettings) error) (StorageSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, _, err := s.load()
	if err != nil {
		return StorageSettings{}, err
	}
	if err := fn(&settings); err != nil {
		return StorageSettings{}, err
	}
	if err := s.save(settings); err != nil {
		return StorageSettings{}, err
	}
	return settings, nil
}

func (s *SettingsStore) load() (StorageSettings, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return StorageSettings{}, false, nil
	}
	if err != nil {
		return StorageSettings{}, false, fmt.Errorf("failed to read settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return StorageSettings{}, false, nil
	}

	var file settingsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return StorageSettings{}, false, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	settings, err := normalizeSettings(file.Storage)
	if err != nil {
		return StorageSettings{}, false, fmt.Errorf("invalid settings %s: %w", s.path, err)
	}
	return settings, true, nil
}

func (s *SettingsStore) save(settings StorageSettings) error {
	settings, err := normalizeSettings(settings)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(settingsFile{
		SchemaVersion: settingsSchemaVersion,
		Storage:       settings,
	})
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := fsx.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func normalizeSettings(settings StorageSettings) (StorageSettings, error) {
	var err error
	if settings.CurrentDataDir != "" {
		if settings.CurrentDataDir, err = NormalizePath(settings.CurrentDataDir); err != nil {
			return settings, err
		}
	}
	if settings.DefaultDataDir != "" {
		if settings.DefaultDataDir, err = NormalizePath(settings.DefaultDataDir); err != nil {
			return settings, err
		}
	}
	return settings, nil
}
