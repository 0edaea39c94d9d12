package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSettingsStoreMissingFile(t *testing.T) {
	store := NewSettingsStore(t.TempDir())

	_, found, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected found=false for missing file")
	}
}

func TestSettingsStoreEmptyFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SettingsFileName), []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, found, err := NewSettingsStore(dir).Load()
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("empty file should count as absent")
	}
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewSettingsStore(filepath.Join(dir, "nested"))

	want := StorageSettings{
		CurrentDataDir: filepath.Join(dir, "custom"),
		DefaultDataDir: filepath.Join(dir, "default"),
		IsCustom:       true,
		StartupNotice:  "moved",
	}
	if err := store.Save(want); err != nil {
		t.Fatal(err)
	}

	got, found, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected settings to be found")
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "schema_version = 1") {
		t.Errorf("settings file missing schema version:\n%s", data)
	}
}

func TestSettingsStoreInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SettingsFileName), []byte("[storage\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewSettingsStore(dir).Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSettingsStoreUpdate(t *testing.T) {
	dir := t.TempDir()
	store := NewSettingsStore(dir)
	if err := store.Save(StorageSettings{CurrentDataDir: filepath.Join(dir, "a")}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Update(func(s *StorageSettings) error {
		s.CurrentDataDir = filepath.Join(dir, "b")
		s.IsCustom = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentDataDir != filepath.Join(dir, "b") || !got.IsCustom {
		t.Errorf("Update returned %+v", got)
	}

	errBoom := errors.New("boom")
	_, err = store.Update(func(s *StorageSettings) error {
		s.CurrentDataDir = filepath.Join(dir, "c")
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	persisted, _, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if persisted.CurrentDataDir != filepath.Join(dir, "b") {
		t.Errorf("failed update was persisted: %+v", persisted)
	}
}

func TestSettingsStoreConcurrentUpdates(t *testing.T) {
	store := NewSettingsStore(t.TempDir())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(func(s *StorageSettings) error {
				s.StartupNotice += "x"
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, _, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.StartupNotice) != 20 {
		t.Errorf("lost updates: notice length %d, want 20", len(got.StartupNotice))
	}
}
