package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/nooltools/nooltools/internal/fsx"
)

// MarkerFileName is the marker file inside the settings directory.
const MarkerFileName = "migration.json"

type markerFile struct {
	path string
}

func newMarkerFile(dir string) markerFile {
	return markerFile{path: filepath.Join(dir, MarkerFileName)}
}

// load returns nil when no marker exists.
func (f markerFile) load() (*Marker, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migration marker: %w", err)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse migration marker %s: %w", f.path, err)
	}
	if m.FromDir == "" || m.ToDir == "" {
		return nil, fmt.Errorf("migration marker %s is missing directories", f.path)
	}
	return &m, nil
}

func (f markerFile) save(m *Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode migration marker: %w", err)
	}
	if err := fsx.WriteFileAtomic(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write migration marker: %w", err)
	}
	return nil
}

func (f markerFile) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove migration marker: %w", err)
	}
	return nil
}
