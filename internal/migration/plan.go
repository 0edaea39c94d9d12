package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// plan lists what has to happen to merge one data directory into another.
// Every path is relative to the data directory root.
type plan struct {
	units     []string // entries to move, each a whole subtree
	conflicts []string // destination entries to back up first; also units
}

// buildPlan walks from and compares it with to. Directories present on both
// sides are merged; any other collision is a conflict.
func buildPlan(from, to string) (plan, error) {
	var p plan
	if err := p.walk(from, to, ""); err != nil {
		return plan{}, err
	}
	return p, nil
}

func (p *plan) walk(from, to, rel string) error {
	entries, err := os.ReadDir(filepath.Join(from, rel))
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Join(from, rel), err)
	}

	for _, entry := range entries {
		name := filepath.Join(rel, entry.Name())
		src := filepath.Join(from, name)
		if err := checkTree(src); err != nil {
			return err
		}

		dfi, err := os.Lstat(filepath.Join(to, name))
		if errors.Is(err, os.ErrNotExist) {
			p.units = append(p.units, name)
			continue
		}
		if err != nil {
			return fmt.Errorf("inspect %s: %w", filepath.Join(to, name), err)
		}

		if entry.IsDir() && dfi.IsDir() {
			if err := p.walk(from, to, name); err != nil {
				return err
			}
			continue
		}
		p.conflicts = append(p.conflicts, name)
		p.units = append(p.units, name)
	}
	return nil
}

// checkTree rejects symlinks and special files anywhere under path.
func checkTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return fmt.Errorf("symlink is not supported for migration: %s", p)
		case d.IsDir(), d.Type().IsRegular():
			return nil
		default:
			return fmt.Errorf("unsupported file type %s for migration: %s", d.Type(), p)
		}
	})
}
