package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nooltools/nooltools/internal/fsx"
)

const tempPrefix = ".nooltools-migrate-"

// tempPath is where a cross-device copy of dst is staged.
func tempPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), tempPrefix+filepath.Base(dst)+".tmp")
}

// moveUnit moves src to dst. A plain rename is tried first; across
// filesystems the tree is copied to a temp name, verified and renamed into
// place. placed runs once dst holds the complete copy and before src is
// removed, so the caller can journal dst as authoritative. A failed removal
// leaves a partial src behind.
func (e *Engine) moveUnit(src, dst string, placed func() error) error {
	err := e.rename(src, dst)
	if err == nil || !fsx.IsCrossDevice(err) {
		return err
	}

	e.logger.Debug("Rename crossed filesystems, copying", "src", src, "dst", dst)
	tmp := tempPath(dst)
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear stale temp %s: %w", tmp, err)
	}
	if err := fsx.CopyTree(src, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := fsx.VerifyTree(src, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := fsx.SyncDir(filepath.Dir(dst)); err != nil {
		e.logger.Warn("Failed to sync directory", "dir", filepath.Dir(dst), "error", err)
	}
	if err := placed(); err != nil {
		return err
	}
	if err := e.removeAll(src); err != nil {
		return fmt.Errorf("remove source %s after copy: %w", src, err)
	}
	return nil
}

// backupPath picks a free <name>.backup_YYYYMMDD_HHMMSS[_n] next to path.
func backupPath(path string, now time.Time) (string, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	timestamp := now.UTC().Format("20060102_150405")

	for idx := range 1000 {
		suffix := ".backup_" + timestamp
		if idx > 0 {
			suffix += "_" + strconv.Itoa(idx)
		}
		candidate := filepath.Join(dir, base+suffix)
		exists, err := fsx.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("inspect backup candidate %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free backup name for %s", path)
}

// pruneEmptyDirs removes directories under root left empty after a move.
// root itself is kept.
func pruneEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && p != root {
			dirs = append(dirs, p)
		}
		return nil
	})
	// os.Remove refuses non-empty directories
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
}
