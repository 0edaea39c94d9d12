package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Directory and file names inside the data directory.
const (
	DefaultDataDirName  = ".nooltools"
	MigratedDataDirName = "nooltools_data"
	MarkdownDirName     = "markdown"
	UpdatesDirName      = "updates"
	SettingsDirName     = "nooltools"
)

// DefaultDataDir returns ~/.nooltools.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, DefaultDataDirName), nil
}

// DefaultSettingsDir returns the per-user config directory for nooltools.
// It lives outside the data directory so a data move never touches it.
func DefaultSettingsDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, SettingsDirName), nil
}

// NormalizePath trims, absolutizes and cleans path.
func NormalizePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// ResolvePath evaluates symlinks in the longest existing prefix of path and
// appends the missing remainder unchanged.
func ResolvePath(path string) string {
	path = filepath.Clean(path)
	var rest []string
	cur := path
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// SameDir reports whether two paths name the same directory once symlinks
// are resolved.
func SameDir(left, right string) bool {
	return PathsEqual(ResolvePath(left), ResolvePath(right))
}

// PathsEqual compares cleaned paths, ignoring case on Windows.
func PathsEqual(left, right string) bool {
	left, right = filepath.Clean(left), filepath.Clean(right)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(left, right)
	}
	return left == right
}

// IsSubPath reports whether path lies strictly inside parent.
func IsSubPath(path, parent string) bool {
	path = filepath.Clean(path)
	parent = filepath.Clean(parent)
	if runtime.GOOS == "windows" {
		path, parent = strings.ToLower(path), strings.ToLower(parent)
	}

	rel, err := filepath.Rel(parent, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// BuildTargetDataDir returns the data directory to create under a parent
// picked by the user.
func BuildTargetDataDir(parentDir string) (string, error) {
	parent, err := NormalizePath(parentDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, MigratedDataDirName), nil
}

// EnsureLayout creates dataDir and its fixed subdirectories.
func EnsureLayout(dataDir string) error {
	for _, dir := range []string{
		dataDir,
		filepath.Join(dataDir, MarkdownDirName),
		filepath.Join(dataDir, UpdatesDirName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
