// Package database owns the application's SQLite handle inside the data
// directory. The handle can be closed and reopened elsewhere so the data
// directory can move while the process keeps running.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/nooltools/nooltools/internal/logging"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// FileName is the database file inside the data directory.
const FileName = "nooltools.db"

// SchemaVersion is written to app_meta on first open.
const SchemaVersion = 1

// ErrClosed is returned when the handle is used while closed.
var ErrClosed = errors.New("database is closed")

// Status describes the database for health reporting.
type Status struct {
	Path          string    `json:"path" doc:"Database file path"`
	Open          bool      `json:"open" doc:"Whether the handle is open"`
	SchemaVersion int       `json:"schema_version" doc:"Schema version recorded in app_meta"`
	CreatedAt     string    `json:"created_at,omitempty" doc:"When the database was initialized"`
	CheckedAt     time.Time `json:"checked_at" doc:"When the check ran"`
	Error         string    `json:"error,omitempty" doc:"Check failure"`
}

// Handle is a reopenable database connection.
type Handle struct {
	mu     sync.RWMutex
	db     *sql.DB
	dir    string
	logger *slog.Logger
}

// New returns a closed handle. Call Reopen to open it.
func New() *Handle {
	return &Handle{logger: logging.GetLogger("database")}
}

// Open opens or creates dir/nooltools.db.
func Open(ctx context.Context, dir string) (*Handle, error) {
	h := New()
	if err := h.open(ctx, dir); err != nil {
		return nil, err
	}
	return h, nil
}

// Path returns the database file path.
func (h *Handle) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return filepath.Join(h.dir, FileName)
}

// DB returns the underlying connection pool, or ErrClosed.
func (h *Handle) DB() (*sql.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, ErrClosed
	}
	return h.db, nil
}

// Check pings the database and reads its schema version.
func (h *Handle) Check(ctx context.Context) (Status, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := Status{
		Path:      filepath.Join(h.dir, FileName),
		Open:      h.db != nil,
		CheckedAt: time.Now().UTC(),
	}
	if h.db == nil {
		status.Error = ErrClosed.Error()
		return status, ErrClosed
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.Error = err.Error()
		return status, fmt.Errorf("ping database: %w", err)
	}

	version, err := readMeta(ctx, h.db, "schema_version")
	if err != nil {
		status.Error = err.Error()
		return status, err
	}
	if _, err := fmt.Sscanf(version, "%d", &status.SchemaVersion); err != nil {
		status.Error = "invalid schema version " + version
		return status, fmt.Errorf("invalid schema version %q", version)
	}
	status.CreatedAt, _ = readMeta(ctx, h.db, "created_at")
	return status, nil
}

// Close closes the handle. Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	h.logger.Debug("Database closed", "dir", h.dir)
	return err
}

// Reopen closes the current handle, if open, and opens dir/nooltools.db.
func (h *Handle) Reopen(ctx context.Context, dir string) error {
	if err := h.Close(); err != nil {
		h.logger.Warn("Error closing database before reopen", "error", err)
	}
	return h.open(ctx, dir)
}

func (h *Handle) open(ctx context.Context, dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	path := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database %s: %w", path, err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	h.db = db
	h.dir = dir
	h.logger.Info("Database opened", "path", path)
	return nil
}

func buildDSN(path string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "foreign_keys(1)")
	u.RawQuery = q.Encode()
	return u.String()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS app_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create app_meta: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO app_meta (key, value) VALUES ('schema_version', ?), ('created_at', ?)`,
		fmt.Sprint(SchemaVersion), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("seed app_meta: %w", err)
	}
	return nil
}

func readMeta(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM app_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("app_meta key %s missing", key)
	}
	if err != nil {
		return "", fmt.Errorf("read app_meta %s: %w", key, err)
	}
	return value, nil
}
