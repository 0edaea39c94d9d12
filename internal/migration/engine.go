// Package migration moves the application data directory to a new location.
//
// A migration is journaled in a marker file kept next to the settings, so a
// crash at any point can be resumed by migrating to the same target again or
// undone with Abort. Settings only switch to the new directory after every
// entry has been moved.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nooltools/nooltools/internal/events"
	"github.com/nooltools/nooltools/internal/fsx"
	"github.com/nooltools/nooltools/internal/logging"
	"github.com/nooltools/nooltools/internal/metrics"
	"github.com/nooltools/nooltools/internal/storage"
)

// Options configures an Engine.
type Options struct {
	Settings   *storage.SettingsStore
	DefaultDir string
	MarkerDir  string // defaults to the settings directory
	Resources  []Resource
	EventBus   *events.Bus
}

// Engine runs data directory migrations one at a time.
type Engine struct {
	settings   *storage.SettingsStore
	defaultDir string
	marker     markerFile
	bus        *events.Bus
	logger     *slog.Logger

	// swapped in tests
	rename    func(src, dst string) error
	removeAll func(path string) error
	now       func() time.Time

	resMu     sync.Mutex
	resources []Resource

	mu         sync.RWMutex
	state      State
	lastError  error
	lastResult *Result
}

// NewEngine creates an engine. A marker left by an earlier process puts the
// engine in the interrupted state.
func NewEngine(opts Options) *Engine {
	markerDir := opts.MarkerDir
	if markerDir == "" {
		markerDir = opts.Settings.Dir()
	}

	e := &Engine{
		settings:   opts.Settings,
		defaultDir: opts.DefaultDir,
		marker:     newMarkerFile(markerDir),
		bus:        opts.EventBus,
		logger:     logging.GetLogger("migration"),
		rename:     fsx.Rename,
		removeAll:  os.RemoveAll,
		now:        time.Now,
		resources:  slices.Clone(opts.Resources),
		state:      StateIdle,
	}

	m, err := e.marker.load()
	switch {
	case err != nil:
		e.logger.Warn("Unreadable migration marker", "error", err)
		e.state = StateInterrupted
		e.lastError = err
	case m != nil:
		e.logger.Warn("Found interrupted migration", "id", m.ID, "from", m.FromDir, "to", m.ToDir, "phase", m.Phase)
		e.state = StateInterrupted
	}
	return e
}

// Register adds a resource to close and reopen around migrations.
func (e *Engine) Register(r Resource) {
	e.resMu.Lock()
	defer e.resMu.Unlock()
	e.resources = append(e.resources, r)
}

// PendingTarget returns the target of an unfinished migration, if any.
func (e *Engine) PendingTarget() (string, bool) {
	m, err := e.marker.load()
	if err != nil || m == nil {
		return "", false
	}
	return m.ToDir, true
}

// Status returns the engine state and any pending marker.
func (e *Engine) Status() Status {
	e.mu.RLock()
	status := Status{State: e.state}
	if e.lastError != nil {
		status.LastError = e.lastError.Error()
	}
	if e.lastResult != nil {
		r := *e.lastResult
		status.LastResult = &r
	}
	e.mu.RUnlock()

	if m, err := e.marker.load(); err == nil {
		status.PendingMarker = m
	}
	return status
}

// Migrate moves the data directory to newDir. Calling it again with the
// same target after an interruption resumes the earlier run.
func (e *Engine) Migrate(ctx context.Context, newDir string) (Result, error) {
	return e.run(func() (Result, string, error) {
		return e.migrate(ctx, newDir)
	})
}

// Abort rolls back an interrupted migration.
func (e *Engine) Abort(ctx context.Context) (Result, error) {
	return e.run(func() (Result, string, error) {
		return e.abort(ctx)
	})
}

func (e *Engine) run(fn func() (Result, string, error)) (Result, error) {
	if !e.transitionTo(StateMigrating, StateIdle, StateCompleted, StateFailed, StateInterrupted) {
		return Result{}, newError(ErrCodeMigrationInProgress, "a storage migration is already in progress", nil)
	}

	start := e.now()
	result, outcome, err := fn()
	metrics.RecordMigration(outcome, e.now().Sub(start))
	e.finish(result, err)
	return result, err
}

func (e *Engine) transitionTo(newState State, validFromStates ...State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(validFromStates) > 0 && !slices.Contains(validFromStates, e.state) {
		return false
	}

	e.logger.Debug("State transition", "from", e.state, "to", newState)
	e.state = newState
	e.lastError = nil
	return true
}

func (e *Engine) finish(result Result, err error) {
	pending, loadErr := e.marker.load()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastError = err
	switch {
	case pending != nil || loadErr != nil:
		e.state = StateInterrupted
	case err != nil:
		e.state = StateFailed
	default:
		e.state = StateCompleted
		e.lastResult = &result
	}
}

func (e *Engine) migrate(ctx context.Context, newDir string) (Result, string, error) {
	settings, _, err := e.settings.Load()
	if err != nil {
		return Result{}, metrics.OutcomeRejected, newError(ErrCodeMigrationFailed, "cannot read storage settings", err)
	}
	from := settings.CurrentDataDir
	if from == "" {
		from = e.defaultDir
	}

	to, err := storage.NormalizePath(newDir)
	if err != nil {
		return Result{}, metrics.OutcomeRejected, newError(ErrCodeMigrationFailed, "invalid target directory", err)
	}

	marker, err := e.marker.load()
	if err != nil {
		return Result{}, metrics.OutcomeRejected, newError(ErrCodePartialMigration, "cannot read migration marker", err)
	}
	if marker != nil {
		switch {
		case storage.SameDir(marker.ToDir, from):
			// settings were committed before the marker could be removed
			e.logger.Info("Clearing marker of committed migration", "id", marker.ID, "to", marker.ToDir)
			if err := e.marker.remove(); err != nil {
				return Result{}, metrics.OutcomeRejected, newError(ErrCodeMigrationFailed, "cannot clear migration marker", err)
			}
			marker = nil
		case !storage.SameDir(marker.ToDir, to):
			return Result{}, metrics.OutcomeRejected, newError(ErrCodePartialMigration,
				fmt.Sprintf("an interrupted migration to %s must be resumed or aborted first", marker.ToDir), nil)
		default:
			from = marker.FromDir
		}
	}

	if marker == nil && storage.SameDir(from, to) {
		e.logger.Info("Target is the current data directory, nothing to do", "dir", to)
		return Result{FromDir: from, ToDir: to, BackedUpConflicts: []string{}}, metrics.OutcomeNoop, nil
	}

	if err := validateTarget(from, to); err != nil {
		e.publishFailed(marker, from, to, err)
		return Result{}, metrics.OutcomeRejected, err
	}

	return e.execute(ctx, from, to, marker)
}

func validateTarget(from, to string) error {
	realFrom, realTo := storage.ResolvePath(from), storage.ResolvePath(to)
	if storage.IsSubPath(realTo, realFrom) {
		return newError(ErrCodeMigrationFailed, "target directory cannot be inside the current data directory", nil)
	}
	if storage.IsSubPath(realFrom, realTo) {
		return newError(ErrCodeMigrationFailed, "target directory cannot contain the current data directory", nil)
	}

	fi, err := os.Stat(from)
	if err != nil {
		return newError(ErrCodeMigrationFailed, "current data directory is not accessible", err)
	}
	if !fi.IsDir() {
		return newError(ErrCodeMigrationFailed, fmt.Sprintf("current data directory %s is not a directory", from), nil)
	}

	if err := os.MkdirAll(to, 0o755); err != nil {
		return newError(ErrCodeMigrationFailed, "failed to create target directory", err)
	}
	if err := fsx.CheckWritable(to); err != nil {
		return newError(ErrCodeMigrationFailed, "target directory is not writable", err)
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, from, to string, marker *Marker) (Result, string, error) {
	resumed := marker != nil
	if resumed {
		e.logger.Info("Resuming migration", "id", marker.ID, "from", from, "to", to, "phase", marker.Phase)
		if err := e.reconcile(marker); err != nil {
			err = newError(ErrCodePartialMigration, "cannot reconcile interrupted migration", err)
			e.publishFailed(marker, from, to, err)
			return Result{}, metrics.OutcomePartial, err
		}
	}

	p, err := buildPlan(from, to)
	if err != nil {
		code := ErrCodeMigrationFailed
		if resumed {
			code = ErrCodePartialMigration
		}
		err = newError(code, "cannot plan migration", err)
		e.publishFailed(marker, from, to, err)
		return Result{}, metrics.OutcomeRejected, err
	}

	if !resumed {
		marker = &Marker{
			ID:        uuid.NewString(),
			FromDir:   from,
			ToDir:     to,
			StartedAt: e.now().UTC(),
			Phase:     PhaseBackup,
			Backups:   []Backup{},
			Moved:     []string{},
		}
		if err := e.marker.save(marker); err != nil {
			err = newError(ErrCodeMigrationFailed, "cannot write migration marker", err)
			e.publishFailed(nil, from, to, err)
			return Result{}, metrics.OutcomeRejected, err
		}
	}

	e.logger.Info("Starting migration", "id", marker.ID, "from", from, "to", to,
		"units", len(p.units), "conflicts", len(p.conflicts))
	e.bus.Publish(events.MigrationStartedEvent{
		ID:        marker.ID,
		FromDir:   from,
		ToDir:     to,
		Units:     len(p.units),
		Conflicts: len(p.conflicts),
		Resumed:   resumed,
		Timestamp: e.timestamp(),
	})
	metrics.AddMigrationConflicts(len(p.conflicts))

	err = e.backupConflicts(marker, p.conflicts)
	if err == nil {
		err = e.closeResources()
	}
	if err == nil {
		err = e.moveUnits(ctx, marker, p.units)
	}
	if err != nil {
		return e.rollbackAfterFailure(ctx, marker, err)
	}

	return e.commit(ctx, marker)
}

func (e *Engine) backupConflicts(marker *Marker, conflicts []string) error {
	for i, rel := range conflicts {
		original := filepath.Join(marker.ToDir, rel)
		backup, err := backupPath(original, e.now())
		if err != nil {
			return err
		}

		// journal first; rollback skips entries whose backup never appeared
		marker.Backups = append(marker.Backups, Backup{Original: original, Backup: backup})
		if err := e.marker.save(marker); err != nil {
			return err
		}
		if err := e.rename(original, backup); err != nil {
			return fmt.Errorf("backup %s: %w", original, err)
		}

		e.logger.Info("Backed up conflicting entry", "original", original, "backup", backup)
		e.publishProgress(marker, PhaseBackup, rel, i+1, len(conflicts))
	}
	return nil
}

func (e *Engine) moveUnits(ctx context.Context, marker *Marker, units []string) error {
	marker.Phase = PhaseMove
	for i, rel := range units {
		if err := ctx.Err(); err != nil {
			return err
		}

		marker.Pending = rel
		if err := e.marker.save(marker); err != nil {
			return err
		}
		src := filepath.Join(marker.FromDir, rel)
		err := e.moveUnit(src, filepath.Join(marker.ToDir, rel), func() error {
			marker.Moved = append(marker.Moved, rel)
			marker.Pending = ""
			marker.Leftovers = append(marker.Leftovers, src)
			return e.marker.save(marker)
		})
		if err != nil {
			return fmt.Errorf("move %s: %w", rel, err)
		}
		if !slices.Contains(marker.Moved, rel) {
			marker.Moved = append(marker.Moved, rel)
		}
		marker.Pending = ""
		marker.dropLeftover(src)
		if err := e.marker.save(marker); err != nil {
			return err
		}

		e.publishProgress(marker, PhaseMove, rel, i+1, len(units))
	}
	return nil
}

func (e *Engine) commit(ctx context.Context, marker *Marker) (Result, string, error) {
	marker.Phase = PhaseCommit
	if err := e.marker.save(marker); err != nil {
		return e.rollbackAfterFailure(ctx, marker, err)
	}

	isCustom := !storage.PathsEqual(marker.ToDir, e.defaultDir)
	_, err := e.settings.Update(func(s *storage.StorageSettings) error {
		s.CurrentDataDir = marker.ToDir
		s.DefaultDataDir = e.defaultDir
		s.IsCustom = isCustom
		s.StartupNotice = fmt.Sprintf("Your data was moved from %s to %s.", marker.FromDir, marker.ToDir)
		return nil
	})
	if err != nil {
		return e.rollbackAfterFailure(ctx, marker, fmt.Errorf("commit settings: %w", err))
	}

	if err := e.marker.remove(); err != nil {
		e.logger.Warn("Migration committed but marker was not removed", "error", err)
	}
	pruneEmptyDirs(marker.FromDir)
	e.reopenResources(ctx, marker.ToDir)
	metrics.SetCustomDataDir(isCustom)

	result := Result{
		FromDir:            marker.FromDir,
		ToDir:              marker.ToDir,
		BackedUpConflicts:  marker.backupPaths(),
		RestartRecommended: true,
	}
	e.logger.Info("Migration completed", "id", marker.ID, "from", result.FromDir, "to", result.ToDir,
		"backups", len(result.BackedUpConflicts))
	e.bus.Publish(events.MigrationCompletedEvent{
		ID:                 marker.ID,
		FromDir:            result.FromDir,
		ToDir:              result.ToDir,
		BackedUpConflicts:  result.BackedUpConflicts,
		RestartRecommended: result.RestartRecommended,
		Timestamp:          e.timestamp(),
	})
	return result, metrics.OutcomeCompleted, nil
}

func (e *Engine) rollbackAfterFailure(ctx context.Context, marker *Marker, cause error) (Result, string, error) {
	e.logger.Error("Migration failed, rolling back", "id", marker.ID, "error", cause)

	if err := e.rollback(marker); err != nil {
		e.logger.Error("Rollback failed, data is split between directories",
			"id", marker.ID, "from", marker.FromDir, "to", marker.ToDir, "error", err)
		perr := newError(ErrCodePartialMigration,
			fmt.Sprintf("migration failed and could not be rolled back; data is split between %s and %s",
				marker.FromDir, marker.ToDir),
			errors.Join(cause, err))
		e.publishFailed(marker, marker.FromDir, marker.ToDir, perr)
		return Result{}, metrics.OutcomePartial, perr
	}

	if err := e.marker.remove(); err != nil {
		e.logger.Warn("Rolled back but marker was not removed", "error", err)
	}
	e.reopenResources(ctx, marker.FromDir)

	ferr := newError(ErrCodeMigrationFailed, "migration failed and all changes were rolled back", cause)
	ferr.RolledBack = true
	e.publishFailed(marker, marker.FromDir, marker.ToDir, ferr)
	return Result{}, metrics.OutcomeRolledBack, ferr
}

func (e *Engine) abort(ctx context.Context) (Result, string, error) {
	marker, err := e.marker.load()
	if err != nil {
		return Result{}, metrics.OutcomeRejected, newError(ErrCodePartialMigration, "cannot read migration marker", err)
	}
	if marker == nil {
		return Result{}, metrics.OutcomeRejected, newError(ErrCodeMigrationFailed, "no interrupted migration to abort", nil)
	}

	settings, _, err := e.settings.Load()
	if err != nil {
		return Result{}, metrics.OutcomeRejected, newError(ErrCodePartialMigration, "cannot read storage settings", err)
	}
	if storage.SameDir(settings.CurrentDataDir, marker.ToDir) {
		// already committed; only the marker is left
		if err := e.marker.remove(); err != nil {
			return Result{}, metrics.OutcomeRejected, newError(ErrCodeMigrationFailed, "cannot clear migration marker", err)
		}
		e.logger.Info("Cleared marker of committed migration", "id", marker.ID)
		return Result{
			FromDir:            marker.FromDir,
			ToDir:              marker.ToDir,
			BackedUpConflicts:  marker.backupPaths(),
			RestartRecommended: true,
		}, metrics.OutcomeCompleted, nil
	}

	e.logger.Info("Aborting migration", "id", marker.ID, "from", marker.FromDir, "to", marker.ToDir)
	if err := e.closeResources(); err != nil {
		e.logger.Warn("Failed to close resources before abort", "error", err)
	}
	if err := e.rollback(marker); err != nil {
		perr := newError(ErrCodePartialMigration, "abort could not restore every entry", err)
		e.publishFailed(marker, marker.FromDir, marker.ToDir, perr)
		return Result{}, metrics.OutcomePartial, perr
	}
	if err := e.marker.remove(); err != nil {
		e.logger.Warn("Aborted but marker was not removed", "error", err)
	}
	e.reopenResources(ctx, marker.FromDir)

	e.publishFailed(marker, marker.FromDir, marker.ToDir, errors.New("migration aborted"))
	return Result{
		FromDir:           marker.FromDir,
		ToDir:             marker.FromDir,
		BackedUpConflicts: []string{},
	}, metrics.OutcomeRolledBack, nil
}

// reconcile settles the in-flight unit and backups recorded by a run that
// stopped unexpectedly, before the remaining work is re-planned.
func (e *Engine) reconcile(marker *Marker) error {
	marker.Backups = slices.DeleteFunc(marker.Backups, func(b Backup) bool {
		exists, err := fsx.Exists(b.Backup)
		return err == nil && !exists
	})

	if rel := marker.Pending; rel != "" {
		src := filepath.Join(marker.FromDir, rel)
		dst := filepath.Join(marker.ToDir, rel)
		if err := os.RemoveAll(tempPath(dst)); err != nil {
			return err
		}

		srcOK, dstOK, err := bothExist(src, dst)
		if err != nil {
			return err
		}

		switch {
		case srcOK && dstOK:
			// the copy was renamed into place before it could be journaled
			if err := fsx.VerifyTree(src, dst); err != nil {
				return fmt.Errorf("%s exists in both directories and differs: %w", rel, err)
			}
			marker.Moved = append(marker.Moved, rel)
			marker.Leftovers = append(marker.Leftovers, src)
		case dstOK:
			marker.Moved = append(marker.Moved, rel)
		case srcOK:
			// never started; the new plan picks it up
		default:
			return fmt.Errorf("%s is missing from both %s and %s", rel, marker.FromDir, marker.ToDir)
		}
		marker.Pending = ""
	}
	if err := e.marker.save(marker); err != nil {
		return err
	}
	return e.removeLeftovers(marker)
}

// rollback returns moved units and then restores backups, newest first.
func (e *Engine) rollback(marker *Marker) error {
	if rel := marker.Pending; rel != "" {
		src := filepath.Join(marker.FromDir, rel)
		dst := filepath.Join(marker.ToDir, rel)
		if err := os.RemoveAll(tempPath(dst)); err != nil {
			return err
		}
		srcOK, dstOK, err := bothExist(src, dst)
		if err != nil {
			return err
		}
		switch {
		case srcOK && dstOK:
			if err := fsx.VerifyTree(src, dst); err != nil {
				return fmt.Errorf("%s exists in both directories and differs: %w", rel, err)
			}
			marker.Leftovers = append(marker.Leftovers, dst)
		case dstOK:
			marker.Moved = append(marker.Moved, rel)
		}
		marker.Pending = ""
		if err := e.marker.save(marker); err != nil {
			return err
		}
	}

	// a leftover of a forward copy is a partial source; the unit is in Moved
	if err := e.removeLeftovers(marker); err != nil {
		return err
	}

	for i := len(marker.Moved) - 1; i >= 0; i-- {
		rel := marker.Moved[i]
		src := filepath.Join(marker.ToDir, rel)
		err := e.moveUnit(src, filepath.Join(marker.FromDir, rel), func() error {
			marker.Moved = marker.Moved[:i]
			marker.Leftovers = append(marker.Leftovers, src)
			return e.marker.save(marker)
		})
		if err != nil {
			return fmt.Errorf("return %s: %w", rel, err)
		}
		marker.Moved = marker.Moved[:i]
		marker.dropLeftover(src)
		if err := e.marker.save(marker); err != nil {
			return err
		}
	}

	for i := len(marker.Backups) - 1; i >= 0; i-- {
		b := marker.Backups[i]
		exists, err := fsx.Exists(b.Backup)
		if err != nil {
			return err
		}
		if exists {
			if err := e.rename(b.Backup, b.Original); err != nil {
				return fmt.Errorf("restore backup %s: %w", b.Backup, err)
			}
		}
		marker.Backups = marker.Backups[:i]
		if err := e.marker.save(marker); err != nil {
			return err
		}
	}
	return nil
}

// removeLeftovers deletes journaled stale copies, dropping each from the
// marker once it is gone.
func (e *Engine) removeLeftovers(marker *Marker) error {
	for len(marker.Leftovers) > 0 {
		path := marker.Leftovers[0]
		if err := e.removeAll(path); err != nil {
			return fmt.Errorf("remove leftover %s: %w", path, err)
		}
		marker.Leftovers = marker.Leftovers[1:]
		if err := e.marker.save(marker); err != nil {
			return err
		}
	}
	return nil
}

func bothExist(src, dst string) (bool, bool, error) {
	srcOK, err := fsx.Exists(src)
	if err != nil {
		return false, false, err
	}
	dstOK, err := fsx.Exists(dst)
	if err != nil {
		return false, false, err
	}
	return srcOK, dstOK, nil
}

func (e *Engine) closeResources() error {
	e.resMu.Lock()
	defer e.resMu.Unlock()

	for _, r := range e.resources {
		if err := r.Close(); err != nil {
			return fmt.Errorf("close resource: %w", err)
		}
	}
	return nil
}

func (e *Engine) reopenResources(ctx context.Context, dir string) {
	e.resMu.Lock()
	defer e.resMu.Unlock()

	for _, r := range e.resources {
		if err := r.Reopen(ctx, dir); err != nil {
			e.logger.Error("Failed to reopen resource", "dir", dir, "error", err)
		}
	}
}

func (e *Engine) publishProgress(marker *Marker, phase Phase, rel string, done, total int) {
	e.bus.Publish(events.MigrationProgressEvent{
		ID:        marker.ID,
		Phase:     string(phase),
		Path:      rel,
		Done:      done,
		Total:     total,
		Timestamp: e.timestamp(),
	})
}

func (e *Engine) publishFailed(marker *Marker, from, to string, err error) {
	ev := events.MigrationFailedEvent{
		FromDir:   from,
		ToDir:     to,
		Code:      Code(err),
		Error:     err.Error(),
		Timestamp: e.timestamp(),
	}
	if marker != nil {
		ev.ID = marker.ID
	}
	e.bus.Publish(ev)
}

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}
