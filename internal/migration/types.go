package migration

import (
	"context"
	"slices"
	"time"
)

// State represents the engine's migration state.
type State string

// Migration states.
const (
	StateIdle        State = "idle"
	StateMigrating   State = "migrating"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateInterrupted State = "interrupted"
)

// Phase is the step a migration had reached when its marker was written.
type Phase string

// Marker phases.
const (
	PhaseBackup Phase = "backup"
	PhaseMove   Phase = "move"
	PhaseCommit Phase = "commit"
)

// Result describes a finished migration.
type Result struct {
	FromDir            string   `json:"from_dir"`
	ToDir              string   `json:"to_dir"`
	BackedUpConflicts  []string `json:"backed_up_conflicts"`
	RestartRecommended bool     `json:"restart_recommended"`
}

// Status reports the engine state.
type Status struct {
	State         State   `json:"state"`
	LastError     string  `json:"last_error,omitempty"`
	PendingMarker *Marker `json:"pending_marker,omitempty"`
	LastResult    *Result `json:"last_result,omitempty"`
}

// Backup records one destination entry renamed out of the way.
type Backup struct {
	Original string `json:"original"`
	Backup   string `json:"backup"`
}

// Marker is the on-disk journal of an in-flight migration. Moved and
// Pending hold paths relative to the data directory. Leftovers are absolute
// paths of stale copies whose unit already lives complete elsewhere; they
// are deleted before anything else is touched.
type Marker struct {
	ID        string    `json:"id"`
	FromDir   string    `json:"from_dir"`
	ToDir     string    `json:"to_dir"`
	StartedAt time.Time `json:"started_at"`
	Phase     Phase     `json:"phase"`
	Backups   []Backup  `json:"backups"`
	Moved     []string  `json:"moved"`
	Pending   string    `json:"pending,omitempty"`
	Leftovers []string  `json:"leftovers,omitempty"`
}

func (m *Marker) dropLeftover(path string) {
	m.Leftovers = slices.DeleteFunc(m.Leftovers, func(p string) bool { return p == path })
}

func (m *Marker) backupPaths() []string {
	paths := make([]string, 0, len(m.Backups))
	for _, b := range m.Backups {
		paths = append(paths, b.Backup)
	}
	return paths
}

// Resource is something holding files open inside the data directory.
// It is closed before data moves and reopened at whichever directory is
// current afterwards.
type Resource interface {
	Close() error
	Reopen(ctx context.Context, dir string) error
}
