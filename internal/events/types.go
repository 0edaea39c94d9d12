package events

// Event type constants for kelindar/event.
const (
	TypeUpdateChecked uint32 = iota + 1
	TypeMigrationStarted
	TypeMigrationProgress
	TypeMigrationCompleted
	TypeMigrationFailed
	TypeStorageNotice
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// UpdateCheckedEvent is published after every update check, successful or not.
type UpdateCheckedEvent struct {
	CurrentVersion string `json:"current_version" example:"1.4.0" doc:"Running version"`
	LatestVersion  string `json:"latest_version,omitempty" example:"1.5.0" doc:"Latest version on the feed"`
	HasUpdate      bool   `json:"has_update" doc:"Whether the feed is ahead of the running version"`
	CanAutoUpdate  bool   `json:"can_auto_update" doc:"Whether the update could be applied automatically"`
	Reason         string `json:"reason,omitempty" doc:"Why auto-update is unavailable"`
	Timestamp      string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Check time"`
}

// Type returns the event type identifier for UpdateCheckedEvent.
func (e UpdateCheckedEvent) Type() uint32 { return TypeUpdateChecked }

// MigrationStartedEvent marks the start of a data directory move.
type MigrationStartedEvent struct {
	ID        string `json:"id" doc:"Migration identifier"`
	FromDir   string `json:"from_dir" doc:"Current data directory"`
	ToDir     string `json:"to_dir" doc:"Target data directory"`
	Units     int    `json:"units" doc:"Number of top-level entries to move"`
	Conflicts int    `json:"conflicts" doc:"Number of destination entries that will be backed up"`
	Resumed   bool   `json:"resumed" doc:"True when continuing an interrupted migration"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for MigrationStartedEvent.
func (e MigrationStartedEvent) Type() uint32 { return TypeMigrationStarted }

// MigrationProgressEvent reports one finished unit of work.
type MigrationProgressEvent struct {
	ID        string `json:"id" doc:"Migration identifier"`
	Phase     string `json:"phase" example:"move" doc:"backup or move"`
	Path      string `json:"path" doc:"Entry that was processed"`
	Done      int    `json:"done" doc:"Units finished in this phase"`
	Total     int    `json:"total" doc:"Units in this phase"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for MigrationProgressEvent.
func (e MigrationProgressEvent) Type() uint32 { return TypeMigrationProgress }

// MigrationCompletedEvent is published after the new directory is committed.
type MigrationCompletedEvent struct {
	ID                 string   `json:"id" doc:"Migration identifier"`
	FromDir            string   `json:"from_dir" doc:"Previous data directory"`
	ToDir              string   `json:"to_dir" doc:"New data directory"`
	BackedUpConflicts  []string `json:"backed_up_conflicts" doc:"Backup paths created for conflicting entries"`
	RestartRecommended bool     `json:"restart_recommended" doc:"Whether the app should restart"`
	Timestamp          string   `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for MigrationCompletedEvent.
func (e MigrationCompletedEvent) Type() uint32 { return TypeMigrationCompleted }

// MigrationFailedEvent is published when a migration stops with an error.
type MigrationFailedEvent struct {
	ID        string `json:"id,omitempty" doc:"Migration identifier"`
	FromDir   string `json:"from_dir" doc:"Current data directory"`
	ToDir     string `json:"to_dir" doc:"Requested target directory"`
	Code      string `json:"code" example:"MIGRATION_FAILED" doc:"Error code"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for MigrationFailedEvent.
func (e MigrationFailedEvent) Type() uint32 { return TypeMigrationFailed }

// StorageNoticeEvent carries a user-facing storage notice.
type StorageNoticeEvent struct {
	Notice    string `json:"notice" doc:"Message to show the user"`
	DataDir   string `json:"data_dir" doc:"Data directory in use"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for StorageNoticeEvent.
func (e StorageNoticeEvent) Type() uint32 { return TypeStorageNotice }
