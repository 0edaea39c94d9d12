package models

import "time"

// StorageSettingsData describes where application data lives.
type StorageSettingsData struct {
	SchemaVersion  int    `json:"schema_version" example:"1" doc:"Response schema version"`
	CurrentDataDir string `json:"current_data_dir" example:"/home/user/.nooltools" doc:"Data directory in use"`
	DefaultDataDir string `json:"default_data_dir" example:"/home/user/.nooltools" doc:"Default data directory"`
	IsCustom       bool   `json:"is_custom" doc:"Whether the current directory differs from the default"`
	StartupNotice  string `json:"startup_notice,omitempty" doc:"Notice to show once after startup"`
}

type StorageSettingsResponse struct {
	Body StorageSettingsData
}

// MigrateRequestData selects the migration target. Exactly one field must be set.
type MigrateRequestData struct {
	TargetDir string `json:"target_dir,omitempty" example:"/mnt/data/nooltools" doc:"Exact directory to move data into"`
	ParentDir string `json:"parent_dir,omitempty" example:"/mnt/data" doc:"Parent directory; nooltools_data is appended"`
}

type MigrateRequest struct {
	Body MigrateRequestData
}

// MigrationResultData describes a finished migration.
type MigrationResultData struct {
	SchemaVersion      int      `json:"schema_version" example:"1" doc:"Response schema version"`
	FromDir            string   `json:"from_dir" doc:"Previous data directory"`
	ToDir              string   `json:"to_dir" doc:"New data directory"`
	BackedUpConflicts  []string `json:"backed_up_conflicts" doc:"Backup paths created for conflicting entries"`
	RestartRecommended bool     `json:"restart_recommended" doc:"Whether the app should restart"`
}

type MigrationResultResponse struct {
	Body MigrationResultData
}

// MigrationBackup records one destination entry that was renamed aside.
type MigrationBackup struct {
	Original string `json:"original" doc:"Original path"`
	Backup   string `json:"backup" doc:"Backup path"`
}

// MigrationMarkerData is the journal of an unfinished migration.
type MigrationMarkerData struct {
	ID        string            `json:"id" doc:"Migration identifier"`
	FromDir   string            `json:"from_dir" doc:"Source directory"`
	ToDir     string            `json:"to_dir" doc:"Target directory"`
	StartedAt time.Time         `json:"started_at" doc:"When the migration started"`
	Phase     string            `json:"phase" example:"move" doc:"Last recorded phase"`
	Backups   []MigrationBackup `json:"backups" doc:"Backups made so far"`
	Moved     []string          `json:"moved" doc:"Entries already moved"`
	Pending   string            `json:"pending,omitempty" doc:"Entry that was being moved"`
	Leftovers []string          `json:"leftovers,omitempty" doc:"Stale copies still to be deleted"`
}

// MigrationStatusData reports the migration engine state.
type MigrationStatusData struct {
	SchemaVersion int                  `json:"schema_version" example:"1" doc:"Response schema version"`
	State         string               `json:"state" example:"idle" doc:"idle, migrating, completed, failed or interrupted"`
	LastError     string               `json:"last_error,omitempty" doc:"Error of the last run"`
	PendingMarker *MigrationMarkerData `json:"pending_marker,omitempty" doc:"Unfinished migration, if any"`
	LastResult    *MigrationResultData `json:"last_result,omitempty" doc:"Result of the last successful run"`
}

type MigrationStatusResponse struct {
	Body MigrationStatusData
}
