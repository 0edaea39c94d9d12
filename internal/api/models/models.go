package models

// SchemaVersion is sent in every response body so clients can detect
// incompatible payload changes.
const SchemaVersion = 1

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	SchemaVersion int    `json:"schema_version" example:"1" doc:"Response schema version"`
	Version       string `json:"version" example:"v1.4.0" doc:"Application version"`
	GitCommit     string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate     string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion     string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform      string `json:"platform" example:"linux/amd64" doc:"GOOS/GOARCH"`
}

type VersionResponse struct {
	Body VersionData
}

// RestartResponse represents an accepted restart request.
type RestartResponse struct {
	Body struct {
		SchemaVersion int    `json:"schema_version" example:"1" doc:"Response schema version"`
		Message       string `json:"message" example:"Restarting..." doc:"Status message"`
	}
}

// DatabaseStatusData reports the SQLite handle inside the data directory.
type DatabaseStatusData struct {
	SchemaVersion   int    `json:"schema_version" example:"1" doc:"Response schema version"`
	Path            string `json:"path" doc:"Database file path"`
	Open            bool   `json:"open" doc:"Whether the handle is open"`
	DBSchemaVersion int    `json:"db_schema_version" example:"1" doc:"Schema version recorded in the database"`
	CreatedAt       string `json:"created_at,omitempty" doc:"When the database was initialized"`
	CheckedAt       string `json:"checked_at" doc:"When the check ran"`
	Error           string `json:"error,omitempty" doc:"Check failure"`
}

type DatabaseStatusResponse struct {
	Body DatabaseStatusData
}
