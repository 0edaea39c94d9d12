package models

import "time"

// UpdateCheckInput selects between the cached and a fresh check.
type UpdateCheckInput struct {
	Refresh bool `query:"refresh" doc:"Bypass the cache and query the release feed"`
}

// UpdateCheckData contains information about available updates.
type UpdateCheckData struct {
	SchemaVersion    int       `json:"schema_version" example:"1" doc:"Response schema version"`
	HasUpdate        bool      `json:"has_update" example:"true" doc:"Whether a newer release exists"`
	CurrentVersion   string    `json:"current_version" example:"1.4.0" doc:"Currently running version"`
	LatestVersion    string    `json:"latest_version" example:"1.5.0" doc:"Latest available version"`
	ReleaseName      string    `json:"release_name" doc:"Release title"`
	ReleaseURL       string    `json:"release_url" doc:"URL to the release page"`
	PublishedAt      time.Time `json:"published_at" doc:"When the release was published"`
	ReleaseNotes     string    `json:"release_notes" doc:"Markdown release notes"`
	CheckedAt        time.Time `json:"checked_at" doc:"When the check ran"`
	Message          string    `json:"message" doc:"Human readable summary"`
	AssetName        string    `json:"asset_name,omitempty" example:"nooltools-setup.exe" doc:"Installer asset for this platform"`
	AssetSize        int64     `json:"asset_size,omitempty" example:"5242880" doc:"Asset size in bytes"`
	CanAutoUpdate    bool      `json:"can_auto_update" doc:"Whether the update can be installed automatically"`
	AutoUpdateReason string    `json:"auto_update_reason,omitempty" doc:"Why auto-update is unavailable"`
	FromCache        bool      `json:"from_cache" doc:"Whether the result came from the cache"`
}

// UpdateCheckResponse wraps UpdateCheckData for API responses.
type UpdateCheckResponse struct {
	Body UpdateCheckData
}

// UpdateStatusData summarizes the last update check.
type UpdateStatusData struct {
	SchemaVersion  int              `json:"schema_version" example:"1" doc:"Response schema version"`
	CurrentVersion string           `json:"current_version" example:"1.4.0" doc:"Current version"`
	LastChecked    *time.Time       `json:"last_checked,omitempty" doc:"When updates were last checked"`
	LastResult     *UpdateCheckData `json:"last_result,omitempty" doc:"Result of the last check"`
}

// UpdateStatusResponse wraps UpdateStatusData for API responses.
type UpdateStatusResponse struct {
	Body UpdateStatusData
}
