package update

import "time"

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// ReleaseInfo describes the newest release on the feed.
type ReleaseInfo struct {
	Version     string    `json:"version"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Notes       string    `json:"notes"`
	Prerelease  bool      `json:"prerelease"`
	Assets      []Asset   `json:"assets"`
}

// UpdateCheckResult is the outcome of a single update check. It is built
// once per check and not modified afterwards.
type UpdateCheckResult struct {
	HasUpdate        bool      `json:"has_update"`
	CurrentVersion   string    `json:"current_version"`
	LatestVersion    string    `json:"latest_version"`
	ReleaseName      string    `json:"release_name"`
	ReleaseURL       string    `json:"release_url"`
	PublishedAt      time.Time `json:"published_at"`
	ReleaseNotes     string    `json:"release_notes"`
	CheckedAt        time.Time `json:"checked_at"`
	Message          string    `json:"message"`
	AssetName        string    `json:"asset_name"`
	AssetSize        int64     `json:"asset_size"`
	CanAutoUpdate    bool      `json:"can_auto_update"`
	AutoUpdateReason string    `json:"auto_update_reason"`
}

// Status summarizes the last check for status endpoints.
type Status struct {
	CurrentVersion string             `json:"current_version"`
	LastChecked    *time.Time         `json:"last_checked,omitempty"`
	LastResult     *UpdateCheckResult `json:"last_result,omitempty"`
	FromCache      bool               `json:"from_cache"`
}
