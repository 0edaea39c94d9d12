package update

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/dustin/go-humanize"
	"github.com/nooltools/nooltools/internal/events"
	"github.com/nooltools/nooltools/internal/fsx"
	"github.com/nooltools/nooltools/internal/logging"
	"github.com/nooltools/nooltools/internal/metrics"
)

// Defaults for Options fields left at zero.
const (
	DefaultMinAssetSize = 64 << 10
	DefaultMaxAssetSize = 512 << 20
	DefaultRetryBackoff = 500 * time.Millisecond
	defaultCacheBytes   = 1 << 20
)

// User-facing messages.
const (
	msgUpToDate        = "You are using the latest version."
	msgUpdateAvailable = "A new version is available."
	reasonFeed         = "feed unavailable"
	reasonCompare      = "version could not be compared"
	reasonNoUpdate     = "no update available"
)

// Options configures an Evaluator.
type Options struct {
	Feed Feed

	AssetNames      []string // explicit asset names, tried before platform matching
	GOOS            string   // defaults to runtime.GOOS
	GOARCH          string   // defaults to runtime.GOARCH
	MinAssetSize    int64
	MaxAssetSize    int64
	RequireChecksum bool
	ChecksumAsset   string

	// InstallDir is probed for write access. Empty means the directory of
	// the running executable.
	InstallDir string

	RetryBackoff time.Duration
	CacheTTL     time.Duration // zero disables result caching
	EventBus     *events.Bus
}

// Evaluator decides whether an update exists and whether it could be
// installed automatically.
type Evaluator struct {
	feed            Feed
	assetNames      []string
	goos            string
	goarch          string
	minSize         int64
	maxSize         int64
	requireChecksum bool
	checksumAsset   string
	installDir      string
	retryBackoff    time.Duration
	cache           *resultCache
	bus             *events.Bus
	now             func() time.Time

	mu            sync.RWMutex
	lastChecked   *time.Time
	lastResult    *UpdateCheckResult
	lastFromCache bool

	logger *slog.Logger
}

// NewEvaluator creates an evaluator over opts.Feed.
func NewEvaluator(opts Options) *Evaluator {
	e := &Evaluator{
		feed:            opts.Feed,
		assetNames:      opts.AssetNames,
		goos:            opts.GOOS,
		goarch:          opts.GOARCH,
		minSize:         opts.MinAssetSize,
		maxSize:         opts.MaxAssetSize,
		requireChecksum: opts.RequireChecksum,
		checksumAsset:   opts.ChecksumAsset,
		installDir:      opts.InstallDir,
		retryBackoff:    opts.RetryBackoff,
		cache:           newResultCache(defaultCacheBytes, opts.CacheTTL),
		bus:             opts.EventBus,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          logging.GetLogger("update"),
	}
	if e.goos == "" {
		e.goos = runtime.GOOS
	}
	if e.goarch == "" {
		e.goarch = runtime.GOARCH
	}
	if e.minSize <= 0 {
		e.minSize = DefaultMinAssetSize
	}
	if e.maxSize <= 0 {
		e.maxSize = DefaultMaxAssetSize
	}
	if e.checksumAsset == "" {
		e.checksumAsset = DefaultChecksumAsset
	}
	if e.retryBackoff <= 0 {
		e.retryBackoff = DefaultRetryBackoff
	}
	if len(e.assetNames) == 0 && e.goos == "windows" {
		e.assetNames = DefaultWindowsAssetNames
	}
	return e
}

// CheckForUpdate compares currentVersion with the newest release. It never
// fails: feed and version problems are reported inside the result.
func (e *Evaluator) CheckForUpdate(ctx context.Context, currentVersion string) UpdateCheckResult {
	result, _ := e.Check(ctx, currentVersion, false)
	return result
}

// Check is CheckForUpdate with cache control. With force set a cached result
// is ignored. The second return value reports whether the cache answered.
func (e *Evaluator) Check(ctx context.Context, currentVersion string, force bool) (UpdateCheckResult, bool) {
	if !force {
		if cached, ok := e.cache.get(currentVersion); ok {
			cached.CheckedAt = e.now()
			e.record(cached, true, metrics.OutcomeCached)
			return cached, true
		}
	}

	result, outcome := e.evaluate(ctx, currentVersion)
	if outcome != metrics.OutcomeFeedError {
		e.cache.set(currentVersion, result)
	}
	e.record(result, false, outcome)
	return result, false
}

// InvalidateCache drops cached results.
func (e *Evaluator) InvalidateCache() {
	e.cache.clear()
}

// Status returns the last check result, if any.
func (e *Evaluator) Status(currentVersion string) Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	status := Status{
		CurrentVersion: currentVersion,
		LastChecked:    e.lastChecked,
		FromCache:      e.lastFromCache,
	}
	if e.lastResult != nil {
		r := *e.lastResult
		status.LastResult = &r
	}
	return status
}

func (e *Evaluator) evaluate(ctx context.Context, currentVersion string) (UpdateCheckResult, string) {
	result := UpdateCheckResult{
		CurrentVersion: currentVersion,
		CheckedAt:      e.now(),
	}

	release, err := e.fetch(ctx)
	if err != nil {
		e.logger.Warn("Update check failed", "error", err)
		result.Message = fmt.Sprintf("Failed to check for updates: %v", err)
		result.AutoUpdateReason = reasonFeed
		return result, metrics.OutcomeFeedError
	}

	result.LatestVersion = release.Version
	result.ReleaseName = release.Name
	result.ReleaseURL = release.URL
	result.PublishedAt = release.PublishedAt
	result.ReleaseNotes = release.Notes

	ord, err := Compare(currentVersion, release.Version)
	if err != nil {
		e.logger.Warn("Cannot compare versions", "current", currentVersion, "latest", release.Version, "error", err)
		result.Message = fmt.Sprintf("Cannot compare versions: %v", err)
		result.AutoUpdateReason = reasonCompare
		return result, metrics.OutcomeInvalidVersion
	}

	if ord != Less {
		result.Message = msgUpToDate
		result.AutoUpdateReason = reasonNoUpdate
		return result, metrics.OutcomeUpToDate
	}

	result.HasUpdate = true
	result.Message = msgUpdateAvailable
	result.CanAutoUpdate, result.AutoUpdateReason = e.autoUpdate(&result, release)

	e.logger.Info("Update available",
		"current", currentVersion,
		"latest", release.Version,
		"can_auto_update", result.CanAutoUpdate,
		"reason", result.AutoUpdateReason)
	return result, metrics.OutcomeUpdateAvailable
}

// autoUpdate fills the asset fields of result and returns eligibility.
func (e *Evaluator) autoUpdate(result *UpdateCheckResult, release ReleaseInfo) (bool, string) {
	asset, ok := SelectAsset(release.Assets, e.assetNames, e.goos, e.goarch)
	if !ok {
		return false, fmt.Sprintf("no matching asset for platform %s/%s", e.goos, e.goarch)
	}
	result.AssetName = asset.Name
	result.AssetSize = asset.Size

	switch {
	case asset.Size <= 0:
		return false, "asset size unavailable"
	case asset.Size < e.minSize:
		return false, fmt.Sprintf("asset size %s is below the %s minimum",
			humanize.Bytes(uint64(asset.Size)), humanize.Bytes(uint64(e.minSize)))
	case asset.Size > e.maxSize:
		return false, fmt.Sprintf("asset size %s exceeds the %s limit",
			humanize.Bytes(uint64(asset.Size)), humanize.Bytes(uint64(e.maxSize)))
	}

	if e.requireChecksum && !HasAsset(release.Assets, e.checksumAsset) {
		return false, fmt.Sprintf("release has no %s", e.checksumAsset)
	}

	if ok, reason := e.checkWritePermission(); !ok {
		return false, reason
	}
	return true, ""
}

// fetch calls the feed and retries once after a backoff.
func (e *Evaluator) fetch(ctx context.Context) (ReleaseInfo, error) {
	release, err := e.fetchOnce(ctx)
	if err == nil || ctx.Err() != nil {
		return release, err
	}

	e.logger.Debug("Release feed failed, retrying", "error", err, "backoff", e.retryBackoff)
	timer := time.NewTimer(e.retryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ReleaseInfo{}, newError(ErrCodeFeedUnavailable, "update check cancelled", ctx.Err())
	case <-timer.C:
	}
	return e.fetchOnce(ctx)
}

func (e *Evaluator) fetchOnce(ctx context.Context) (ReleaseInfo, error) {
	start := time.Now()
	release, err := e.feed.FetchLatest(ctx)
	metrics.ObserveFeedLatency(time.Since(start))
	return release, err
}

func (e *Evaluator) checkWritePermission() (bool, string) {
	dir := e.installDir
	if dir == "" {
		exe, err := selfupdate.ExecutablePath()
		if err != nil {
			return false, fmt.Sprintf("failed to locate executable: %v", err)
		}
		dir = filepath.Dir(exe)
	}

	if err := fsx.CheckWritable(dir); err != nil {
		e.logger.Debug("Install directory not writable", "path", dir, "error", err)
		return false, fmt.Sprintf("no write permission to %s", dir)
	}
	return true, ""
}

func (e *Evaluator) record(result UpdateCheckResult, fromCache bool, outcome string) {
	e.mu.Lock()
	checked := result.CheckedAt
	e.lastChecked = &checked
	e.lastResult = &result
	e.lastFromCache = fromCache
	e.mu.Unlock()

	metrics.RecordUpdateCheck(outcome)
	e.bus.Publish(events.UpdateCheckedEvent{
		CurrentVersion: result.CurrentVersion,
		LatestVersion:  result.LatestVersion,
		HasUpdate:      result.HasUpdate,
		CanAutoUpdate:  result.CanAutoUpdate,
		Reason:         result.AutoUpdateReason,
		Timestamp:      result.CheckedAt.Format(time.RFC3339),
	})
}
