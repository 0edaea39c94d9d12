package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nooltools/nooltools/internal/events"
)

type stubFeed struct {
	mu        sync.Mutex
	responses []stubResponse
	calls     atomic.Int32
}

type stubResponse struct {
	release ReleaseInfo
	err     error
}

func (f *stubFeed) FetchLatest(context.Context) (ReleaseInfo, error) {
	n := int(f.calls.Add(1)) - 1
	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= len(f.responses) {
		n = len(f.responses) - 1
	}
	return f.responses[n].release, f.responses[n].err
}

func ok(rel ReleaseInfo) stubResponse { return stubResponse{release: rel} }
func fail(msg string) stubResponse {
	return stubResponse{err: newError(ErrCodeFeedUnavailable, msg, nil)}
}

func release(version string, assets ...Asset) ReleaseInfo {
	return ReleaseInfo{
		Version:     version,
		Name:        "nooltools " + version,
		URL:         "https://github.com/HEUdbh/nooltools/releases/tag/" + version,
		PublishedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Notes:       "notes",
		Assets:      assets,
	}
}

func newTestEvaluator(t *testing.T, feed Feed, mutate ...func(*Options)) *Evaluator {
	t.Helper()
	opts := Options{
		Feed:         feed,
		GOOS:         "linux",
		GOARCH:       "amd64",
		InstallDir:   t.TempDir(),
		RetryBackoff: time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewEvaluator(opts)
}

var linuxAsset = Asset{Name: "nooltools_linux_amd64.tar.gz", Size: 10 << 20}

func TestCheckForUpdate_UpdateAvailable(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{ok(release("v1.5.0", linuxAsset))}}
	e := newTestEvaluator(t, feed)

	before := time.Now().UTC().Add(-time.Second)
	got := e.CheckForUpdate(context.Background(), "v1.4.0")

	if !got.HasUpdate || !got.CanAutoUpdate {
		t.Fatalf("expected update with auto-update, got %+v", got)
	}
	if got.AutoUpdateReason != "" {
		t.Errorf("reason = %q, want empty", got.AutoUpdateReason)
	}
	if got.AssetName != linuxAsset.Name || got.AssetSize != linuxAsset.Size {
		t.Errorf("asset = %s/%d", got.AssetName, got.AssetSize)
	}
	if got.LatestVersion != "v1.5.0" || got.ReleaseName != "nooltools v1.5.0" || got.Message != msgUpdateAvailable {
		t.Errorf("unexpected metadata: %+v", got)
	}
	if got.CheckedAt.Before(before) {
		t.Errorf("checked_at not stamped: %v", got.CheckedAt)
	}
}

func TestCheckForUpdate_NotNewer(t *testing.T) {
	for _, latest := range []string{"v1.4.0", "v1.3.9", "1.4.0+build.7", "v1.4.0-rc.2"} {
		t.Run(latest, func(t *testing.T) {
			feed := &stubFeed{responses: []stubResponse{ok(release(latest, linuxAsset))}}
			got := newTestEvaluator(t, feed).CheckForUpdate(context.Background(), "1.4.0")

			if got.HasUpdate || got.CanAutoUpdate {
				t.Errorf("feed %s <= current must not report an update: %+v", latest, got)
			}
			if got.Message != msgUpToDate {
				t.Errorf("Message = %q", got.Message)
			}
		})
	}
}

func TestCheckForUpdate_FeedUnavailable(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{fail("dns"), fail("dns again")}}
	got := newTestEvaluator(t, feed).CheckForUpdate(context.Background(), "v1.4.0")

	if got.HasUpdate || got.CanAutoUpdate {
		t.Errorf("unexpected flags: %+v", got)
	}
	if got.AutoUpdateReason != reasonFeed {
		t.Errorf("reason = %q", got.AutoUpdateReason)
	}
	if !strings.Contains(got.Message, "dns again") {
		t.Errorf("Message = %q, want last cause", got.Message)
	}
	if got.CheckedAt.IsZero() {
		t.Error("checked_at must be set on failure")
	}
	if n := feed.calls.Load(); n != 2 {
		t.Errorf("feed called %d times, want 2 (one retry)", n)
	}
}

func TestCheckForUpdate_RetrySucceeds(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{fail("reset"), ok(release("v2.0.0", linuxAsset))}}
	got := newTestEvaluator(t, feed).CheckForUpdate(context.Background(), "v1.4.0")

	if !got.HasUpdate {
		t.Errorf("retry should recover: %+v", got)
	}
}

func TestCheckForUpdate_CancelledDuringBackoff(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{fail("reset"), ok(release("v2.0.0"))}}
	e := newTestEvaluator(t, feed, func(o *Options) { o.RetryBackoff = time.Hour })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := e.CheckForUpdate(ctx, "v1.4.0")
	if got.HasUpdate || got.AutoUpdateReason != reasonFeed {
		t.Errorf("got %+v", got)
	}
	if n := feed.calls.Load(); n != 1 {
		t.Errorf("feed called %d times, want 1", n)
	}
}

func TestCheckForUpdate_InvalidVersions(t *testing.T) {
	tests := []struct {
		current, latest string
	}{
		{"dev", "v1.5.0"},
		{"v1.4.0", "nightly"},
	}
	for _, tt := range tests {
		t.Run(tt.current+"_"+tt.latest, func(t *testing.T) {
			feed := &stubFeed{responses: []stubResponse{ok(release(tt.latest, linuxAsset))}}
			got := newTestEvaluator(t, feed).CheckForUpdate(context.Background(), tt.current)

			if got.HasUpdate || got.CanAutoUpdate {
				t.Errorf("invalid version must not advance: %+v", got)
			}
			if got.AutoUpdateReason != reasonCompare {
				t.Errorf("reason = %q", got.AutoUpdateReason)
			}
			if !strings.Contains(got.Message, "invalid version") {
				t.Errorf("Message = %q", got.Message)
			}
		})
	}
}

func TestCheckForUpdate_AutoUpdateGates(t *testing.T) {
	tests := []struct {
		name       string
		assets     []Asset
		mutate     func(*Options)
		wantReason string
	}{
		{
			name:       "no asset",
			assets:     []Asset{{Name: "nooltools_darwin_arm64.zip", Size: 10 << 20}},
			wantReason: "no matching asset for platform linux/amd64",
		},
		{
			name:       "zero size",
			assets:     []Asset{{Name: "nooltools_linux_amd64.tar.gz"}},
			wantReason: "asset size unavailable",
		},
		{
			name:       "too small",
			assets:     []Asset{{Name: "nooltools_linux_amd64.tar.gz", Size: 1000}},
			wantReason: "below the 66 kB minimum",
		},
		{
			name:       "too large",
			assets:     []Asset{{Name: "nooltools_linux_amd64.tar.gz", Size: 2 << 30}},
			mutate:     func(o *Options) { o.MaxAssetSize = 1 << 30 },
			wantReason: "exceeds the 1.1 GB limit",
		},
		{
			name:       "checksum required",
			assets:     []Asset{linuxAsset},
			mutate:     func(o *Options) { o.RequireChecksum = true },
			wantReason: "release has no checksums.txt",
		},
		{
			name:   "checksum present",
			assets: []Asset{linuxAsset, {Name: "checksums.txt", Size: 300}},
			mutate: func(o *Options) { o.RequireChecksum = true },
		},
		{
			name:       "install dir missing",
			assets:     []Asset{linuxAsset},
			mutate:     func(o *Options) { o.InstallDir = filepath.Join(os.TempDir(), "nooltools-does-not-exist-7f3a") },
			wantReason: "no write permission to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &stubFeed{responses: []stubResponse{ok(release("v9.0.0", tt.assets...))}}
			var mutate []func(*Options)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			got := newTestEvaluator(t, feed, mutate...).CheckForUpdate(context.Background(), "v1.4.0")

			if !got.HasUpdate {
				t.Fatalf("expected HasUpdate: %+v", got)
			}
			if tt.wantReason == "" {
				if !got.CanAutoUpdate {
					t.Errorf("expected auto-update, reason %q", got.AutoUpdateReason)
				}
				return
			}
			if got.CanAutoUpdate {
				t.Error("CanAutoUpdate should be false")
			}
			if !strings.Contains(got.AutoUpdateReason, tt.wantReason) {
				t.Errorf("reason = %q, want %q", got.AutoUpdateReason, tt.wantReason)
			}
		})
	}
}

func TestCheckForUpdate_WindowsDefaultNames(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{ok(release("v1.5.0",
		Asset{Name: "noltools.exe", Size: 5 << 20},
		Asset{Name: "source.zip", Size: 5 << 20},
	))}}
	e := newTestEvaluator(t, feed, func(o *Options) { o.GOOS = "windows" })

	got := e.CheckForUpdate(context.Background(), "v1.4.0")
	if got.AssetName != "noltools.exe" || !got.CanAutoUpdate {
		t.Errorf("got %+v", got)
	}
}

func TestCheck_Cache(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{ok(release("v1.5.0", linuxAsset))}}
	e := newTestEvaluator(t, feed, func(o *Options) { o.CacheTTL = time.Minute })

	first, cached := e.Check(context.Background(), "v1.4.0", false)
	if cached {
		t.Fatal("first check cannot be cached")
	}
	second, cached := e.Check(context.Background(), "v1.4.0", false)
	if !cached {
		t.Fatal("second check should hit the cache")
	}
	if second.LatestVersion != first.LatestVersion || second.CanAutoUpdate != first.CanAutoUpdate {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
	if _, cached = e.Check(context.Background(), "v1.4.0", true); cached {
		t.Error("force must bypass the cache")
	}
	if n := feed.calls.Load(); n != 2 {
		t.Errorf("feed called %d times, want 2", n)
	}

	e.InvalidateCache()
	if _, cached = e.Check(context.Background(), "v1.4.0", false); cached {
		t.Error("cache should be empty after InvalidateCache")
	}
}

func TestCheck_FailuresNotCached(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{fail("a"), fail("b"), ok(release("v1.5.0", linuxAsset))}}
	e := newTestEvaluator(t, feed, func(o *Options) { o.CacheTTL = time.Minute })

	if got := e.CheckForUpdate(context.Background(), "v1.4.0"); got.HasUpdate {
		t.Fatal("first check should fail")
	}
	if got := e.CheckForUpdate(context.Background(), "v1.4.0"); !got.HasUpdate {
		t.Error("failure must not be served from cache")
	}
}

func TestStatusAndEvents(t *testing.T) {
	bus := events.New()
	received := make(chan events.UpdateCheckedEvent, 1)
	defer bus.Subscribe(func(e events.UpdateCheckedEvent) { received <- e })()

	feed := &stubFeed{responses: []stubResponse{ok(release("v1.5.0", linuxAsset))}}
	e := newTestEvaluator(t, feed, func(o *Options) { o.EventBus = bus })

	if s := e.Status("v1.4.0"); s.LastResult != nil || s.LastChecked != nil {
		t.Fatalf("status before any check: %+v", s)
	}
	e.CheckForUpdate(context.Background(), "v1.4.0")

	s := e.Status("v1.4.0")
	if s.LastResult == nil || !s.LastResult.HasUpdate || s.LastChecked == nil {
		t.Errorf("status after check: %+v", s)
	}

	select {
	case ev := <-received:
		if !ev.HasUpdate || ev.LatestVersion != "v1.5.0" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no UpdateCheckedEvent")
	}
}

func TestCheckForUpdate_Concurrent(t *testing.T) {
	feed := &stubFeed{responses: []stubResponse{ok(release("v1.5.0", linuxAsset))}}
	e := newTestEvaluator(t, feed)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := e.CheckForUpdate(context.Background(), "v1.4.0"); !got.HasUpdate {
				t.Errorf("concurrent check: %+v", got)
			}
		}()
	}
	wg.Wait()
}

func TestNewEvaluatorDefaults(t *testing.T) {
	e := NewEvaluator(Options{Feed: &stubFeed{}})
	if e.goos != runtime.GOOS || e.goarch != runtime.GOARCH {
		t.Errorf("platform = %s/%s", e.goos, e.goarch)
	}
	if e.minSize != DefaultMinAssetSize || e.maxSize != DefaultMaxAssetSize {
		t.Errorf("sizes = %d..%d", e.minSize, e.maxSize)
	}
	if e.cache != nil {
		t.Error("cache should be disabled without a TTL")
	}
}

func TestIsCode(t *testing.T) {
	err := newError(ErrCodeFeedUnavailable, "x", errors.New("cause"))
	wrapped := errors.Join(errors.New("outer"), err)
	if !IsCode(wrapped, ErrCodeFeedUnavailable) {
		t.Error("IsCode should see through wrapping")
	}
	if IsCode(wrapped, ErrCodeInvalidVersion) {
		t.Error("wrong code matched")
	}
	if IsCode(nil, ErrCodeFeedUnavailable) {
		t.Error("nil matched")
	}
}
