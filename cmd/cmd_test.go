package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nooltools/nooltools/internal/app"
	"github.com/nooltools/nooltools/internal/update"
	"github.com/spf13/cobra"
)

type fixedFeed struct {
	release update.ReleaseInfo
}

func (f fixedFeed) FetchLatest(context.Context) (update.ReleaseInfo, error) {
	return f.release, nil
}

func newTestApp(t *testing.T) (*app.App, string) {
	t.Helper()
	root := t.TempDir()
	a, err := app.New(app.Config{
		DataDir:        filepath.Join(root, "data"),
		SettingsDir:    filepath.Join(root, "settings"),
		CurrentVersion: "v1.4.0",
		CacheTTL:       time.Minute,
		FeedOverride: fixedFeed{release: update.ReleaseInfo{
			Version:     "v1.5.0",
			Name:        "nooltools v1.5.0",
			Notes:       "## Changes\n\n- faster startup",
			PublishedAt: time.Now().Add(-48 * time.Hour),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Startup(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, root
}

func run(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(args)
	c.SetContext(context.Background())
	err := c.Execute()
	return out.String(), err
}

func TestCheckUpdateCmd(t *testing.T) {
	a, _ := newTestApp(t)
	getApp := func() *app.App { return a }

	out, err := run(t, NewCheckUpdateCmd(getApp), "--style", "notty")
	if err != nil {
		t.Fatalf("check-update: %v", err)
	}
	for _, want := range []string{"Current version:  v1.4.0", "v1.5.0 (published 2 days ago)", "Update available: yes", "faster startup"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, NewCheckUpdateCmd(getApp), "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		HasUpdate bool `json:"has_update"`
		FromCache bool `json:"from_cache"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !got.HasUpdate || !got.FromCache {
		t.Errorf("second check = %+v, want cached update", got)
	}
}

func TestMigrateCmd(t *testing.T) {
	a, root := newTestApp(t)
	getApp := func() *app.App { return a }

	settings, err := a.StorageSettings()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(settings.CurrentDataDir, "save.dat"), []byte("NEW"), 0o644); err != nil {
		t.Fatal(err)
	}

	parent := filepath.Join(root, "mnt")
	out, err := run(t, NewMigrateCmd(getApp), "--parent", parent)
	if err != nil {
		t.Fatalf("migrate: %v\n%s", err, out)
	}
	target := filepath.Join(parent, "nooltools_data")
	if !strings.Contains(out, "Moved data from") || !strings.Contains(out, target) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if data, err := os.ReadFile(filepath.Join(target, "save.dat")); err != nil || string(data) != "NEW" {
		t.Errorf("save.dat at target = %q, %v", data, err)
	}

	out, err = run(t, NewMigrateCmd(getApp), target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "nothing to do") {
		t.Errorf("second migrate output:\n%s", out)
	}
}

func TestMigrateCmdArgs(t *testing.T) {
	a, _ := newTestApp(t)
	getApp := func() *app.App { return a }

	tests := []struct {
		name string
		args []string
	}{
		{"no target", nil},
		{"abort with dir", []string{"--abort", "/tmp/x"}},
		{"parent and abort", []string{"--parent", "--abort"}},
		{"too many", []string{"/a", "/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, NewMigrateCmd(getApp), tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStorageCmd(t *testing.T) {
	a, root := newTestApp(t)

	out, err := run(t, NewStorageCmd(func() *app.App { return a }))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, filepath.Join(root, "data")) || !strings.Contains(out, "(default)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Migration state:   idle") {
		t.Errorf("missing migration state:\n%s", out)
	}
}

func validOptions() Options {
	return Options{
		UpdateProvider:     "github",
		UpdateRepository:   "HEUdbh/nooltools",
		UpdateTimeout:      "8s",
		UpdateCacheTTL:     "15m",
		UpdateMinAssetSize: "64KiB",
		UpdateMaxAssetSize: "512MiB",
		RestartDelay:       "500ms",
	}
}

func TestAppConfig(t *testing.T) {
	opts := validOptions()
	opts.UpdateAssetNames = "nooltools.exe, noltools.exe,,"

	cfg, err := opts.AppConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Feed.Timeout != 8*time.Second || cfg.CacheTTL != 15*time.Minute || cfg.RestartDelay != 500*time.Millisecond {
		t.Errorf("durations = %v %v %v", cfg.Feed.Timeout, cfg.CacheTTL, cfg.RestartDelay)
	}
	if cfg.MinAssetSize != 64*1024 || cfg.MaxAssetSize != 512*1024*1024 {
		t.Errorf("sizes = %d %d", cfg.MinAssetSize, cfg.MaxAssetSize)
	}
	if len(cfg.AssetNames) != 2 || cfg.AssetNames[1] != "noltools.exe" {
		t.Errorf("asset names = %q", cfg.AssetNames)
	}
}

func TestAppConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"timeout too long", func(o *Options) { o.UpdateTimeout = "30s" }},
		{"zero timeout", func(o *Options) { o.UpdateTimeout = "0s" }},
		{"bad duration", func(o *Options) { o.UpdateCacheTTL = "soon" }},
		{"bad size", func(o *Options) { o.UpdateMinAssetSize = "lots" }},
		{"min above max", func(o *Options) { o.UpdateMinAssetSize = "1GiB" }},
		{"gitlab without url", func(o *Options) { o.UpdateProvider = "gitlab" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(&opts)
			if _, err := opts.AppConfig(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	opts := validOptions()
	opts.LoggingLevel = "warn"
	opts.LoggingMigration = "debug"

	cfg := opts.LoggingConfig()
	if cfg.Level != "warn" || cfg.Modules["migration"] != "debug" {
		t.Errorf("logging config = %+v", cfg)
	}
}
