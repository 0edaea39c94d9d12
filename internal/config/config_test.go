package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Provider   string        `toml:"update.provider" env:"UPDATE_PROVIDER"`
	Prerelease bool          `toml:"update.prerelease" env:"UPDATE_PRERELEASE"`
	Timeout    time.Duration `toml:"update.timeout" env:"UPDATE_TIMEOUT"`
	MaxSize    int64         `toml:"update.max_asset_size" env:"UPDATE_MAX_ASSET_SIZE"`
	Port       int           `toml:"server.port" env:"SERVER_PORT"`
	AssetNames []string      `toml:"update.asset_names" env:"UPDATE_ASSET_NAMES"`
	DataDir    string        `toml:"storage.data_dir" env:"STORAGE_DATA_DIR"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[update]
provider = "gitea"
prerelease = true
timeout = "5s"
max_asset_size = 1048576
asset_names = ["nooltools.exe", "noltools.exe"]

[server]
port = 9000

[storage]
data_dir = "/srv/nooltools"
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := testOptions{
		Config:     path,
		Provider:   "gitea",
		Prerelease: true,
		Timeout:    5 * time.Second,
		MaxSize:    1048576,
		Port:       9000,
		AssetNames: []string{"nooltools.exe", "noltools.exe"},
		DataDir:    "/srv/nooltools",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("got %+v\nwant %+v", *opts, want)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, "[update]\nprovider = \"gitea\"\ntimeout = \"5s\"\n")

	t.Setenv("NOOLTOOLS_UPDATE_PROVIDER", "gitlab")
	t.Setenv("NOOLTOOLS_UPDATE_TIMEOUT", "3s")
	t.Setenv("NOOLTOOLS_UPDATE_ASSET_NAMES", "a.exe, b.exe,")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Provider != "gitlab" {
		t.Errorf("Provider = %q, want gitlab", opts.Provider)
	}
	if opts.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", opts.Timeout)
	}
	if !reflect.DeepEqual(opts.AssetNames, []string{"a.exe", "b.exe"}) {
		t.Errorf("AssetNames = %v", opts.AssetNames)
	}
}

func TestLoadConfigCLIFlagWins(t *testing.T) {
	path := writeConfig(t, "[update]\nprovider = \"gitea\"\n")
	t.Setenv("NOOLTOOLS_UPDATE_PROVIDER", "gitlab")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Provider, "provider", "github", "")
	if err := cmd.Flags().Set("provider", "github"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Provider != "github" {
		t.Errorf("Provider = %q, want CLI value github", opts.Provider)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Provider: "github"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if opts.Provider != "github" {
		t.Errorf("defaults should survive, got %q", opts.Provider)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[update\nprovider = ")
	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"duration in file", "[update]\ntimeout = \"soon\"\n", nil},
		{"type mismatch", "[server]\nport = \"eighty\"\n", nil},
		{"env int", "", map[string]string{"NOOLTOOLS_SERVER_PORT": "x"}},
		{"env bool", "", map[string]string{"NOOLTOOLS_UPDATE_PRERELEASE": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			opts := &testOptions{Config: writeConfig(t, tt.content)}
			if err := LoadConfig(opts, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Error("expected error for non-pointer")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"update": map[string]any{"feed": map[string]any{"repo": "HEUdbh/nooltools"}},
		"flat":   "x",
	}

	tests := []struct {
		path string
		want any
	}{
		{"update.feed.repo", "HEUdbh/nooltools"},
		{"flat", "x"},
		{"update.missing", nil},
		{"flat.deeper", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":               "port",
		"UpdateFeedTimeout":  "update-feed-timeout",
		"StorageSettingsDir": "storage-settings-dir",
		"UpdateBaseURL":      "update-base-url",
		"HTTPPort":           "http-port",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
api = "warn"

[logging.modules]
migration = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("level/format = %q/%q", cfg.Level, cfg.Format)
	}
	want := map[string]string{"api": "warn", "migration": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	if def := LoadLoggingConfig(""); def.Level != "info" || def.Format != "text" {
		t.Errorf("defaults = %+v", def)
	}
}

type validatedOptions struct {
	Provider string        `validate:"required|in:github,gitea,gitlab"`
	Timeout  time.Duration `validate:"required|min:1"`
	Level    string        `validate:"logLevel"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    validatedOptions
		wantErr string
	}{
		{"valid", validatedOptions{"github", time.Second, "debug"}, ""},
		{"unknown provider", validatedOptions{"bitbucket", time.Second, "info"}, "Provider"},
		{"missing timeout", validatedOptions{"gitea", 0, "info"}, "Timeout"},
		{"bad level", validatedOptions{"gitlab", time.Second, "loud"}, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := Validate(&opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
