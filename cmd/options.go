// Package cmd holds the command line options and the subcommands that run
// against the application without starting the HTTP server.
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nooltools/nooltools/internal/app"
	"github.com/nooltools/nooltools/internal/logging"
	"github.com/nooltools/nooltools/internal/update"
)

// MaxFeedTimeout bounds a single feed request.
const MaxFeedTimeout = 10 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `doc:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `doc:"Address to listen on" short:"p" default:"127.0.0.1:8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings, empty disables basic auth
	AuthUsername string `doc:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `doc:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Storage settings
	StorageDataDir     string `doc:"Default data directory (empty uses ~/.nooltools)" default:"" toml:"storage.data_dir" env:"STORAGE_DATA_DIR"`
	StorageSettingsDir string `doc:"Directory holding settings.toml (empty uses the user config dir)" default:"" toml:"storage.settings_dir" env:"STORAGE_SETTINGS_DIR"`

	// Update settings
	UpdateProvider        string `doc:"Release feed provider (github, gitea, gitlab)" default:"github" toml:"update.provider" env:"UPDATE_PROVIDER" validate:"required|in:github,gitea,gitlab"`
	UpdateRepository      string `doc:"Release repository owner/name" default:"HEUdbh/nooltools" toml:"update.repository" env:"UPDATE_REPOSITORY" validate:"required"`
	UpdateBaseURL         string `doc:"Enterprise or self-hosted API base URL" default:"" toml:"update.base_url" env:"UPDATE_BASE_URL"`
	UpdateToken           string `doc:"API token for the release feed" default:"" toml:"update.token" env:"UPDATE_TOKEN"`
	UpdateTimeout         string `doc:"Timeout for one feed request" default:"8s" toml:"update.timeout" env:"UPDATE_TIMEOUT" validate:"required"`
	UpdatePrerelease      bool   `doc:"Consider pre-releases" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`
	UpdateCacheTTL        string `doc:"How long a successful check is cached" default:"15m" toml:"update.cache_ttl" env:"UPDATE_CACHE_TTL"`
	UpdateAssetNames      string `doc:"Comma separated installer asset names" default:"" toml:"update.asset_names" env:"UPDATE_ASSET_NAMES"`
	UpdateMinAssetSize    string `doc:"Smallest acceptable asset" default:"64KiB" toml:"update.min_asset_size" env:"UPDATE_MIN_ASSET_SIZE"`
	UpdateMaxAssetSize    string `doc:"Largest acceptable asset" default:"512MiB" toml:"update.max_asset_size" env:"UPDATE_MAX_ASSET_SIZE"`
	UpdateRequireChecksum bool   `doc:"Require a checksum asset for auto-update" default:"false" toml:"update.require_checksum" env:"UPDATE_REQUIRE_CHECKSUM"`
	UpdateInstallDir      string `doc:"Install directory checked for write access (empty uses the executable dir)" default:"" toml:"update.install_dir" env:"UPDATE_INSTALL_DIR"`

	// Restart settings
	SystemdUnit  string `doc:"systemd user unit to restart through D-Bus" default:"" toml:"restart.systemd_unit" env:"RESTART_SYSTEMD_UNIT"`
	RestartDelay string `doc:"Delay before a self restart" default:"500ms" toml:"restart.delay" env:"RESTART_DELAY"`

	// Logging settings
	LoggingLevel     string `doc:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL" validate:"logLevel"`
	LoggingFormat    string `doc:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT" validate:"in:text,json"`
	LoggingAPI       string `doc:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API" validate:"logLevel"`
	LoggingUpdate    string `doc:"Update checker logging level" default:"info" toml:"logging.update" env:"LOGGING_UPDATE" validate:"logLevel"`
	LoggingStorage   string `doc:"Storage logging level" default:"info" toml:"logging.storage" env:"LOGGING_STORAGE" validate:"logLevel"`
	LoggingMigration string `doc:"Migration logging level" default:"info" toml:"logging.migration" env:"LOGGING_MIGRATION" validate:"logLevel"`
	LoggingDatabase  string `doc:"Database logging level" default:"info" toml:"logging.database" env:"LOGGING_DATABASE" validate:"logLevel"`
}

// LoggingConfig returns the logging settings carried by the options.
func (o *Options) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"api":       o.LoggingAPI,
			"http":      o.LoggingAPI,
			"update":    o.LoggingUpdate,
			"storage":   o.LoggingStorage,
			"migration": o.LoggingMigration,
			"database":  o.LoggingDatabase,
		},
	}
}

// AppConfig converts the options into an app.Config, parsing durations
// and sizes and checking the limits the validate tags cannot express.
func (o *Options) AppConfig() (app.Config, error) {
	var errs []error
	duration := func(name, value string) time.Duration {
		if value == "" {
			return 0
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return d
	}
	size := func(name, value string) int64 {
		if value == "" {
			return 0
		}
		n, err := humanize.ParseBytes(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return int64(n)
	}

	cfg := app.Config{
		DataDir:     o.StorageDataDir,
		SettingsDir: o.StorageSettingsDir,
		Feed: update.FeedConfig{
			Provider:   o.UpdateProvider,
			Repository: o.UpdateRepository,
			BaseURL:    o.UpdateBaseURL,
			Token:      o.UpdateToken,
			Timeout:    duration("update.timeout", o.UpdateTimeout),
			Prerelease: o.UpdatePrerelease,
		},
		AssetNames:      splitList(o.UpdateAssetNames),
		MinAssetSize:    size("update.min_asset_size", o.UpdateMinAssetSize),
		MaxAssetSize:    size("update.max_asset_size", o.UpdateMaxAssetSize),
		RequireChecksum: o.UpdateRequireChecksum,
		CacheTTL:        duration("update.cache_ttl", o.UpdateCacheTTL),
		InstallDir:      o.UpdateInstallDir,
		SystemdUnit:     o.SystemdUnit,
		RestartDelay:    duration("restart.delay", o.RestartDelay),
	}

	if t := cfg.Feed.Timeout; t <= 0 || t > MaxFeedTimeout {
		errs = append(errs, fmt.Errorf("update.timeout must be between 0 and %s, got %s", MaxFeedTimeout, o.UpdateTimeout))
	}
	if cfg.MinAssetSize > 0 && cfg.MaxAssetSize > 0 && cfg.MinAssetSize > cfg.MaxAssetSize {
		errs = append(errs, fmt.Errorf("update.min_asset_size %s exceeds update.max_asset_size %s",
			o.UpdateMinAssetSize, o.UpdateMaxAssetSize))
	}
	if p := strings.ToLower(o.UpdateProvider); (p == update.ProviderGitLab || p == update.ProviderGitea) && o.UpdateBaseURL == "" {
		errs = append(errs, fmt.Errorf("update.base_url is required for the %s provider", p))
	}

	if err := errors.Join(errs...); err != nil {
		return app.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
