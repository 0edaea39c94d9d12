// Package logging provides structured logging with per-module log levels.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output goes to stdout when something is attached to it and to the systemd
// journal when journald is running; both at once when both are available.
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"migration": "debug",
//		},
//	})
//
//	logger := logging.GetLogger("update")
//	logger.Info("Checked for update", "current", "1.4.0", "latest", "1.5.0")
//
// Levels can be changed at runtime with SetLevels; the config watcher uses
// this to apply edits to the [logging] section without a restart.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	migration = "debug"
//	http = "warn"
//
// Journal entries carry the identifier "nooltools":
//
//	journalctl -t nooltools -f
//	journalctl -t nooltools MODULE=migration
package logging
