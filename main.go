package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/nooltools/nooltools/cmd"
	"github.com/nooltools/nooltools/internal/api"
	"github.com/nooltools/nooltools/internal/app"
	"github.com/nooltools/nooltools/internal/config"
	"github.com/nooltools/nooltools/internal/events"
	"github.com/nooltools/nooltools/internal/logging"
	"github.com/nooltools/nooltools/internal/metrics"
)

func main() {
	var application *app.App

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *cmd.Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		if validateErr := config.Validate(opts); validateErr != nil {
			slog.Error("Invalid configuration", "error", validateErr)
			os.Exit(1)
		}

		logging.Initialize(opts.LoggingConfig())
		logger := logging.GetLogger("main")

		appConfig, cfgErr := opts.AppConfig()
		if cfgErr != nil {
			logger.Error("Invalid configuration", "error", cfgErr)
			os.Exit(1)
		}

		eventBus := events.New()
		appConfig.EventBus = eventBus

		var err error
		application, err = app.New(appConfig)
		if err != nil {
			logger.Error("Failed to create application", "error", err)
			os.Exit(1)
		}
		if err := application.Startup(context.Background()); err != nil {
			logger.Error("Failed to start application", "error", err)
			os.Exit(1)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			Service:        application,
			EventBus:       eventBus,
			MetricsHandler: metrics.Handler(),
		})

		// Log levels follow the config file while the server runs
		watcher := config.NewConfigWatcher(opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logging.GetLogger("config"),
		)
		watcher.OnReload(func(cfg logging.Config) {
			logging.SetLevels(cfg.Level, cfg.Modules)
			logger.Info("Reloaded logging levels", "level", cfg.Level)
		})

		hooks.OnStart(func() {
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config watcher disabled", "path", opts.Config, "error", startErr)
			}

			logger.Info("Starting HTTP server", "addr", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	getApp := func() *app.App { return application }
	cli.Root().AddCommand(cmd.NewCheckUpdateCmd(getApp))
	cli.Root().AddCommand(cmd.NewMigrateCmd(getApp))
	cli.Root().AddCommand(cmd.NewStorageCmd(getApp))

	cli.Run()

	if application == nil {
		return
	}
	if err := application.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
	if application.RestartPending() {
		if err := application.Reexec(); err != nil {
			slog.Error("Failed to restart", "error", err)
			os.Exit(1)
		}
	}
}
