package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/nooltools/nooltools/internal/api/models"
	"github.com/nooltools/nooltools/internal/migration"
)

func (s *Server) registerStorageRoutes() {
	svc := s.options.Service

	huma.Register(s.api, huma.Operation{
		OperationID: "get-storage-settings",
		Method:      http.MethodGet,
		Path:        "/api/storage/settings",
		Summary:     "Get Storage Settings",
		Description: "Get the data directory in use, the default directory and any startup notice",
		Tags:        []string{"storage"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.StorageSettingsResponse, error) {
		settings, err := svc.StorageSettings()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to resolve storage settings", err)
		}
		return &models.StorageSettingsResponse{
			Body: models.StorageSettingsData{
				SchemaVersion:  models.SchemaVersion,
				CurrentDataDir: settings.CurrentDataDir,
				DefaultDataDir: settings.DefaultDataDir,
				IsCustom:       settings.IsCustom,
				StartupNotice:  settings.StartupNotice,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "migrate-storage",
		Method:      http.MethodPost,
		Path:        "/api/storage/migrate",
		Summary:     "Migrate Data Directory",
		Description: "Move all application data to a new directory. Conflicting entries at the target are backed up. " +
			"Repeating a request after an interruption resumes the earlier migration.",
		Tags:     []string{"storage"},
		Errors:   []int{400, 401, 409, 500},
		Security: withAuth(),
	}, func(ctx context.Context, input *models.MigrateRequest) (*models.MigrationResultResponse, error) {
		target := strings.TrimSpace(input.Body.TargetDir)
		parent := strings.TrimSpace(input.Body.ParentDir)

		var (
			result migration.Result
			err    error
		)
		switch {
		case target != "" && parent != "":
			return nil, huma.Error400BadRequest("set either target_dir or parent_dir, not both")
		case target != "":
			result, err = svc.Migrate(ctx, target)
		case parent != "":
			result, err = svc.MigrateToParent(ctx, parent)
		default:
			return nil, huma.Error400BadRequest("target_dir or parent_dir is required")
		}
		if err != nil {
			return nil, mapMigrationError(err)
		}
		return &models.MigrationResultResponse{Body: toMigrationResultData(result)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "abort-storage-migration",
		Method:      http.MethodPost,
		Path:        "/api/storage/migration/abort",
		Summary:     "Abort Migration",
		Description: "Roll back an interrupted migration and return all data to the original directory",
		Tags:        []string{"storage"},
		Errors:      []int{401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.MigrationResultResponse, error) {
		result, err := svc.AbortMigration(ctx)
		if err != nil {
			return nil, mapMigrationError(err)
		}
		return &models.MigrationResultResponse{Body: toMigrationResultData(result)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-storage-migration",
		Method:      http.MethodGet,
		Path:        "/api/storage/migration",
		Summary:     "Get Migration Status",
		Description: "Get the migration engine state and any unfinished migration",
		Tags:        []string{"storage"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.MigrationStatusResponse, error) {
		status := svc.MigrationStatus()
		body := models.MigrationStatusData{
			SchemaVersion: models.SchemaVersion,
			State:         string(status.State),
			LastError:     status.LastError,
		}
		if m := status.PendingMarker; m != nil {
			marker := &models.MigrationMarkerData{
				ID:        m.ID,
				FromDir:   m.FromDir,
				ToDir:     m.ToDir,
				StartedAt: m.StartedAt,
				Phase:     string(m.Phase),
				Backups:   make([]models.MigrationBackup, 0, len(m.Backups)),
				Moved:     nonNil(m.Moved),
				Pending:   m.Pending,
				Leftovers: m.Leftovers,
			}
			for _, b := range m.Backups {
				marker.Backups = append(marker.Backups, models.MigrationBackup{Original: b.Original, Backup: b.Backup})
			}
			body.PendingMarker = marker
		}
		if status.LastResult != nil {
			last := toMigrationResultData(*status.LastResult)
			body.LastResult = &last
		}
		return &models.MigrationStatusResponse{Body: body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-database-status",
		Method:      http.MethodGet,
		Path:        "/api/database/status",
		Summary:     "Get Database Status",
		Description: "Ping the database in the data directory. It is closed while a migration is in progress or pending.",
		Tags:        []string{"storage"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.DatabaseStatusResponse, error) {
		// failures are reported in the body
		status, _ := svc.DatabaseStatus(ctx)
		return &models.DatabaseStatusResponse{
			Body: models.DatabaseStatusData{
				SchemaVersion:   models.SchemaVersion,
				Path:            status.Path,
				Open:            status.Open,
				DBSchemaVersion: status.SchemaVersion,
				CreatedAt:       status.CreatedAt,
				CheckedAt:       status.CheckedAt.Format(time.RFC3339),
				Error:           status.Error,
			},
		}, nil
	})
}

func toMigrationResultData(r migration.Result) models.MigrationResultData {
	return models.MigrationResultData{
		SchemaVersion:      models.SchemaVersion,
		FromDir:            r.FromDir,
		ToDir:              r.ToDir,
		BackedUpConflicts:  nonNil(r.BackedUpConflicts),
		RestartRecommended: r.RestartRecommended,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// mapMigrationError converts migration errors to Huma HTTP errors. The
// error code leads the message so clients can branch on it.
func mapMigrationError(err error) error {
	var me *migration.Error
	if !errors.As(err, &me) {
		return huma.Error500InternalServerError(err.Error())
	}

	msg := me.Code + ": " + me.Message
	var details []error
	if me.Cause != nil {
		details = append(details, me.Cause)
	}

	switch {
	case me.Code == migration.ErrCodeMigrationInProgress, me.Code == migration.ErrCodePartialMigration:
		return huma.Error409Conflict(msg, details...)
	case me.Code == migration.ErrCodeMigrationFailed && !me.RolledBack:
		return huma.Error400BadRequest(msg, details...)
	default:
		return huma.Error500InternalServerError(msg, details...)
	}
}
