package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/nooltools/nooltools/internal/api/models"
	"github.com/nooltools/nooltools/internal/app"
	"github.com/nooltools/nooltools/internal/update"
)

// registerUpdateRoutes registers the update check endpoints.
func (s *Server) registerUpdateRoutes() {
	svc := s.options.Service

	huma.Register(s.api, huma.Operation{
		OperationID: "check-updates",
		Method:      http.MethodGet,
		Path:        "/api/update/check",
		Summary:     "Check for Updates",
		Description: "Compare the running version with the latest release. Results are cached unless refresh is set.",
		Tags:        []string{"update"},
		Errors:      []int{400, 401, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.UpdateCheckInput) (*models.UpdateCheckResponse, error) {
		result, cached, err := svc.CheckForUpdate(ctx, input.Refresh)
		if err != nil {
			return nil, mapUpdateError(err)
		}
		return &models.UpdateCheckResponse{Body: toUpdateCheckData(result, cached)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-update-status",
		Method:      http.MethodGet,
		Path:        "/api/update/status",
		Summary:     "Get Update Status",
		Description: "Get the result of the last update check without contacting the feed",
		Tags:        []string{"update"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.UpdateStatusResponse, error) {
		status := svc.UpdateStatus()
		body := models.UpdateStatusData{
			SchemaVersion:  models.SchemaVersion,
			CurrentVersion: status.CurrentVersion,
			LastChecked:    status.LastChecked,
		}
		if status.LastResult != nil {
			last := toUpdateCheckData(*status.LastResult, status.FromCache)
			body.LastResult = &last
		}
		return &models.UpdateStatusResponse{Body: body}, nil
	})
}

func toUpdateCheckData(r update.UpdateCheckResult, cached bool) models.UpdateCheckData {
	return models.UpdateCheckData{
		SchemaVersion:    models.SchemaVersion,
		HasUpdate:        r.HasUpdate,
		CurrentVersion:   r.CurrentVersion,
		LatestVersion:    r.LatestVersion,
		ReleaseName:      r.ReleaseName,
		ReleaseURL:       r.ReleaseURL,
		PublishedAt:      r.PublishedAt,
		ReleaseNotes:     r.ReleaseNotes,
		CheckedAt:        r.CheckedAt,
		Message:          r.Message,
		AssetName:        r.AssetName,
		AssetSize:        r.AssetSize,
		CanAutoUpdate:    r.CanAutoUpdate,
		AutoUpdateReason: r.AutoUpdateReason,
		FromCache:        cached,
	}
}

// mapUpdateError converts update errors to Huma HTTP errors.
func mapUpdateError(err error) error {
	if errors.Is(err, app.ErrNotStarted) {
		return huma.Error503ServiceUnavailable(err.Error())
	}
	var updateErr *update.Error
	if errors.As(err, &updateErr) {
		switch updateErr.Code {
		case update.ErrCodeInvalidVersion:
			return huma.Error400BadRequest(updateErr.Message)
		case update.ErrCodeFeedUnavailable:
			return huma.Error503ServiceUnavailable(updateErr.Message)
		default:
			return huma.Error500InternalServerError(updateErr.Message)
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
