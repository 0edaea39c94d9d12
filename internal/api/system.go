package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/nooltools/nooltools/internal/api/models"
)

func (s *Server) registerSystemRoutes() {
	svc := s.options.Service

	huma.Register(s.api, huma.Operation{
		OperationID:   "restart-service",
		Method:        http.MethodPost,
		Path:          "/api/restart",
		Summary:       "Restart",
		Description:   "Restart the application, through systemd when a unit is configured. The response is sent before the process exits.",
		Tags:          []string{"system"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.RestartResponse, error) {
		if err := svc.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError("restart failed", err)
		}
		resp := &models.RestartResponse{}
		resp.Body.SchemaVersion = models.SchemaVersion
		resp.Body.Message = "Restarting..."
		return resp, nil
	})
}
