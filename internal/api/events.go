package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/nooltools/nooltools/internal/events"
)

// eventTypes maps SSE event names to payloads.
var eventTypes = map[string]any{
	"update-checked":      events.UpdateCheckedEvent{},
	"migration-started":   events.MigrationStartedEvent{},
	"migration-progress":  events.MigrationProgressEvent{},
	"migration-completed": events.MigrationCompletedEvent{},
	"migration-failed":    events.MigrationFailedEvent{},
	"storage-notice":      events.StorageNoticeEvent{},
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of update checks, migration progress and storage notices",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, eventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeAll(s.options.EventBus, eventCh)
		defer unsubscribe()

		// A client connecting after startup still gets the pending notice
		if s.options.Service != nil {
			if settings, err := s.options.Service.StorageSettings(); err == nil && settings.StartupNotice != "" {
				if err := send.Data(events.StorageNoticeEvent{
					Notice:    settings.StartupNotice,
					DataDir:   settings.CurrentDataDir,
					Timestamp: time.Now().Format(time.RFC3339),
				}); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
