package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nfrund/sandscript/internal/pubsub"
)

// subscribeEvents attaches the in-process observers to the event bus.
// Today's only observer is an audit logger for completed runs.
func (s *Server) subscribeEvents(ctx context.Context) {
	err := s.bus.Subscribe(ctx, pubsub.TopicExecutionCompleted, func(ctx context.Context, msg pubsub.Message) error {
		var event struct {
			ExecutionID string `json:"execution_id"`
			Success     bool   `json:"success"`
			DurationMs  int64  `json:"duration_ms"`
		}
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return err
		}
		slog.Info("Execution completed",
			"execution_id", event.ExecutionID,
			"session_id", msg.SessionID,
			"success", event.Success,
			"duration_ms", event.DurationMs,
		)
		return nil
	})
	if err != nil {
		slog.Error("Failed to subscribe to execution events", "error", err)
	}
}
