package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registration. ListHandlers leaves Handler nil.
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// NewAuditLogHandler returns a handler that writes every event to the audit log
func NewAuditLogHandler(logger *zap.Logger) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		fields := []zap.Field{
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Int64("app_id", evt.AppID),
			zap.Int64("actor_id", evt.ActorID),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Time("occurred_at", evt.Timestamp),
		}
		if len(evt.Payload) > 0 {
			fields = append(fields, zap.Any("payload", evt.Payload))
		}
		logger.Info("Workflow event", fields...)
		return nil
	}
}

// AuditHandlerName is the registration name of the audit log handler
const AuditHandlerName = "audit-log"

// SubscribeAudit registers the audit log handler for every workflow event type
func SubscribeAudit(d Dispatcher, logger *zap.Logger) {
	h := NewAuditLogHandler(logger)
	for _, t := range event.AllTypes() {
		d.Subscribe(t, AuditHandlerName, h)
	}
}
