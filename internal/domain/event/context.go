package event

import "context"

type correlationKey struct{}

// WithCorrelationID stores the id that events raised under ctx are linked to
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the correlation id stored in ctx, or ""
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// NewEventFromContext creates an event linked to the correlation id carried by ctx
func NewEventFromContext(ctx context.Context, eventType Type, appID, actorID int64, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, appID, actorID, payload, CorrelationIDFrom(ctx))
}
