package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Dispatcher routes workflow events to registered handlers.
// Services dispatch only after their transaction has committed.
type Dispatcher interface {
	// Subscribe registers handler under name. Re-subscribing a name replaces its handler in place.
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch runs every handler of the event's type in registration order.
	// Handler failures do not stop the others; they come back joined.
	Dispatch(ctx context.Context, evt *event.Event) error

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	if !eventType.IsValid() {
		panic(fmt.Sprintf("dispatcher: unknown event type %q", eventType))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	info := HandlerInfo{Name: name, EventType: eventType, Handler: handler}
	handlers := d.handlers[eventType]
	for i := range handlers {
		if handlers[i].Name == name {
			handlers[i] = info
			return
		}
	}
	d.handlers[eventType] = append(handlers, info)

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return errors.New("dispatcher: nil event")
	}
	if !evt.Type.IsValid() {
		return fmt.Errorf("dispatcher: unknown event type %q", evt.Type)
	}

	d.mu.RLock()
	handlers := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, info := range handlers {
		if err := d.run(ctx, evt, info); err != nil {
			d.logError("Handler error", evt, info, "error", err)
			errs = append(errs, fmt.Errorf("handler %s: %w", info.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	handlers := d.handlers[eventType]
	result := make([]HandlerInfo, len(handlers))
	for i, h := range handlers {
		result[i] = HandlerInfo{Name: h.Name, EventType: h.EventType}
	}
	return result
}

// run invokes one handler, turning a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logError("Handler panic recovered", evt, info, "panic", r)
		}
	}()

	return info.Handler(ctx, evt)
}

func (d *eventDispatcher) logError(msg string, evt *event.Event, info HandlerInfo, key string, value interface{}) {
	if d.logger == nil {
		return
	}
	d.logger.Error(msg,
		"event_type", evt.Type,
		"event_id", evt.ID,
		"app_id", evt.AppID,
		"correlation_id", evt.CorrelationID,
		"handler_name", info.Name,
		key, value,
	)
}
