package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fpfinfo/sosfu/internal/domain/event"
	"go.uber.org/zap"
)

// Dispatcher routes domain events to registered handlers
type Dispatcher interface {
	// Subscribe registers a named handler for an event type
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch sends the event to all handlers synchronously, stopping at
	// the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync sends the event to handlers without waiting; handler
	// errors are logged and dropped
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Close shuts down the dispatcher and waits for async handlers
	Close() error
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]handlerInfo
	logger   *zap.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a new event dispatcher
func New(logger *zap.Logger) Dispatcher {
	return &eventDispatcher{
		handlers: make(map[event.Type][]handlerInfo),
		logger:   logger,
	}
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], handlerInfo{name: name, handler: handler})
	d.logger.Debug("Handler registered",
		zap.String("event_type", eventType.String()),
		zap.String("handler", name))
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	d.mu.RLock()
	handlers := d.handlers[evt.Type]
	d.mu.RUnlock()

	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logger.Error("Handler error",
				zap.String("event_type", evt.Type.String()),
				zap.String("handler", info.name),
				zap.Error(err))
			return fmt.Errorf("handler %s failed: %w", info.name, err)
		}
	}

	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logger.Warn("Dropping async event, dispatcher is closed",
			zap.String("event_type", evt.Type.String()),
			zap.String("event_id", evt.ID))
		return
	}

	d.mu.RLock()
	handlers := d.handlers[evt.Type]
	d.mu.RUnlock()

	for _, info := range handlers {
		d.wg.Add(1)
		go func(h handlerInfo) {
			defer d.wg.Done()

			if err := d.safeExecute(ctx, evt, h); err != nil {
				d.logger.Error("Async handler error",
					zap.String("event_type", evt.Type.String()),
					zap.String("handler", h.name),
					zap.Error(err))
			}
		}(info)
	}
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	d.wg.Wait()
	d.logger.Info("Dispatcher closed")
	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info handlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return info.handler(ctx, evt)
}
