// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus is closed")

// HandlerFunc receives events of the type it was subscribed to.
type HandlerFunc func(ctx context.Context, event Event) error

// Subscription removes a handler when cancelled.
type Subscription struct {
	id  string
	typ EventType
	bus *Bus
}

// Unsubscribe detaches the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.handlers[s.typ], s.id)
}

// Bus fans ledger events out to subscribers from a single dispatch goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]HandlerFunc
	logger   *zap.Logger

	queue   chan Event
	closed  chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped uint64
}

// NewBus starts the dispatcher. bufferSize bounds the number of queued events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	b := &Bus{
		handlers: make(map[EventType]map[string]HandlerFunc),
		logger:   logger.Named("event_bus"),
		queue:    make(chan Event, bufferSize),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe registers fn for events of type t.
func (b *Bus) Subscribe(t EventType, fn HandlerFunc) *Subscription {
	id := uuid.NewString()

	b.mu.Lock()
	if b.handlers[t] == nil {
		b.handlers[t] = make(map[string]HandlerFunc)
	}
	b.handlers[t][id] = fn
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed", zap.String("event_type", string(t)), zap.String("id", id))
	return &Subscription{id: id, typ: t, bus: b}
}

// Publish queues an event without blocking. When the queue is full the event is dropped.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}

	select {
	case b.queue <- event:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.logger.Warn("Event queue full, dropping event", zap.String("event_type", string(event.Type())))
	}
	return nil
}

// Dispatch delivers the event to handlers on the caller's goroutine.
func (b *Bus) Dispatch(ctx context.Context, event Event) {
	for _, fn := range b.snapshot(event.Type()) {
		if err := fn(ctx, event); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event_type", string(event.Type())),
				zap.Error(err))
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close stops accepting events, drains the queue and waits for the dispatcher
// or for ctx to expire.
func (b *Bus) Close(ctx context.Context) error {
	b.once.Do(func() { close(b.closed) })
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) snapshot(t EventType) []HandlerFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]HandlerFunc, 0, len(b.handlers[t]))
	for _, fn := range b.handlers[t] {
		out = append(out, fn)
	}
	return out
}

func (b *Bus) run() {
	defer close(b.done)
	ctx := context.Background()
	for {
		select {
		case ev := <-b.queue:
			b.Dispatch(ctx, ev)
		case <-b.closed:
			// дочитываем то, что уже в очереди
			for {
				select {
				case ev := <-b.queue:
					b.Dispatch(ctx, ev)
				default:
					return
				}
			}
		}
	}
}
