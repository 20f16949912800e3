package events

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Publish after Close has been called.
var ErrBusClosed = errors.New("event bus closed")

// Bus delivers events to a handler on background goroutines within the
// current process. At most workers handlers run at once; further Publish
// calls block until a slot frees up or ctx is done.
type Bus struct {
	handler Handler
	sem     chan struct{}
	lg      *zap.Logger

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// NewBus creates a Bus that invokes handler for every published event.
func NewBus(lg *zap.Logger, handler Handler, workers int) *Bus {
	if workers <= 0 {
		workers = 1
	}
	return &Bus{
		handler: handler,
		sem:     make(chan struct{}, workers),
		lg:      lg,
	}
}

// PublishOrderSubmitted schedules ev for asynchronous delivery. The handler
// runs with a context detached from ctx's cancellation, so a finished HTTP
// request does not abort the notification.
func (b *Bus) PublishOrderSubmitted(ctx context.Context, ev OrderSubmitted) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "publish order submitted")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.sem
		return ErrBusClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()

	hctx := context.WithoutCancel(ctx)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.sem }()

		if err := b.handler(hctx, ev); err != nil {
			b.lg.Error("Order submitted handler failed",
				zap.Int64("order_id", ev.OrderID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Close stops accepting events and waits for in-flight handlers to finish
// or ctx to be done.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.lg.Warn("Event handlers still running at shutdown")
		return ctx.Err()
	}
}
