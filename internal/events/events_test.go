package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOrderSubmitted_Unmarshal(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	data := OrderSubmitted{OrderID: 42, UserID: 7, SubmittedAt: at}.Marshal()

	ev, err := UnmarshalOrderSubmitted(data)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ev.OrderID)
	assert.Equal(t, int64(7), ev.UserID)
	assert.True(t, at.Equal(ev.SubmittedAt))
}

func TestOrderSubmitted_UnmarshalInvalid(t *testing.T) {
	for _, input := range []string{
		`not json`,
		`{"user_id": 1}`,
		`{"order_id": "x"}`,
		`{"order_id": 1, "submitted_at": "yesterday"}`,
	} {
		_, err := UnmarshalOrderSubmitted([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestOrderSubmitted_UnmarshalSkipsUnknownFields(t *testing.T) {
	ev, err := UnmarshalOrderSubmitted([]byte(`{"version":2,"order_id":5,"extra":{"a":[1,2]}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), ev.OrderID)
}

func TestBus_DeliversAsynchronously(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int64
	)
	bus := NewBus(zap.NewNop(), func(_ context.Context, ev OrderSubmitted) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.OrderID)
		return nil
	}, 2)

	for i := range 5 {
		require.NoError(t, bus.PublishOrderSubmitted(context.Background(), OrderSubmitted{OrderID: int64(i + 1)}))
	}
	require.NoError(t, bus.Close(context.Background()))

	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestBus_HandlerSurvivesCanceledRequest(t *testing.T) {
	var ctxErr atomic.Value
	bus := NewBus(zap.NewNop(), func(ctx context.Context, _ OrderSubmitted) error {
		ctxErr.Store(errors.New("none"))
		if err := ctx.Err(); err != nil {
			ctxErr.Store(err)
		}
		return nil
	}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.PublishOrderSubmitted(ctx, OrderSubmitted{OrderID: 1}))
	cancel()
	require.NoError(t, bus.Close(context.Background()))

	assert.EqualError(t, ctxErr.Load().(error), "none")
}

func TestBus_LogsHandlerError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	bus := NewBus(zap.New(core), func(context.Context, OrderSubmitted) error {
		return errors.New("smtp down")
	}, 1)

	require.NoError(t, bus.PublishOrderSubmitted(context.Background(), OrderSubmitted{OrderID: 9}))
	require.NoError(t, bus.Close(context.Background()))

	entries := logs.FilterMessage("Order submitted handler failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(9), entries[0].ContextMap()["order_id"])
}

func TestBus_PublishBlockedUntilContextDone(t *testing.T) {
	release := make(chan struct{})
	bus := NewBus(zap.NewNop(), func(context.Context, OrderSubmitted) error {
		<-release
		return nil
	}, 1)

	require.NoError(t, bus.PublishOrderSubmitted(context.Background(), OrderSubmitted{OrderID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.PublishOrderSubmitted(ctx, OrderSubmitted{OrderID: 2})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, bus.Close(context.Background()))
}

func TestBus_PublishAfterClose(t *testing.T) {
	var calls atomic.Int32
	bus := NewBus(zap.NewNop(), func(context.Context, OrderSubmitted) error {
		calls.Add(1)
		return nil
	}, 1)

	require.NoError(t, bus.Close(context.Background()))

	err := bus.PublishOrderSubmitted(context.Background(), OrderSubmitted{OrderID: 1})
	require.ErrorIs(t, err, ErrBusClosed)
	// The worker slot is released, so a rejected publish never blocks.
	err = bus.PublishOrderSubmitted(context.Background(), OrderSubmitted{OrderID: 2})
	require.ErrorIs(t, err, ErrBusClosed)
	assert.Zero(t, calls.Load())
}

func TestBus_ConcurrentPublishAndClose(t *testing.T) {
	var delivered atomic.Int32
	bus := NewBus(zap.NewNop(), func(context.Context, OrderSubmitted) error {
		delivered.Add(1)
		return nil
	}, 4)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := bus.PublishOrderSubmitted(context.Background(), OrderSubmitted{OrderID: int64(i)})
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrBusClosed)
		}()
	}
	require.NoError(t, bus.Close(context.Background()))
	wg.Wait()
	require.NoError(t, bus.Close(context.Background()))

	assert.Equal(t, accepted.Load(), delivered.Load())
}

func TestKafkaConsumer_HandlerSurvivesShutdown(t *testing.T) {
	var ctxErr error
	c := &KafkaConsumer{
		handler: func(ctx context.Context, _ OrderSubmitted) error {
			ctxErr = ctx.Err()
			return nil
		},
		lg: zap.NewNop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.handleRecord(ctx, OrderSubmitted{OrderID: 3}.Marshal(), 10)

	assert.NoError(t, ctxErr)
}

func TestKafkaConsumer_SkipsMalformedRecord(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var calls int
	c := &KafkaConsumer{
		handler: func(context.Context, OrderSubmitted) error {
			calls++
			return nil
		},
		lg: zap.New(core),
	}

	c.handleRecord(context.Background(), []byte("{"), 11)

	assert.Zero(t, calls)
	entries := logs.FilterMessage("Skipping malformed order event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(11), entries[0].ContextMap()["offset"])
}
