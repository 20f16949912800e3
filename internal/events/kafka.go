package events

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaConfig addresses the topic order events are exchanged on.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// KafkaPublisher produces events to a Kafka topic.
type KafkaPublisher struct {
	client *kgo.Client
}

// NewKafkaPublisher connects a producer to cfg.Brokers.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return &KafkaPublisher{client: client}, nil
}

// PublishOrderSubmitted produces ev synchronously, keyed by order ID so
// events for one order stay on one partition.
func (p *KafkaPublisher) PublishOrderSubmitted(ctx context.Context, ev OrderSubmitted) error {
	rec := &kgo.Record{
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value: ev.Marshal(),
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return errors.Wrap(err, "produce order submitted")
	}
	return nil
}

// Ping checks that at least one broker is reachable.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// KafkaConsumer reads order events from a consumer group and passes them to
// a handler.
type KafkaConsumer struct {
	client  *kgo.Client
	handler Handler
	lg      *zap.Logger
}

// NewKafkaConsumer joins cfg.Group and subscribes to cfg.Topic.
func NewKafkaConsumer(lg *zap.Logger, cfg KafkaConfig, handler Handler) (*KafkaConsumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka consumer")
	}
	return &KafkaConsumer{client: client, handler: handler, lg: lg}, nil
}

// Run polls until ctx is done or the client is closed. Undecodable records
// and handler failures are logged and skipped.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		for _, fe := range fetches.Errors() {
			c.lg.Warn("Kafka fetch error",
				zap.String("topic", fe.Topic),
				zap.Int32("partition", fe.Partition),
				zap.Error(fe.Err),
			)
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			c.handleRecord(ctx, rec.Value, rec.Offset)
		})
	}
}

func (c *KafkaConsumer) handleRecord(ctx context.Context, value []byte, offset int64) {
	ev, err := UnmarshalOrderSubmitted(value)
	if err != nil {
		c.lg.Warn("Skipping malformed order event", zap.Int64("offset", offset), zap.Error(err))
		return
	}
	// A fetched record is delivered in full even when shutdown begins.
	if err := c.handler(context.WithoutCancel(ctx), ev); err != nil {
		c.lg.Error("Order submitted handler failed",
			zap.Int64("order_id", ev.OrderID),
			zap.Error(err),
		)
	}
}
