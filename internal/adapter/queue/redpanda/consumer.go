package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Handler processes one evaluation job. A returned error marks the job
// failed; the record is still committed so a poison message cannot wedge the
// consumer, and callers may re-enqueue.
type Handler func(ctx context.Context, payload domain.EvaluateTaskPayload) error

// Consumer wraps a transactional Kafka group session feeding evaluation jobs
// to a Handler.
type Consumer struct {
	session *kgo.GroupTransactSession
	topic   string
	handler Handler
}

// NewConsumer constructs a Consumer with exactly-once semantics.
func NewConsumer(brokers []string, groupID string, handler Handler) (*Consumer, error) {
	return NewConsumerWithTransactionalID(brokers, groupID, "ai-interview-evaluator-consumer", handler)
}

// NewConsumerWithTransactionalID constructs a Consumer with a custom
// transactional ID, mainly so tests can avoid id conflicts.
func NewConsumerWithTransactionalID(brokers []string, groupID, transactionalID string, handler Handler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if handler == nil {
		return nil, fmt.Errorf("missing handler")
	}

	// Topic bootstrap happens on a plain client; the transactional session
	// must only ever see committed reads.
	tempClient, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("temp client: %w", err)
	}
	defer tempClient.Close()
	if err := createTopicIfNotExists(context.Background(), tempClient, TopicEvaluate, 1, 1); err != nil {
		slog.Warn("failed to create topic, it may already exist",
			slog.String("topic", TopicEvaluate),
			slog.Any("error", err))
	}

	kotelTracer := kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)
	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotelTracer),
	)

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicEvaluate),
		kgo.RequireStableFetchOffsets(),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10 * time.Second),
		kgo.SessionTimeout(30 * time.Second),
		kgo.HeartbeatInterval(3 * time.Second),
		kgo.FetchMaxWait(5 * time.Second),
	}

	session, err := kgo.NewGroupTransactSession(opts...)
	if err != nil {
		return nil, fmt.Errorf("redpanda transactional session: %w", err)
	}

	slog.Info("redpanda consumer created",
		slog.String("group_id", groupID),
		slog.String("topic", TopicEvaluate))
	return &Consumer{session: session, topic: TopicEvaluate, handler: handler}, nil
}

// Run polls until the context is cancelled, handing each record to the
// handler inside a consume transaction.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fetches := c.session.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Any("error", fe.Err))
			}
			continue
		}
		if fetches.Empty() {
			continue
		}

		c.session.Begin()

		fetches.EachRecord(func(rec *kgo.Record) {
			c.handleRecord(ctx, rec)
		})

		committed, err := c.session.End(ctx, kgo.TryCommit)
		if err != nil {
			slog.Error("transaction end failed", slog.Any("error", err))
			continue
		}
		if !committed {
			slog.Warn("transaction not committed, records will be redelivered")
		}
	}
}

func (c *Consumer) handleRecord(ctx context.Context, rec *kgo.Record) {
	var payload domain.EvaluateTaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		slog.Error("malformed evaluate payload, skipping",
			slog.Any("error", err),
			slog.Int64("offset", rec.Offset))
		return
	}

	if err := c.handler(ctx, payload); err != nil {
		slog.Error("evaluation job failed",
			slog.String("session_id", payload.SessionID),
			slog.Any("error", err))
	}
}

// Close tears down the underlying session.
func (c *Consumer) Close() {
	if c.session != nil {
		c.session.Close()
	}
}
