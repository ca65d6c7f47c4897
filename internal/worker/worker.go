package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"todo-api/internal/config"
	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

// Invalidator drops cached todo reads.
type Invalidator interface {
	InvalidateTodos(ctx context.Context) error
}

// MessageReader is the subset of *kafka.Reader the worker needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader returns a consumer-group reader on the todo events topic.
func NewReader(cfg *config.Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Run consumes todo events and invalidates the list cache for each one, so
// replicas sharing the cache pick up writes made elsewhere. It returns when ctx is done.
func Run(ctx context.Context, reader MessageReader, cache Invalidator) {
	defer reader.Close()

	logger.Info(ctx, "Kafka consumer started")
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Kafka consumer stopped")
				return
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, cache, msg.Value); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
		}
		// Committed even on failure so a poison message does not block the partition.
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
	}
}

func handleMessage(ctx context.Context, cache Invalidator, payload []byte) error {
	var evt models.TodoEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	switch evt.Action {
	case models.ActionCreated, models.ActionUpdated, models.ActionDeleted:
	default:
		return fmt.Errorf("unknown action %q", evt.Action)
	}
	if err := cache.InvalidateTodos(ctx); err != nil {
		return fmt.Errorf("invalidate after %s of todo %d: %w", evt.Action, evt.TodoID, err)
	}
	logger.Debug(ctx, "Cache invalidated from event", "action", evt.Action, "todo_id", evt.TodoID, "event_id", evt.ID)
	return nil
}
