package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guttosm/fundpulse/config"
	"github.com/guttosm/fundpulse/internal/logger"
)

// RedisQueue implements Publisher and Consumer on Redis lists.
//
// Layout per queue name Q:
//   - Q: the pending list (LPUSH to publish, consumed from the right).
//   - Q:processing: in-flight messages, moved there atomically by BLMOVE on
//     receive. Ack LREMs from it; Nack LREMs and pushes back onto Q.
//
// This is the standard Redis reliable-queue pattern and gives the pipeline
// its at-least-once delivery: messages survive consumer crashes in the
// processing list and can be recovered on startup.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(cfg config.RedisConfig) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisQueue{rdb: rdb}, nil
}

// NewRedisQueueFromClient wraps an existing client (used by tests and by
// app wiring that shares one connection pool).
func NewRedisQueueFromClient(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// Close releases the underlying connection pool.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}

// Ping verifies connectivity; wired into the readiness probe.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Publish JSON-encodes v and pushes it onto the queue.
func (q *RedisQueue) Publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", queue, err)
	}
	if err := q.rdb.LPush(ctx, queue, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// Receive blocks up to wait for one message, moving it atomically into the
// processing list. Returns (nil, nil) on timeout.
func (q *RedisQueue) Receive(ctx context.Context, queue string, wait time.Duration) (Delivery, error) {
	body, err := q.rdb.BLMove(ctx, queue, processingList(queue), "RIGHT", "LEFT", wait).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receive from %s: %w", queue, err)
	}
	return &redisDelivery{q: q, queue: queue, body: []byte(body)}, nil
}

// ReceiveBatch blocks for the first message, then drains up to max without
// blocking. The transport delivers unordered batches; consumers must not
// rely on ordering between messages.
func (q *RedisQueue) ReceiveBatch(ctx context.Context, queue string, max int, wait time.Duration) ([]Delivery, error) {
	if max < 1 {
		max = 1
	}

	first, err := q.Receive(ctx, queue, wait)
	if err != nil || first == nil {
		return nil, err
	}

	batch := []Delivery{first}
	for len(batch) < max {
		body, err := q.rdb.LMove(ctx, queue, processingList(queue), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return batch, fmt.Errorf("drain %s: %w", queue, err)
		}
		batch = append(batch, &redisDelivery{q: q, queue: queue, body: []byte(body)})
	}
	return batch, nil
}

// Recover moves any messages parked in the processing list back onto the
// queue. Called on worker startup to reclaim deliveries orphaned by a crash.
func (q *RedisQueue) Recover(ctx context.Context, queue string) (int, error) {
	n := 0
	for {
		_, err := q.rdb.LMove(ctx, processingList(queue), queue, "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return n, fmt.Errorf("recover %s: %w", queue, err)
		}
		n++
	}
	if n > 0 {
		logger.L().Warn().Str("queue", queue).Int("messages", n).Msg("recovered in-flight messages")
	}
	return n, nil
}

func processingList(queue string) string {
	return queue + ":processing"
}

type redisDelivery struct {
	q     *RedisQueue
	queue string
	body  []byte
}

func (d *redisDelivery) Body() []byte { return d.body }

// Ack removes the message from the processing list.
func (d *redisDelivery) Ack(ctx context.Context) error {
	if err := d.q.rdb.LRem(ctx, processingList(d.queue), 1, string(d.body)).Err(); err != nil {
		return fmt.Errorf("ack on %s: %w", d.queue, err)
	}
	return nil
}

// Nack returns the message to its queue for at-least-once redelivery.
func (d *redisDelivery) Nack(ctx context.Context) error {
	pipe := d.q.rdb.TxPipeline()
	pipe.LRem(ctx, processingList(d.queue), 1, string(d.body))
	pipe.LPush(ctx, d.queue, string(d.body))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("nack on %s: %w", d.queue, err)
	}
	return nil
}
