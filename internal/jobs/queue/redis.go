package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// RedisQueue is a reliable list queue:
//
//	<prefix>:<name>             pending tasks (LPUSH in, BRPOPLPUSH out)
//	<prefix>:<name>:processing  tasks handed to a worker and not yet acked
//	<prefix>:<name>:leases      zset of processing tasks scored by lease deadline (unix ms)
type RedisQueue struct {
	rdb   goredis.UniversalClient
	log   *logger.Logger
	lease time.Duration

	pendingKey    string
	processingKey string
	leasesKey     string
}

var _ Dispatcher = (*RedisQueue)(nil)
var _ Consumer = (*RedisQueue)(nil)
var _ Nacker = (*RedisQueue)(nil)

func NewRedisQueue(rdb goredis.UniversalClient, baseLog *logger.Logger, cfg Config) (*RedisQueue, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	cfg = cfg.withDefaults()
	base := cfg.Prefix + ":" + cfg.Name
	return &RedisQueue{
		rdb:           rdb,
		log:           baseLog.With("component", "RedisQueue", "queue", base),
		lease:         cfg.VisibilityTimeout,
		pendingKey:    base,
		processingKey: base + ":processing",
		leasesKey:     base + ":leases",
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	raw, err := encodeTask(task)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.pendingKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.JobID, err)
	}
	q.log.Debug("task enqueued", "job_id", task.JobID, "job_type", task.Type)
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, wait time.Duration) (*Delivery, error) {
	if wait <= 0 {
		wait = time.Second
	}
	raw, err := q.rdb.BRPopLPush(ctx, q.pendingKey, q.processingKey, wait).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receive: %w", err)
	}

	now := time.Now()
	deadline := now.Add(q.lease)
	if err := q.rdb.ZAdd(ctx, q.leasesKey, goredis.Z{Score: float64(deadline.UnixMilli()), Member: raw}).Err(); err != nil {
		// The reaper leases orphaned processing entries, so the task is not lost.
		q.log.Warn("lease write failed", "error", err)
	}

	task, err := decodeTask(raw)
	if err != nil {
		q.log.Error("dropping undecodable task", "error", err, "raw", raw)
		_ = q.remove(ctx, raw)
		return nil, nil
	}
	return &Delivery{Task: task, Deadline: deadline, raw: raw, receivedAt: now}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	if d == nil {
		return nil
	}
	return q.remove(ctx, d.raw)
}

// Nack shortens the lease to delay; the next RequeueExpired pass after that moves it back.
func (q *RedisQueue) Nack(ctx context.Context, d *Delivery, delay time.Duration) error {
	if d == nil {
		return nil
	}
	at := time.Now().Add(delay)
	if err := q.rdb.ZAdd(ctx, q.leasesKey, goredis.Z{Score: float64(at.UnixMilli()), Member: d.raw}).Err(); err != nil {
		return fmt.Errorf("nack: %w", err)
	}
	return nil
}

func (q *RedisQueue) remove(ctx context.Context, raw string) error {
	_, err := q.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.LRem(ctx, q.processingKey, 1, raw)
		p.ZRem(ctx, q.leasesKey, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

// requeueScript moves expired leases back to the head of the pending list. Processing entries
// with no lease at all (a worker died between BRPOPLPUSH and ZADD) get a fresh lease so the next
// pass can reclaim them.
var requeueScript = goredis.NewScript(`
local moved = 0
local expired = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', ARGV[1])
for _, raw in ipairs(expired) do
  redis.call('ZREM', KEYS[3], raw)
  redis.call('LREM', KEYS[2], 1, raw)
  redis.call('RPUSH', KEYS[1], raw)
  moved = moved + 1
end
local inflight = redis.call('LRANGE', KEYS[2], 0, -1)
for _, raw in ipairs(inflight) do
  if not redis.call('ZSCORE', KEYS[3], raw) then
    redis.call('ZADD', KEYS[3], ARGV[2], raw)
  end
end
return moved
`)

func (q *RedisQueue) RequeueExpired(ctx context.Context) (int, error) {
	now := time.Now()
	n, err := requeueScript.Run(ctx, q.rdb,
		[]string{q.pendingKey, q.processingKey, q.leasesKey},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(q.lease).UnixMilli(), 10),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue expired: %w", err)
	}
	if n > 0 {
		q.log.Warn("requeued expired deliveries", "count", n)
	}
	return n, nil
}

// Len reports pending and in-flight counts.
func (q *RedisQueue) Len(ctx context.Context) (pending, processing int64, err error) {
	pipe := q.rdb.Pipeline()
	p := pipe.LLen(ctx, q.pendingKey)
	r := pipe.LLen(ctx, q.processingKey)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return p.Val(), r.Val(), nil
}
