package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

func newRedisQueue(t *testing.T, lease time.Duration) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q, err := NewRedisQueue(rdb, logger.Nop(), Config{Name: "default", Prefix: "jobs", VisibilityTimeout: lease})
	require.NoError(t, err)
	return q, mr
}

func sampleTask() Task {
	return Task{
		Type:      domainjobs.JobTypeExtract,
		JobID:     uuid.New(),
		ProjectID: uuid.New(),
		Params:    json.RawMessage(`{"thickness":3}`),
	}
}

func TestRedisQueue_EnqueueReceiveAck(t *testing.T) {
	q, mr := newRedisQueue(t, time.Minute)
	ctx := context.Background()

	task := sampleTask()
	require.NoError(t, q.Enqueue(ctx, task))
	assert.True(t, mr.Exists("jobs:default"))

	d, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, task.JobID, d.Task.JobID)
	assert.Equal(t, task.Type, d.Task.Type)
	assert.JSONEq(t, `{"thickness":3}`, string(d.Task.Params))
	assert.False(t, d.Task.EnqueuedAt.IsZero())

	pending, processing, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
	assert.Equal(t, int64(1), processing)

	require.NoError(t, q.Ack(ctx, d))
	_, processing, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)
	assert.False(t, mr.Exists("jobs:default:leases"))
}

func TestRedisQueue_FIFO(t *testing.T) {
	q, _ := newRedisQueue(t, time.Minute)
	ctx := context.Background()

	first, second := sampleTask(), sampleTask()
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	d1, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	d2, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, d1.Task.JobID)
	assert.Equal(t, second.JobID, d2.Task.JobID)
}

func TestRedisQueue_ReceiveEmpty(t *testing.T) {
	q, _ := newRedisQueue(t, time.Minute)

	d, err := q.Receive(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestRedisQueue_UnackedDeliveryIsRedelivered(t *testing.T) {
	q, _ := newRedisQueue(t, 20*time.Millisecond)
	ctx := context.Background()

	task := sampleTask()
	require.NoError(t, q.Enqueue(ctx, task))
	d, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)

	n, err := q.RequeueExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "lease still valid")

	time.Sleep(50 * time.Millisecond)
	n, err = q.RequeueExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, task.JobID, again.Task.JobID)

	require.NoError(t, q.Ack(ctx, again))
	pending, processing, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, processing)
}

func TestRedisQueue_OrphanedProcessingEntryGetsLeased(t *testing.T) {
	q, mr := newRedisQueue(t, 20*time.Millisecond)
	ctx := context.Background()

	raw, err := encodeTask(sampleTask())
	require.NoError(t, err)
	_, err = mr.Lpush("jobs:default:processing", raw)
	require.NoError(t, err)

	n, err := q.RequeueExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, mr.Exists("jobs:default:leases"))

	time.Sleep(50 * time.Millisecond)
	n, err = q.RequeueExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisQueue_RejectsInvalidTask(t *testing.T) {
	q, _ := newRedisQueue(t, time.Minute)

	err := q.Enqueue(context.Background(), Task{Type: "render", JobID: uuid.New()})
	assert.ErrorIs(t, err, domainjobs.ErrUnknownJobType)

	err = q.Enqueue(context.Background(), Task{Type: domainjobs.JobTypeExtract})
	assert.Error(t, err)
}

func TestRedisQueue_DropsGarbage(t *testing.T) {
	q, mr := newRedisQueue(t, time.Minute)
	_, err := mr.Lpush("jobs:default", "{not json")
	require.NoError(t, err)

	d, err := q.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, d)
	_, processing, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	task := sampleTask()
	require.NoError(t, q.Enqueue(ctx, task))
	assert.Equal(t, 1, q.Len())

	d, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, task.JobID, d.Task.JobID)
	require.NoError(t, q.Ack(ctx, d))

	d, err = q.Receive(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, d)

	q.Close()
	assert.ErrorIs(t, q.Enqueue(ctx, sampleTask()), ErrClosed)
	_, err = q.Receive(ctx, time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryQueue_EnqueueDoesNotBlockWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, sampleTask()))

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, sampleTask()) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrFull)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	assert.Equal(t, 1, q.Len())

	closed := make(chan struct{})
	go func() { q.Close(); close(closed) }()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
}

func TestRedisQueue_NackShortensLease(t *testing.T) {
	q, _ := newRedisQueue(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, sampleTask()))
	d, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)

	require.NoError(t, q.Nack(ctx, d, 0))
	time.Sleep(5 * time.Millisecond)
	n, err := q.RequeueExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, processing, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)
	assert.Zero(t, processing)
}

func TestMemoryQueue_NackRedelivers(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()
	ctx := context.Background()

	task := sampleTask()
	require.NoError(t, q.Enqueue(ctx, task))
	d, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)

	require.NoError(t, q.Nack(ctx, d, 10*time.Millisecond))
	again, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, task.JobID, again.Task.JobID)
}
