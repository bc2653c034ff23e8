package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/queue"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingExecutor fails the first failN executions of a job, then succeeds.
type recordingExecutor struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	failN int
	done  chan uuid.UUID
}

func newRecordingExecutor(failN int) *recordingExecutor {
	return &recordingExecutor{calls: map[uuid.UUID]int{}, failN: failN, done: make(chan uuid.UUID, 16)}
}

func (e *recordingExecutor) Execute(_ context.Context, jobID uuid.UUID) error {
	e.mu.Lock()
	e.calls[jobID]++
	n := e.calls[jobID]
	e.mu.Unlock()
	if n <= e.failN {
		return errors.New("database unavailable")
	}
	e.done <- jobID
	return nil
}

func (e *recordingExecutor) count(id uuid.UUID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[id]
}

func task() queue.Task {
	return queue.Task{Type: domainjobs.JobTypeExtract, JobID: uuid.New(), ProjectID: uuid.New()}
}

func start(t *testing.T, w *Worker) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-errc:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
			return nil
		}
	}
}

func waitDone(t *testing.T, exec *recordingExecutor, want int) []uuid.UUID {
	t.Helper()
	var got []uuid.UUID
	timeout := time.After(5 * time.Second)
	for len(got) < want {
		select {
		case id := <-exec.done:
			got = append(got, id)
		case <-timeout:
			t.Fatalf("only %d of %d tasks executed", len(got), want)
		}
	}
	return got
}

func TestWorker_ExecutesEveryTask(t *testing.T) {
	q := queue.NewMemoryQueue(8)
	defer q.Close()
	exec := newRecordingExecutor(0)
	w := NewWorker(logger.Nop(), q, exec, nil, Config{Concurrency: 3, PollWait: 10 * time.Millisecond})
	stop := start(t, w)

	want := map[uuid.UUID]bool{}
	for i := 0; i < 5; i++ {
		tk := task()
		want[tk.JobID] = true
		require.NoError(t, q.Enqueue(context.Background(), tk))
	}

	for _, id := range waitDone(t, exec, 5) {
		assert.True(t, want[id])
		assert.Equal(t, 1, exec.count(id))
	}
	require.NoError(t, stop())
}

func TestWorker_RetriesAfterExecutorError(t *testing.T) {
	q := queue.NewMemoryQueue(8)
	defer q.Close()
	exec := newRecordingExecutor(1)
	w := NewWorker(logger.Nop(), q, exec, nil, Config{Concurrency: 1, PollWait: 10 * time.Millisecond, RetryDelay: 10 * time.Millisecond})
	stop := start(t, w)

	tk := task()
	require.NoError(t, q.Enqueue(context.Background(), tk))

	got := waitDone(t, exec, 1)
	assert.Equal(t, tk.JobID, got[0])
	assert.Equal(t, 2, exec.count(tk.JobID))
	require.NoError(t, stop())
}

func TestWorker_StopsWhenQueueCloses(t *testing.T) {
	q := queue.NewMemoryQueue(1)
	w := NewWorker(logger.Nop(), q, newRecordingExecutor(0), nil, Config{Concurrency: 2, PollWait: 10 * time.Millisecond})

	errc := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { errc <- w.Run(ctx) }()
	q.Close()

	// The reaper keeps running until ctx ends.
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func newRedisQueue(t *testing.T, lease time.Duration) *queue.RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q, err := queue.NewRedisQueue(rdb, logger.Nop(), queue.Config{VisibilityTimeout: lease})
	require.NoError(t, err)
	return q
}

func TestWorker_RedisAcksCompletedTasks(t *testing.T) {
	q := newRedisQueue(t, time.Minute)
	exec := newRecordingExecutor(0)
	w := NewWorker(logger.Nop(), q, exec, nil, Config{Concurrency: 2, PollWait: 50 * time.Millisecond})
	stop := start(t, w)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), task()))
	}
	waitDone(t, exec, 3)
	require.NoError(t, stop())

	pending, processing, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, processing)
}

func TestWorker_ReaperRecoversAbandonedDelivery(t *testing.T) {
	q := newRedisQueue(t, 20*time.Millisecond)
	ctx := context.Background()
	tk := task()
	require.NoError(t, q.Enqueue(ctx, tk))

	// A worker that crashed after receiving.
	d, err := q.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)

	exec := newRecordingExecutor(0)
	w := NewWorker(logger.Nop(), q, exec, nil, Config{Concurrency: 1, PollWait: 20 * time.Millisecond, ReapInterval: 20 * time.Millisecond})
	stop := start(t, w)

	got := waitDone(t, exec, 1)
	assert.Equal(t, tk.JobID, got[0])
	require.NoError(t, stop())
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, DefaultConcurrency, c.Concurrency)
	assert.Equal(t, DefaultPollWait, c.PollWait)
	assert.Equal(t, DefaultReapInterval, c.ReapInterval)
	assert.Equal(t, DefaultRetryDelay, c.RetryDelay)
}
