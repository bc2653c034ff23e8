package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	redisclient "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/clients/redis"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/queue"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/runtime"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/jobs/worker"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/services"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/temporalx"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/temporalx/jobrun"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/temporalx/temporalworker"
)

const memoryQueueCapacity = 1024

// JobRunner is the consuming side of a queue backend: the redis/memory poller or the Temporal
// worker.
type JobRunner interface {
	Run(ctx context.Context) error
}

// Clients holds the connections and the queue backend chosen by QUEUE_BACKEND.
type Clients struct {
	Redis    *goredis.Client
	Temporal temporalsdkclient.Client
	Events   services.JobEventPublisher

	Dispatcher queue.Dispatcher
	consumer   queue.Consumer
	memory     *queue.MemoryQueue
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (*Clients, error) {
	log.Info("Wiring clients...", "queue_backend", cfg.Queue.Backend)
	c := &Clients{}

	switch cfg.Queue.Backend {
	case queue.BackendRedis:
		rdb, err := redisclient.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
		q, err := queue.NewRedisQueue(rdb, log, cfg.Queue)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init redis queue: %w", err)
		}
		c.Dispatcher, c.consumer = q, q

	case queue.BackendMemory:
		if cfg.RunServer != cfg.RunWorker {
			log.Warn("Memory queue only delivers within one process; run the server and worker together")
		}
		c.memory = queue.NewMemoryQueue(memoryQueueCapacity)
		c.Dispatcher, c.consumer = c.memory, c.memory

	case queue.BackendTemporal:
		tc, err := temporalx.NewClient(ctx, cfg.Temporal, log)
		if err != nil {
			return nil, fmt.Errorf("init temporal: %w", err)
		}
		if tc == nil {
			return nil, errors.New("QUEUE_BACKEND=temporal requires TEMPORAL_ADDRESS")
		}
		c.Temporal = tc
		d, err := jobrun.NewDispatcher(tc, cfg.Temporal.TaskQueue, cfg.JobExecutionBudget(), log)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Dispatcher = d

	default:
		return nil, fmt.Errorf("unsupported QUEUE_BACKEND %q (valid: redis, memory, temporal)", cfg.Queue.Backend)
	}

	// Events ride on redis when it is reachable. Without it the notifier only logs.
	if c.Redis == nil && cfg.RedisURL != "" {
		rdb, err := redisclient.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("Redis unavailable; job events will only be logged", "error", err)
		} else {
			c.Redis = rdb
		}
	}
	if c.Redis != nil {
		bus, err := redisclient.NewJobEventBus(c.Redis, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init job event bus: %w", err)
		}
		c.Events = bus
	}
	return c, nil
}

// jobRunner builds the consumer loop for the configured backend around exec.
func (c *Clients) jobRunner(log *logger.Logger, cfg Config, exec *runtime.Executor, metrics *observability.Metrics) (JobRunner, error) {
	if c.Temporal != nil {
		return temporalworker.NewRunner(log, c.Temporal, exec, cfg.Temporal, cfg.Worker.Concurrency)
	}
	if c.consumer == nil {
		return nil, errors.New("no queue consumer configured")
	}
	return worker.NewWorker(log, c.consumer, exec, metrics, cfg.Worker), nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.memory != nil {
		c.memory.Close()
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
