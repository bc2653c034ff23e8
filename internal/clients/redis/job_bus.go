package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	domainjobs "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/domain/jobs"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

// JobEventBus publishes job events on the per-project channel (domainjobs.Channel).
type JobEventBus struct {
	log *logger.Logger
	rdb goredis.UniversalClient
}

func NewJobEventBus(rdb goredis.UniversalClient, log *logger.Logger) (*JobEventBus, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &JobEventBus{log: log.With("service", "RedisJobEventBus"), rdb: rdb}, nil
}

func (b *JobEventBus) PublishJobEvent(ctx context.Context, ev domainjobs.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, domainjobs.Channel(ev.ProjectID), raw).Err()
}
