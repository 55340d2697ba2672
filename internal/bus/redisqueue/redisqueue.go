// Package redisqueue is the distributed Queue[T] backend: a Redis list,
// pushed with RPUSH and popped with the blocking BLPOP. This is what lets
// the Worker Pool run as separate OS processes from the Collector/Intake
// (SPEC_FULL.md §0), grounded on the teacher's
// internal/realtime/bus/redis_bus.go client-construction conventions
// (addr from config, ping-on-construct, context-scoped calls).
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wbia/jobengine/internal/bus"
	"github.com/wbia/jobengine/internal/platform/logger"
)

type queue[T any] struct {
	log *logger.Logger
	rdb *goredis.Client
	key string
	// popTimeout bounds each BLPOP round-trip so Pop can re-check ctx.Done()
	// instead of blocking past cancellation indefinitely.
	popTimeout time.Duration
}

// Options configures a Redis connection shared by one or more queues.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Dial opens (and pings) a Redis client for use with New.
func Dial(ctx context.Context, log *logger.Logger, opts Options) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redisqueue: missing addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisqueue: ping %s: %w", opts.Addr, err)
	}
	if log != nil {
		log.Info("connected to redis queue backend", "addr", opts.Addr)
	}
	return rdb, nil
}

// New returns a Queue[T] backed by the Redis list named key. Every item is
// JSON-marshaled on Push and unmarshaled on Pop, so T must be JSON-safe
// (channel fields used for in-process reply addresses have no place here —
// those stay on the memqueue-backed tiers).
func New[T any](rdb *goredis.Client, log *logger.Logger, key string) bus.Queue[T] {
	return &queue[T]{log: log, rdb: rdb, key: key, popTimeout: 2 * time.Second}
}

func (q *queue[T]) Push(ctx context.Context, item T) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("redisqueue: marshal: %w", err)
	}
	return q.rdb.RPush(ctx, q.key, raw).Err()
}

func (q *queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		res, err := q.rdb.BLPop(ctx, q.popTimeout, q.key).Result()
		if err == goredis.Nil {
			continue // timed out this round, loop to re-check ctx
		}
		if err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, fmt.Errorf("redisqueue: blpop %s: %w", q.key, err)
		}
		if len(res) != 2 {
			continue
		}
		var out T
		if err := json.Unmarshal([]byte(res[1]), &out); err != nil {
			if q.log != nil {
				q.log.Warn("redisqueue: dropping unparsable item", "key", q.key, "error", err)
			}
			continue
		}
		return out, nil
	}
}

func (q *queue[T]) Close() error {
	return nil
}
