// Command worker runs the Worker Pool tier as its own OS process, pulling
// WorkItems from Redis-backed lane queues and reporting status/results
// back to the Collector running inside cmd/engine over a Redis-backed
// event queue (SPEC_FULL.md §0's distributed-workers mode; see
// internal/collector/bridge.go for the engine side).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wbia/jobengine/internal/bus/redisqueue"
	"github.com/wbia/jobengine/internal/collector"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/platform/clock"
	"github.com/wbia/jobengine/internal/platform/config"
	"github.com/wbia/jobengine/internal/platform/logger"
	"github.com/wbia/jobengine/internal/worker"
)

const remoteEventsKey = "jobengine:remote_events"

// ensureFallbackLane mirrors internal/lane.Dispatcher's implicit "slow"
// lane so this process always has a pool for jobs that fell back engine-side.
func ensureFallbackLane(lanes []string) []string {
	for _, l := range lanes {
		if l == "slow" {
			return lanes
		}
	}
	return append(append([]string{}, lanes...), "slow")
}

func main() {
	log, err := logger.New(strings.TrimSpace(os.Getenv("LOG_MODE")))
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load(log)
	if !cfg.DistributedWorkers {
		log.Fatal("cmd/worker requires JOBENGINE_DISTRIBUTED_WORKERS=true")
	}
	_ = clock.New(cfg.Timezone)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := redisqueue.Dial(ctx, log, redisqueue.Options{
		Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
	})
	if err != nil {
		log.Fatal("failed to dial redis", "error", err)
	}
	defer rdb.Close()

	events := redisqueue.New[collector.RemoteEvent](rdb, log, remoteEventsKey)
	notifier := worker.NewRemoteNotifier(events, log)

	registry := worker.NewRegistry()
	if err := registry.Register("helloworld", worker.Helloworld); err != nil {
		log.Fatal("failed to register builtin handler", "error", err)
	}

	retry := worker.RetryPolicy{Attempts: cfg.RetryAttempts, DelayMin: cfg.RetryDelayMin, DelayMax: cfg.RetryDelayMax}

	for _, laneName := range ensureFallbackLane(cfg.Lanes) {
		q := redisqueue.New[jobtypes.WorkItem](rdb, log, "jobengine:lane:"+laneName)
		pool := worker.NewPool(laneName, q, registry, notifier, retry, log, cfg.WorkersPerLane)
		pool.Run(ctx)
	}

	log.Info("worker process ready", "lanes", cfg.Lanes)
	<-ctx.Done()
	log.Info("worker process shutting down")
}
