// Package app wires the four tiers (§4) and the durable stores into one
// running engine, grounded on the teacher's internal/app.New/Start/Close
// lifecycle shape but replacing its gorm/gin dependency graph with the job
// engine's own Store/Collector/Intake/Dispatcher/Pool set.
package app

import (
	"context"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/wbia/jobengine/internal/bus"
	"github.com/wbia/jobengine/internal/bus/memqueue"
	"github.com/wbia/jobengine/internal/bus/redisqueue"
	"github.com/wbia/jobengine/internal/callback"
	"github.com/gin-gonic/gin"

	"github.com/wbia/jobengine/internal/client"
	"github.com/wbia/jobengine/internal/collector"
	"github.com/wbia/jobengine/internal/httpapi"
	"github.com/wbia/jobengine/internal/intake"
	"github.com/wbia/jobengine/internal/jobtypes"
	"github.com/wbia/jobengine/internal/lane"
	"github.com/wbia/jobengine/internal/platform/clock"
	"github.com/wbia/jobengine/internal/platform/config"
	"github.com/wbia/jobengine/internal/platform/logger"
	"github.com/wbia/jobengine/internal/platform/tracing"
	"github.com/wbia/jobengine/internal/store"
	"github.com/wbia/jobengine/internal/worker"
)

// remoteEventsKey names the Redis list cmd/worker processes push
// RemoteEvents onto and cmd/engine's DrainRemote pulls from.
const remoteEventsKey = "jobengine:remote_events"

// App is the engine side of the deployment: Intake, the Lane Dispatchers,
// the Collector, and — unless Config.DistributedWorkers is set — the
// Worker Pools. Client is the facade cmd/engine's HTTP layer calls.
type App struct {
	Log    *logger.Logger
	Cfg    config.Config
	Client *client.Client
	Router *gin.Engine

	collector *collector.Collector
	intakeQ   *intake.Intake
	lanes     *lane.Dispatcher
	pools     []*worker.Pool
	rdb       *goredis.Client

	shutdownTracing func(context.Context) error

	g      *errgroup.Group
	cancel context.CancelFunc
}

// New builds every tier but does not start any goroutines; call Start for
// that. registerFn lets the caller (cmd/engine) register worker actions
// beyond the built-in ones before the pools start pulling work.
func New(registerFn func(*worker.Registry)) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("app: init logger: %w", err)
	}

	cfg := config.Load(log)
	clk := clock.New(cfg.Timezone)

	shutdownTracing := tracing.Init(context.Background(), log, tracing.Config{ServiceName: "jobengine"})

	st, err := store.New(cfg.StoreDir, log, clk, cfg.LockWaitDeadline)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	cb := callback.New(log)
	coll := collector.New(log, clk, st, cb)

	var rdb *goredis.Client
	queueFactory := func(laneName string) bus.Queue[jobtypes.WorkItem] {
		return memqueue.New[jobtypes.WorkItem]()
	}
	if cfg.DistributedWorkers {
		rdb, err = redisqueue.Dial(context.Background(), log, redisqueue.Options{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
		})
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("app: dial redis: %w", err)
		}
		queueFactory = func(laneName string) bus.Queue[jobtypes.WorkItem] {
			return redisqueue.New[jobtypes.WorkItem](rdb, log, "jobengine:lane:"+laneName)
		}
	}
	dispatcher := lane.New(log, cfg.Lanes, queueFactory)

	ik := intake.New(log, clk, coll, dispatcher)
	cl := client.New(log, clk, st, ik, coll, cfg.ArchiveHorizon, cfg.MaxAttempts)

	var pools []*worker.Pool
	if !cfg.DistributedWorkers {
		registry := worker.NewRegistry()
		registerBuiltins(registry)
		if registerFn != nil {
			registerFn(registry)
		}
		retry := worker.RetryPolicy{Attempts: cfg.RetryAttempts, DelayMin: cfg.RetryDelayMin, DelayMax: cfg.RetryDelayMax}
		for _, laneName := range dispatcher.Lanes() {
			q, ok := dispatcher.Queue(laneName)
			if !ok {
				continue
			}
			pools = append(pools, worker.NewPool(laneName, q, registry, coll, retry, log, cfg.WorkersPerLane))
		}
	}

	return &App{
		Log:             log,
		Cfg:             cfg,
		Client:          cl,
		Router:          httpapi.NewRouter(log, cl),
		collector:       coll,
		intakeQ:         ik,
		lanes:           dispatcher,
		pools:           pools,
		rdb:             rdb,
		shutdownTracing: shutdownTracing,
	}, nil
}

// registerBuiltins adds the engine's built-in actions to a fresh registry.
// Registration errors here would only ever be programmer error (duplicate
// action name), so they're fatal at startup rather than surfaced to callers.
func registerBuiltins(r *worker.Registry) {
	if err := r.Register("helloworld", worker.Helloworld); err != nil {
		panic(fmt.Sprintf("app: register builtin handler: %v", err))
	}
}

// Start launches the Collector and Intake goroutines under an errgroup,
// runs crash recovery against them, then starts the remote-event bridge
// (distributed mode, also under the errgroup) or the Worker Pools (their
// own goroutines, outside the errgroup). Every goroutine shares one
// cancellable context and returns only when it is cancelled, which Close
// does.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	a.g = g

	g.Go(func() error { a.collector.Run(gctx); return nil })
	g.Go(func() error { a.intakeQ.Run(gctx); return nil })

	// QueueInterruptedJobs submits to Intake and reads from the Collector, so
	// both of their mailbox goroutines must already be running before this
	// call; it blocks waiting on replies that goroutine delivers.
	if err := a.Client.QueueInterruptedJobs(gctx); err != nil {
		a.Log.Warn("app: recovery pass failed", "error", err)
	}

	if a.Cfg.DistributedWorkers {
		events := redisqueue.New[collector.RemoteEvent](a.rdb, a.Log, remoteEventsKey)
		g.Go(func() error { collector.DrainRemote(gctx, events, a.collector); return nil })
	} else {
		for _, p := range a.pools {
			p.Run(gctx)
		}
	}

	return nil
}

// Run starts the HTTP server and blocks until it stops or fails.
func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app: not initialized")
	}
	return a.Router.Run(addr)
}

// Wait blocks until every supervised goroutine returns (normally only on
// shutdown, since Run/DrainRemote loop until ctx is done).
func (a *App) Wait() error {
	if a.g == nil {
		return nil
	}
	return a.g.Wait()
}

// Close cancels every tier, closes the lane queues, and flushes logs.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.g != nil {
		_ = a.g.Wait()
	}
	if a.lanes != nil {
		_ = a.lanes.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.shutdownTracing != nil {
		_ = a.shutdownTracing(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
