// Package config loads the §6 Tunables table from the environment,
// adapted from the teacher's internal/app.LoadConfig + internal/utils env
// helpers.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wbia/jobengine/internal/platform/logger"
)

// Config holds every environment-tunable knob §6 names.
type Config struct {
	StoreDir string
	Lanes    []string

	WorkersPerLane int

	ArchiveHorizon time.Duration
	MaxAttempts    int

	RetryAttempts   int
	RetryDelayMin   time.Duration
	RetryDelayMax   time.Duration
	LockWaitDeadline time.Duration

	Timezone string

	// DistributedWorkers switches the lane queues and worker pool topology
	// to the redisqueue-backed mode described in SPEC_FULL.md §0: cmd/engine
	// runs Intake/Collector/Dispatchers and bridges worker events over
	// Redis instead of running worker pools in-process; cmd/worker runs the
	// pools as a separate process against the same Redis instance.
	DistributedWorkers bool
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
}

// Load reads environment variables into a Config, applying the §6 defaults.
func Load(log *logger.Logger) Config {
	cfg := Config{
		StoreDir:         getEnv("JOBENGINE_STORE_DIR", "./jobengine-store", log),
		Lanes:            splitLanes(getEnv("JOBENGINE_LANES", "slow,fast", log)),
		WorkersPerLane:   getEnvAsInt("JOBENGINE_WORKERS_PER_LANE", 2, log),
		ArchiveHorizon:   time.Duration(getEnvAsInt("JOBENGINE_ARCHIVE_HORIZON_DAYS", 3, log)) * 24 * time.Hour,
		MaxAttempts:      getEnvAsInt("JOBENGINE_MAX_ATTEMPTS", 20, log),
		RetryAttempts:    clampRetryAttempts(getEnvAsInt("JOBENGINE_RETRY_ATTEMPTS", 3, log)),
		RetryDelayMin:    time.Duration(getEnvAsInt("JOBENGINE_RETRY_DELAY_MIN_SEC", 1, log)) * time.Second,
		RetryDelayMax:    time.Duration(getEnvAsInt("JOBENGINE_RETRY_DELAY_MAX_SEC", 60, log)) * time.Second,
		LockWaitDeadline: time.Duration(getEnvAsInt("JOBENGINE_LOCK_WAIT_DEADLINE_SEC", 600, log)) * time.Second,
		Timezone:         getEnv("JOBENGINE_TIMEZONE", "US/Pacific", log),

		DistributedWorkers: getEnv("JOBENGINE_DISTRIBUTED_WORKERS", "false", log) == "true",
		RedisAddr:          getEnv("JOBENGINE_REDIS_ADDR", "localhost:6379", log),
		RedisPassword:      getEnv("JOBENGINE_REDIS_PASSWORD", "", log),
		RedisDB:            getEnvAsInt("JOBENGINE_REDIS_DB", 0, log),
	}
	return cfg
}

// clampRetryAttempts enforces the §4.4 hard ceiling of 10.
func clampRetryAttempts(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func splitLanes(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"slow", "fast"}
	}
	return out
}

func getEnv(key, defaultVal string, log *logger.Logger) string {
	if l := log; l != nil {
		log = l.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func getEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	raw := getEnv(key, strconv.Itoa(defaultVal), log)
	v, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("environment variable is not an int, using default", "env_var", key, "value", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return v
}
