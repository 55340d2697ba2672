// Command engine runs Intake, the Lane Dispatchers, the Collector, and
// (unless JOBENGINE_DISTRIBUTED_WORKERS is set) the Worker Pools, fronted
// by the §6 HTTP API. Grounded on the teacher's cmd/main.go lifecycle:
// build the app, start background tiers, serve until the listener exits.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wbia/jobengine/internal/app"
	"github.com/wbia/jobengine/internal/worker"
)

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	a, err := app.New(func(r *worker.Registry) {
		// Built-in actions are already registered by app.New; a real
		// deployment would call r.Register(...) here for domain actions.
		_ = r
	})
	if err != nil {
		fmt.Printf("failed to initialize job engine: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		a.Log.Fatal("failed to start job engine", "error", err)
	}

	port := getEnv("PORT", "8080")
	a.Log.Info("job engine listening", "port", port)
	if err := a.Run(":" + port); err != nil {
		a.Log.Fatal("http server failed", "error", err)
	}
}
