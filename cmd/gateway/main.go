// Command gateway runs the cluster gateway: it loads the static node list
// and routing/health/cache tunables, starts the health monitor and cache
// synchronizer, and serves the Anthropic-compatible /v1/messages and
// /v1/models endpoints over the cluster. Grounded on the teacher's
// cmd/server/main.go wiring and shutdown sequence, generalized from a
// single-tenant provider proxy to a multi-node cluster gateway: the
// per-provider config-loader/auth-middleware/usage-committer wiring is
// replaced with health.Monitor/cache.Synchronizer/router.Router, and the
// DB-backed quota routing is replaced with the in-memory cluster router.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpay/cluster-gateway/internal/cache"
	"github.com/rpay/cluster-gateway/internal/config"
	"github.com/rpay/cluster-gateway/internal/events"
	"github.com/rpay/cluster-gateway/internal/gatewayhttp"
	"github.com/rpay/cluster-gateway/internal/health"
	"github.com/rpay/cluster-gateway/internal/intent"
	"github.com/rpay/cluster-gateway/internal/metrics"
	"github.com/rpay/cluster-gateway/internal/router"
	"github.com/rpay/cluster-gateway/internal/telemetry"
	"github.com/rpay/cluster-gateway/internal/upstream/openaicompat"
)

func main() {
	logger := log.New(os.Stdout, "[cluster-gateway] ", log.LstdFlags|log.Lshortfile)

	runnerFile, err := os.Create("runner.log")
	if err != nil {
		logger.Fatalf("failed to create runner.log: %v", err)
	}
	defer runnerFile.Close()
	runnerLogger := log.New(runnerFile, "", log.LstdFlags)

	logger.Println("starting cluster gateway...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	nodes, err := cfg.LoadNodes()
	if err != nil {
		logger.Fatalf("failed to load nodes: %v", err)
	}
	logger.Printf("loaded %d node(s) from %s", len(nodes), cfg.NodesConfigPath)

	bus := events.NewBus(logger)

	tracker := health.NewTracker(health.Thresholds{
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		UnhealthyRate:          cfg.UnhealthyThreshold,
		RecoveryRate:           cfg.RecoveryThreshold,
	}, events.HealthAdapter{Bus: bus})

	monitor := health.NewMonitor(tracker, health.MonitorConfig{
		Interval:     cfg.HealthCheckInterval,
		ProbeTimeout: cfg.ProbeTimeout,
	}, logger)
	monitor.Start(nodes)
	defer monitor.Stop()

	registry := cache.NewRegistry(cfg.MaxCacheAge)

	synchronizer := cache.NewSynchronizer(registry, cfg.CacheSyncInterval, events.CacheSyncAdapter{Bus: bus})
	synchronizer.Start(nodes)
	defer synchronizer.Stop()

	warmer := cache.NewWarmer(registry, cache.WarmerConfig{
		Concurrency: cfg.WarmupConcurrency,
		Timeout:     cfg.WarmupTimeout,
	}, events.WarmAdapter{Bus: bus})
	_ = warmer // exposed for future warmup-on-demand endpoints; not yet wired to an HTTP route

	rt := router.NewRouter(nodes, tracker, registry, router.Config{
		Strategy:   cfg.RoutingStrategy,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	client := openaicompat.NewClient()

	var classifierCaller intent.Caller
	if len(nodes) > 0 {
		classifierCaller = openaicompat.BoundCaller{Client: client, Node: nodes[0], Model: classifierModel()}
	}
	classifier := intent.NewClassifier(intent.DefaultConfig(), classifierCaller)

	m := metrics.New()
	tracer := telemetry.GetTracer(telemetry.Settings{Enabled: telemetryEnabled()})

	handler := gatewayhttp.NewHandler(gatewayhttp.Config{
		Nodes:        nodes,
		Router:       rt,
		Client:       client,
		Classifier:   classifier,
		Tracker:      tracker,
		Metrics:      m,
		Tracer:       tracer,
		Logger:       logger,
		RunnerLogger: runnerLogger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", m.HandlerWithNodes(tracker, rt, nodes))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("server listening on http://0.0.0.0:%s", cfg.Port)
		logger.Println("routes:")
		logger.Println("  GET  /health        - gateway liveness")
		logger.Println("  GET  /metrics       - cluster + per-node debug snapshot")
		logger.Println("  GET  /v1/models     - cluster-wide model catalogue")
		logger.Println("  POST /v1/messages   - Anthropic Messages API (streaming and non-streaming)")
		logger.Printf("routing strategy: %s, max retries: %d", cfg.RoutingStrategy, cfg.MaxRetries)
		logger.Println("press ctrl+c to stop...")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("server forced to shutdown: %v", err)
	}
	logger.Println("server stopped gracefully")
}

// classifierModel is the model used for the intent classifier's LLM
// fallback stage; overridable via CLASSIFIER_MODEL for deployments whose
// nodes expose a distinct lightweight classification model.
func classifierModel() string {
	if v := os.Getenv("CLASSIFIER_MODEL"); v != "" {
		return v
	}
	return "gpt-4o-mini"
}

func telemetryEnabled() bool {
	return os.Getenv("OTEL_ENABLED") == "true"
}
