// Command orchestrator runs the Dynamic LLM-Driven Workflow Orchestrator:
// HTTP/WebSocket API, queue workers, and the engine they drive. Grounded on
// the teacher's cmd/tarsy/main.go bootstrap sequence (flag + .env + env var
// config, then config/database/service init in order), adapted from Gin to
// this repo's echo v5 Server and from TARSy's ent-backed services to the
// Workflow Execution Engine's Services bundle.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowforge/orchestrator/pkg/api"
	"github.com/flowforge/orchestrator/pkg/auth"
	"github.com/flowforge/orchestrator/pkg/complexity"
	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/engine"
	"github.com/flowforge/orchestrator/pkg/events"
	"github.com/flowforge/orchestrator/pkg/llmclient"
	"github.com/flowforge/orchestrator/pkg/masking"
	"github.com/flowforge/orchestrator/pkg/mcp"
	"github.com/flowforge/orchestrator/pkg/metrics"
	"github.com/flowforge/orchestrator/pkg/observer"
	"github.com/flowforge/orchestrator/pkg/planner"
	"github.com/flowforge/orchestrator/pkg/queue"
	"github.com/flowforge/orchestrator/pkg/resolver"
	"github.com/flowforge/orchestrator/pkg/storage"
	"github.com/flowforge/orchestrator/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	httpAddr := getEnv("HTTP_ADDR", ":8080")
	podID := getEnv("POD_ID", "orchestrator-0")
	llmProviderName := getEnv("LLM_PROVIDER", "anthropic-default")

	slog.Info("starting orchestrator", "version", version.Full(), "http_addr", httpAddr, "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	dbCfg, err := storage.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database config", "error", err)
		os.Exit(1)
	}
	if err := storage.Migrate(dbCfg); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	db, err := storage.Connect(ctx, dbCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	llmCfg, err := cfg.GetLLMProvider(llmProviderName)
	if err != nil {
		slog.Error("unknown LLM provider", "provider", llmProviderName, "error", err)
		os.Exit(1)
	}
	llmClient, err := llmclient.New(llmCfg)
	if err != nil {
		slog.Error("failed to build LLM client", "provider", llmProviderName, "error", err)
		os.Exit(1)
	}

	credStore := auth.NewPgStore(db)
	injector := auth.NewInjector(credStore, nil)
	manager := mcp.NewManager(cfg.ServiceRegistry, injector)
	defer manager.Close()

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	manager.SetMetrics(reg)

	svc := engine.Services{
		Manager:    manager,
		Registry:   cfg.ServiceRegistry,
		Planner:    planner.New(llmClient, llmCfg),
		Observer:   observer.New(llmClient, llmCfg),
		Resolver:   resolver.New(llmClient, llmCfg),
		Complexity: complexity.New(llmClient, llmCfg),
		Formatter:  events.NewFormatter(llmClient, llmCfg),
		Masking:    masking.NewService(cfg.ServiceRegistry),
		Sink:       storage.NewPgSink(db),
		LLM:        llmClient,
		LLMConfig:  llmCfg,
		Metrics:    reg,
	}
	eng := engine.New(svc, cfg.Defaults, cfg.ComplexityBudgets)

	server := api.NewServer(db, eng, manager, cfg.ServiceRegistry)

	pool := queue.NewWorkerPool(podID, db, cfg.Queue, eng, server.PublisherFor)
	server.SetWorkerPool(func() []api.WorkerStatus {
		health := pool.Health()
		out := make([]api.WorkerStatus, len(health))
		for i, h := range health {
			out[i] = api.WorkerStatus{ID: h.ID, Status: string(h.Status), TasksProcessed: h.TasksProcessed}
		}
		return out
	})
	pool.Start(ctx)
	defer pool.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(getEnv("METRICS_ADDR", ":9090"), mux); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", httpAddr)
		errCh <- server.Start(httpAddr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
