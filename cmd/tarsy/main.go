// Tarsy engine process: wires the config-driven component graph together
// and runs the queue worker pool, background services, and ingress service
// until signalled to shut down. No HTTP server lives here (spec §2's
// module layout scopes the transport/router surface out of this binary);
// a caller embeds pkg/ingress and pkg/api directly to expose one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-project/tarsy-core/pkg/background"
	"github.com/tarsy-project/tarsy-core/pkg/chain"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/hooks"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/ingress"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/masking"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/metrics"
	"github.com/tarsy-project/tarsy-core/pkg/queue"
	"github.com/tarsy-project/tarsy-core/pkg/session"
	"github.com/tarsy-project/tarsy-core/pkg/store"
	"github.com/tarsy-project/tarsy-core/pkg/wshub"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("configuration initialized",
		"agents", stats.Agents, "chains", stats.Chains,
		"mcp_servers", stats.MCPServers, "llm_providers", stats.LLMProviders)

	st, events, closeStore, err := buildStoreAndBus(ctx)
	if err != nil {
		slog.Error("failed to initialize store/event bus", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	hub := wshub.NewHub(events, 10*time.Second)
	_ = hub // catch-up/broadcast consumer; no HTTP server mounts it in this binary

	var slackNotifier *hooks.SlackNotifier
	if cfg.Slack != nil && cfg.Slack.Enabled {
		slackNotifier = hooks.NewSlackNotifier(os.Getenv(cfg.Slack.WebhookURLEnv))
	}
	dispatcher := hooks.NewDispatcher(events, slackNotifier)

	sessionMgr := session.NewManager(st, events)
	unsubscribeCancel, err := sessionMgr.Subscribe(ctx)
	if err != nil {
		slog.Error("failed to subscribe session manager to cancellations", "error", err)
		os.Exit(1)
	}
	defer unsubscribeCancel()

	collector := metrics.New()

	mcpRegistry := config.BuildMCPRegistry(cfg.MCPServerRegistry)
	maskingService := masking.NewMaskingService(mcpRegistry, config.BuildAlertMaskingConfig(cfg.Defaults.AlertMasking))
	mcpFactory := mcpclient.NewClientFactory(mcpRegistry, maskingService)
	toolFactory := chain.NewMCPExecutorFactory(mcpFactory)

	llmAddr := getEnv("LLM_ADAPTER_ADDR", "localhost:50051")
	llm, err := llmclient.NewClient(llmAddr, hub)
	if err != nil {
		slog.Error("failed to dial llm adapter", "addr", llmAddr, "error", err)
		os.Exit(1)
	}
	llm.SetMetrics(collector)
	defer func() {
		if err := llm.Close(); err != nil {
			slog.Warn("error closing llm client", "error", err)
		}
	}()

	executor := chain.NewExecutor(cfg, st, events, llm, toolFactory, sessionMgr.Tracker())

	pool := queue.NewWorkerPool(podID(), st, cfg.Queue, executor, sessionMgr, dispatcher)
	pool.SetMetrics(collector)
	pool.Start(ctx)

	// mcpHealth stays a true nil interface when no client was started, so
	// background.Service's own "mcpHealth == nil" guard works: assigning a
	// nil *mcpclient.Client straight into the interface parameter would
	// produce a non-nil interface wrapping a nil pointer instead.
	var mcpHealth background.MCPHealthSource
	if client := startMCPHealthClient(ctx, mcpFactory, cfg); client != nil {
		mcpHealth = client
	}
	bg := background.NewService(st, cfg.Retention, mcpHealth)
	bg.Start(ctx)

	in := ingress.NewService(st, cfg.ChainRegistry, cfg.Defaults, cfg.Queue, maskingService, dispatcher)
	_ = in // constructed for callers embedding this process (e.g. pkg/api); not invoked directly here

	slog.Info("tarsy engine started", "pod_id", podID())
	<-ctx.Done()

	slog.Info("shutdown signal received, draining workers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		bg.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("tarsy engine stopped cleanly")
	case <-shutdownCtx.Done():
		slog.Warn("graceful shutdown timed out, exiting anyway")
	}
}

// podID identifies this replica for session claiming and worker naming
// (spec §4.10). Kubernetes sets HOSTNAME to the pod name; a random suffix
// covers local/dev runs outside a cluster.
func podID() string {
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	return "tarsy-" + ids.New()
}

// buildStoreAndBus picks Postgres+NotifyBus when DATABASE_URL is set, or an
// in-memory store with a polling bus otherwise, so the binary also runs
// standalone against no external database for local development.
func buildStoreAndBus(ctx context.Context) (store.Store, eventbus.Bus, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		slog.Warn("DATABASE_URL not set, running against an in-memory store (not for production use)")
		mem := store.NewMemory()
		bus := eventbus.NewPollingBus(mem, 2*time.Second)
		return mem, bus, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	pg := store.NewPostgres(pool)
	retrying := store.NewRetrier(pg)
	bus := eventbus.NewNotifyBus(retrying, pool, dsn)
	return retrying, bus, pool.Close, nil
}

// startMCPHealthClient connects to every configured MCP server once at
// startup for pkg/background's health monitor. A connection failure here
// is logged, not fatal: FailedServers() already reports per-server
// failures, and the health sweep just keeps retrying on its own interval.
func startMCPHealthClient(ctx context.Context, factory *mcpclient.ClientFactory, cfg *config.Config) *mcpclient.Client {
	all := cfg.MCPServerRegistry.GetAll()
	if len(all) == 0 {
		return nil
	}
	serverIDs := make([]string, 0, len(all))
	for id := range all {
		serverIDs = append(serverIDs, id)
	}

	client, err := factory.CreateClient(ctx, serverIDs)
	if err != nil && client == nil {
		slog.Error("failed to start mcp health monitor client", "error", err)
		return nil
	}
	if err != nil {
		slog.Warn("mcp health monitor client started with some servers unreachable", "error", err)
	}
	return client
}
