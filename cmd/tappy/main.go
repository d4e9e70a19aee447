package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nidhogg/tappy/internal/api"
	"github.com/nidhogg/tappy/internal/automation"
	"github.com/nidhogg/tappy/internal/config"
	"github.com/nidhogg/tappy/internal/execution"
	"github.com/nidhogg/tappy/internal/gateway"
	"github.com/nidhogg/tappy/internal/notify"
	"github.com/nidhogg/tappy/internal/observability"
	"github.com/nidhogg/tappy/internal/orchestrator"
	"github.com/nidhogg/tappy/internal/planner"
	"github.com/nidhogg/tappy/internal/provider"
	"github.com/nidhogg/tappy/internal/skill"
	"github.com/nidhogg/tappy/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/tappy.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Tappy...", zap.String("config", cfgPath))
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx := context.Background()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Reasoning providers
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		p, err := provider.New(ctx, provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model, Extra: pc.Extra, Timeout: pc.Timeout.Std(),
		}, logger)
		if err != nil {
			logger.Warn("provider unavailable", zap.String("id", pc.ID), zap.Error(err))
			continue
		}
		router.Register(p)
	}
	if cfg.Planner.Default != "" {
		router.SetDefault(cfg.Planner.Default)
	}
	router.SetFallbacks(cfg.Planner.Fallbacks)

	// Skills and execution
	var runner skill.Runner
	if cfg.Automation.DryRun {
		logger.Warn("automation dry run enabled, skills will not reach the provider")
		runner = execution.NewDryRun(logger)
	} else {
		client := automation.New(automation.Config{
			BaseURL:        cfg.Automation.BaseURL,
			APIKey:         cfg.Automation.APIKey,
			ConnectTimeout: cfg.Automation.ConnectTimeout.Std(),
			DirectTimeout:  cfg.Automation.DirectTimeout.Std(),
			SessionTimeout: cfg.Automation.SessionTimeout.Std(),
		}, logger)
		runner = execution.NewProtocol(client, execution.ProtocolConfig{
			PollInterval:   cfg.Automation.PollInterval.Std(),
			PollAttempts:   cfg.Automation.PollAttempts,
			CleanupTimeout: cfg.Automation.CleanupTimeout.Std(),
		}, logger)
	}

	registry := skill.NewRegistry()
	if err := skill.RegisterBuiltins(registry, runner); err != nil {
		logger.Fatal("register builtin skills", zap.Error(err))
	}
	plugins, err := skill.LoadFromDir(cfg.SkillsDir)
	if err != nil {
		logger.Warn("failed to load skill plugins", zap.String("dir", cfg.SkillsDir), zap.Error(err))
	} else if err := skill.RegisterPlugins(registry, runner, plugins); err != nil {
		logger.Warn("failed to register skill plugins", zap.Error(err))
	}
	logger.Info("Skills registered", zap.Int("count", registry.Len()))

	executor := execution.NewExecutor(registry, skill.Credentials{ProfileID: cfg.Automation.ProfileID}, metrics, logger)
	plan := planner.New(registry, router, cfg.Planner.Model, logger)

	// Persistence
	var repo store.Repository
	if cfg.Database.Postgres.DSN != "" {
		pg, err := store.New(ctx, cfg.Database.Postgres.DSN, logger)
		if err != nil {
			logger.Fatal("PostgreSQL unavailable", zap.Error(err))
		}
		if err := pg.Migrate(ctx, cfg.Database.Postgres.Migrations); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		repo = pg
	} else {
		logger.Warn("no database configured, entries are kept in memory")
		repo = store.NewMemory()
	}

	// Fanout and relays
	hub := notify.NewHub(cfg.Notifications.SubscriberBuffer, cfg.Notifications.KeepAlive.Std(), metrics, logger)
	relays := gateway.NewGateway(cfg.Gateway.Timeout.Std(), metrics, logger)
	if cfg.Gateway.Stream.Enabled {
		sr, err := gateway.NewStreamRelay(ctx, cfg.Database.Redis.URL, cfg.Gateway.Stream.Name, cfg.Gateway.Stream.MaxLen, logger)
		if err != nil {
			logger.Warn("Redis unavailable, running without notification stream", zap.Error(err))
		} else {
			relays.Register(sr)
		}
	}
	if cfg.Gateway.Slack.Enabled {
		relays.Register(gateway.NewSlackRelay(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.Channel, cfg.Gateway.Slack.APIURL, logger))
	}
	if cfg.Gateway.Discord.Enabled {
		dr, err := gateway.NewDiscordRelay(cfg.Gateway.Discord.BotToken, cfg.Gateway.Discord.Channel, logger)
		if err != nil {
			logger.Warn("Discord relay unavailable", zap.Error(err))
		} else {
			relays.Register(dr)
		}
	}

	// Queue and worker
	queue := orchestrator.NewQueue(cfg.Queue.Capacity)
	limits := notify.Limits{
		TitleMax:   cfg.Notifications.TitleMax,
		ExcerptMax: cfg.Notifications.ExcerptMax,
	}
	pipeline := orchestrator.NewPipeline(plan, executor, repo, hub, relays, limits, logger)
	worker := orchestrator.NewWorker(queue, pipeline, cfg.Queue.JobDelay.Std(), metrics, logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker exited", zap.Error(err))
		}
	}()

	// HTTP server
	deps := api.Deps{
		Repo:           repo,
		Queue:          queue,
		Worker:         worker,
		Registry:       registry,
		Hub:            hub,
		Relays:         relays,
		Limits:         limits,
		CORSOrigins:    cfg.Server.CORSOrigins,
		AllowAnyOrigin: cfg.Server.AllowAnyOrigin,
	}
	if metrics != nil {
		deps.Metrics = metrics.Handler()
	}
	handler := api.NewHandler(deps, logger)

	// Request contexts derive from streamCtx so open SSE and WebSocket
	// streams end when shutdown starts.
	streamCtx, stopStreams := context.WithCancel(ctx)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}

	go func() {
		logger.Info("Tappy listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Tappy...", zap.Int("queued", queue.Len()))
	queue.Close()
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	stopStreams()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
		srv.Close()
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker still busy at shutdown")
	}
	relays.Close()
	repo.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	var zc zap.Config
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
