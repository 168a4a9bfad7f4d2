package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/agentdex/internal/config"
	"github.com/kailas-cloud/agentdex/internal/db"
	dbRedis "github.com/kailas-cloud/agentdex/internal/db/redis"
	logpkg "github.com/kailas-cloud/agentdex/internal/logger"
	"github.com/kailas-cloud/agentdex/internal/metrics"
	"github.com/kailas-cloud/agentdex/internal/repository/searchcache"
	chiTransport "github.com/kailas-cloud/agentdex/internal/transport/chi"
	"github.com/kailas-cloud/agentdex/internal/transport/sse"
	healthuc "github.com/kailas-cloud/agentdex/internal/usecase/health"
	"github.com/kailas-cloud/agentdex/internal/usecase/session"
	"github.com/kailas-cloud/agentdex/internal/usecase/streaming"
	"github.com/kailas-cloud/agentdex/internal/version"
)

func main() {
	var (
		env         string
		configDir   string
		showVersion bool
	)
	flags := pflag.NewFlagSet("agentdex", pflag.ExitOnError)
	flags.StringVar(&env, "env", config.GetEnv(), "environment name; selects config/<env>.yaml")
	flags.StringVar(&configDir, "config-dir", "", "directory holding <env>.yaml (default: ./config)")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("agentdex %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	if err := run(env, configDir); err != nil {
		fmt.Fprintln(os.Stderr, "agentdex:", err)
		os.Exit(1)
	}
}

func run(env, configDir string) error {
	cfg, err := config.Load(configDir, env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting agentdex server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
		zap.Bool("streaming", cfg.Streaming()),
	)

	// Valkey and Redis share the rueidis store.
	var store db.Store
	store, err = dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Cache.Addrs,
		Username:   cfg.Cache.Username,
		Password:   cfg.Cache.Password,
		DB:         cfg.Cache.DB,
		Standalone: len(cfg.Cache.Addrs) == 1,
	})
	if err != nil {
		return fmt.Errorf("create cache store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("cache not ready: %w", err)
	}
	logger.Info("Connected to cache")

	metrics.RegisterStreamMetrics()

	transport := sse.New(sse.Config{
		BaseURL:        cfg.Backend.BaseURL,
		Path:           cfg.Backend.StreamPath,
		HealthPath:     cfg.Backend.HealthPath,
		APIKey:         cfg.Backend.APIKey,
		ConnectTimeout: time.Duration(cfg.Backend.ConnectTimeoutSec) * time.Second,
		MaxEventSize:   cfg.Backend.MaxEventBytes,
	}, &http.Client{}, logger.Named("sse"))

	cache := searchcache.New(store, cfg.CacheTTL())
	cacheSync := streaming.NewCacheSync(cache,
		time.Duration(cfg.Cache.WriteTimeoutMs)*time.Millisecond, logger.Named("cachesync"))

	sessions := session.New(session.Config{
		MaxSessions:      cfg.Sessions.MaxSessions,
		IdleTTL:          time.Duration(cfg.Sessions.IdleTTLSec) * time.Second,
		StreamingEnabled: cfg.Streaming(),
	}, transport, logger.Named("session"), cacheSync)
	defer sessions.CloseAll()

	healthSvc := healthuc.New(store, transport)

	server := chiTransport.NewServer(sessions, cache, healthSvc, logger)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sessions.RunSweeper(gctx, time.Duration(cfg.Sessions.SweepIntervalSec)*time.Second)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
