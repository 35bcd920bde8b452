package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/checkin-sync-agent/internal/client"
	"github.com/noah-isme/checkin-sync-agent/internal/handler"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/network"
	"github.com/noah-isme/checkin-sync-agent/internal/repository"
	"github.com/noah-isme/checkin-sync-agent/internal/service"
	"github.com/noah-isme/checkin-sync-agent/internal/state"
	"github.com/noah-isme/checkin-sync-agent/internal/websocket"
	"github.com/noah-isme/checkin-sync-agent/pkg/cache"
	"github.com/noah-isme/checkin-sync-agent/pkg/config"
	"github.com/noah-isme/checkin-sync-agent/pkg/database"
	"github.com/noah-isme/checkin-sync-agent/pkg/logger"
)

// @title Check-in Sync Agent API
// @version 1.0.0
// @description Offline-first event check-in agent. Queues check-ins while offline and replays them on reconnect.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("agent stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	store := state.New(state.WithConnectivity(cfg.Network.AssumeOnline))

	repo, checks, closeRepo, err := openSnapshotRepository(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeRepo()

	// The loop keeps its own context so the final save runs after the server drained.
	persistCtx, stopPersist := context.WithCancel(context.Background())
	persistence := service.NewPersistenceService(repo, store, metrics, logger.Component(logr, "persistence"))
	if err := persistence.Restore(ctx); err != nil {
		logr.Warn("starting with empty state", zap.Error(err))
	}
	persistence.Start(persistCtx)

	hub := websocket.NewHub(logger.Component(logr, "websocket"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	hubNotifier := service.NewHubNotifier(hub, logr)

	validate := validator.New()
	api := client.New(client.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger.Component(logr, "backend"),
	})
	auth := service.NewAuthService(api, store, validate, logger.Component(logr, "auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	api.SetTokenProvider(auth.BackendToken)
	api.SetUnauthorizedHandler(auth.HandleUnauthorized)
	auth.OnLogout(func(reason string) {
		hubNotifier.Publish(websocket.TypeSessionExpired, map[string]string{"reason": reason})
	})

	submitter := service.NewCheckinSubmitter(api, logger.Component(logr, "submitter"), metrics)
	syncSvc := service.NewSyncService(store, submitter, logger.Component(logr, "sync"), service.SyncConfig{
		Policy: service.RetryPolicy{
			MaxAttempts: cfg.Sync.MaxAttempts,
			Backoff:     service.ExponentialBackoff(cfg.Sync.BackoffBase, cfg.Sync.BackoffMax),
		},
		Notifier: service.MultiNotifier{service.NewLogNotifier(logr), hubNotifier},
		Metrics:  metrics,
	})
	scheduler := service.NewSyncScheduler(syncSvc, logger.Component(logr, "scheduler"))
	scheduler.Start(ctx)

	manual := network.NewManualSource()
	sources := network.MultiSource{manual}
	var probe *network.ProbeSource
	if cfg.Network.ProbeURL != "" {
		probe = network.NewProbeSource(network.ProbeConfig{
			URL:      cfg.Network.ProbeURL,
			Interval: cfg.Network.ProbeInterval,
			Timeout:  cfg.Network.ProbeTimeout,
			Logger:   logger.Component(logr, "probe"),
		})
		sources = append(sources, probe)
	}
	monitor := network.NewMonitor(sources, store, func() {
		scheduler.Trigger(models.SyncTriggerReconnect)
	}, logger.Component(logr, "network"))
	monitor.OnTransition(func(conn models.ConnectivityState) {
		metrics.SetConnected(conn.IsConnected)
		hubNotifier.Publish(websocket.TypeConnectivityChanged, conn)
	})
	monitor.Start(ctx)
	if probe != nil {
		go probe.Run(ctx)
	}
	metrics.SetConnected(store.Connectivity().IsConnected)
	metrics.SetPending(store.PendingCount())

	if store.Connectivity().IsConnected && store.PendingCount() > 0 {
		scheduler.Trigger(models.SyncTriggerStartup)
	}

	services := routeServices{
		auth:     auth,
		events:   service.NewEventService(api, store, logger.Component(logr, "events")),
		checkins: service.NewCheckinService(store, submitter, cfg.Checkin.Strategy, metrics, logger.Component(logr, "checkin")),
		sync:     syncSvc,
		reports:  service.NewReportService(store, logger.Component(logr, "reports")),
		metrics:  metrics,
		store:    store,
		manual:   manual,
		hub:      hub,
		notifier: hubNotifier,
		checks:   checks,
		validate: validate,
	}
	router := newRouter(cfg, logr, services)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", repo.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown incomplete", zap.Error(err))
	}
	stop()
	monitor.Stop()
	scheduler.Stop()
	stopHub()
	stopPersist()
	persistence.Wait()
	return serveErr
}

// openSnapshotRepository builds the repository for the configured driver together
// with its readiness checks and a release func.
func openSnapshotRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (snapshotRepository, map[string]handler.ReadinessCheck, func(), error) {
	checks := map[string]handler.ReadinessCheck{}
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return repository.NewMemorySnapshotRepository(), checks, noop, nil

	case config.StorageRedis:
		rdb, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		repo := repository.NewRedisSnapshotRepository(rdb, cfg.Storage.Key, logger.Component(logr, "redis"))
		return repo, checks, func() { _ = repo.Close() }, nil

	case config.StoragePostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		repo := repository.NewPostgresSnapshotRepository(db, cfg.Storage.Key)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, noop, fmt.Errorf("prepare snapshot table: %w", err)
		}
		checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
		return repo, checks, func() { _ = db.Close() }, nil

	default:
		repo, err := repository.NewFileSnapshotRepository(cfg.Storage.FilePath)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("open snapshot file: %w", err)
		}
		return repo, checks, noop, nil
	}
}

type snapshotRepository interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
	Clear(ctx context.Context) error
	Driver() string
}
