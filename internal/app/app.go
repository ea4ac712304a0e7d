package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/coursegate-backend/internal/data/db"
	apphttp "github.com/yungbote/coursegate-backend/internal/http"
	"github.com/yungbote/coursegate-backend/internal/observability"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics
	Server   *apphttp.Server
	pg       *db.PostgresService
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	metrics := observability.Init(cfg.MetricsEnabled)

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	ssehub := realtime.NewSSEHub(log)

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, ssehub)
	middleware := wireMiddleware(log, serviceset)
	handlerset := wireHandlers(log, cfg, serviceset, ssehub, healthChecks(theDB, clients.Redis))

	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:                 log,
		ServiceName:         otelServiceName(cfg),
		AllowedOrigins:      cfg.AllowedOrigins,
		Metrics:             metrics,
		AuthMiddleware:      middleware.Auth,
		PaymentProofHandler: handlerset.PaymentProof,
		EnrollmentHandler:   handlerset.Enrollment,
		ProgressHandler:     handlerset.Progress,
		RealtimeHandler:     handlerset.Realtime,
		HealthHandler:       handlerset.Health,
	})
	// Long-lived streams would otherwise hold graceful shutdown open.
	server.OnShutdown = ssehub.CloseAll

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Clients:  clients,
		Repos:    reposet,
		Services: serviceset,
		SSEHub:   ssehub,
		Metrics:  metrics,
		Server:   server,
		pg:       pg,
	}, nil
}

func otelServiceName(cfg Config) string {
	if !cfg.Otel.Enabled {
		return ""
	}
	return cfg.Otel.ServiceName
}

// Run starts the background collectors and the cross-replica forwarder, then
// serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}

	shutdownOtel := observability.InitOTel(ctx, a.Log, a.Cfg.Otel)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}()

	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB, a.Cfg.MetricsCollectInterval)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis, a.Cfg.MetricsCollectInterval)
	}

	if a.Clients.SSEBus != nil {
		err := a.Clients.SSEBus.StartForwarder(ctx, func(m realtime.SSEMessage) {
			n := a.SSEHub.Broadcast(m)
			observability.Current().ObserveSSE(string(m.Event), n)
		})
		if err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}

	a.Log.Info("Server listening", "addr", a.Cfg.Address, "env", a.Cfg.Env, "version", a.Cfg.Version)
	return a.Server.Run(ctx, a.Cfg.Address, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.Log.Warn("postgres close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
