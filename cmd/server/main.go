package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appformula "github.com/coldtrade/backend/internal/application/formula"
	appledger "github.com/coldtrade/backend/internal/application/ledger"
	"github.com/coldtrade/backend/internal/application/report"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/coldtrade/backend/internal/infrastructure/cache"
	"github.com/coldtrade/backend/internal/infrastructure/config"
	"github.com/coldtrade/backend/internal/infrastructure/logger"
	"github.com/coldtrade/backend/internal/infrastructure/persistence"
	"github.com/coldtrade/backend/internal/infrastructure/telemetry"
	"github.com/coldtrade/backend/internal/interfaces/http/handler"
	"github.com/coldtrade/backend/internal/interfaces/http/middleware"
	"github.com/coldtrade/backend/internal/interfaces/http/router"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting batch ledger server",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	if cfg.Telemetry.Enabled {
		if err := telemetry.RegisterGormTracing(db.DB, cfg.Database.DBName, log); err != nil {
			log.Warn("Failed to enable database tracing", zap.Error(err))
		}
	}

	// Repositories
	formulaRepo := persistence.NewGormFormulaRepository(db.DB)
	batchRepo := persistence.NewGormStockBatchRepository(db.DB)
	outboundRepo := persistence.NewGormOutboundRecordRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Application services
	formulaService := appformula.NewService(formulaRepo)
	batchService := appledger.NewBatchService(batchRepo, formulaRepo, txScope)
	allocationService := appledger.NewAllocationService(txScope, outboundRepo)
	lineageService := appledger.NewLineageService(batchRepo, outboundRepo, nil, log.Named("lineage"))
	reportService := report.NewStockReportService(batchRepo, outboundRepo)

	// Idempotency store for allocation requests. Redis when configured,
	// in-memory otherwise (single instance only).
	var idempotencyStore shared.IdempotencyStore
	if cfg.Redis.Host != "" {
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-memory idempotency store", zap.Error(err))
			idempotencyStore = cache.NewInMemoryIdempotencyStore()
		} else {
			log.Info("Redis idempotency store connected", zap.String("addr", cfg.Redis.RedisAddr()))
			idempotencyStore = redisStore
		}
	} else {
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	// Handlers
	formulaHandler := handler.NewFormulaHandler(formulaService)
	batchHandler := handler.NewBatchHandler(batchService, lineageService)
	allocationHandler := handler.NewAllocationHandler(allocationService, lineageService)
	allocationHandler.SetIdempotencyStore(idempotencyStore, cfg.Allocation.IdempotencyTTL)
	reportHandler := handler.NewReportHandler(reportService)
	systemHandler := handler.NewSystemHandler(db, version)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(cfg.App.Name, cfg.Telemetry.Enabled))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(formulaHandler).
		Register(batchHandler).
		Register(allocationHandler).
		Register(reportHandler).
		Register(systemHandler).
		Setup()

	// Periodic storage fee settlement
	settlementCtx, stopSettlement := context.WithCancel(context.Background())
	defer stopSettlement()
	if cfg.Storage.SettlementEnabled {
		go runStorageSettlement(settlementCtx, batchService, cfg.Storage.SettlementInterval, log.Named("settlement"))
		log.Info("Storage settlement job started",
			zap.Duration("interval", cfg.Storage.SettlementInterval),
		)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	stopSettlement()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// runStorageSettlement periodically settles accrued storage fees for active
// batches until the context is cancelled.
func runStorageSettlement(ctx context.Context, svc *appledger.BatchService, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settled, err := svc.SettleAllStorage(ctx)
			if err != nil {
				log.Error("Storage settlement pass failed", zap.Error(err))
				continue
			}
			if settled > 0 {
				log.Info("Storage fees settled", zap.Int("batches", settled))
			}
		}
	}
}
