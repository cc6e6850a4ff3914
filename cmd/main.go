package main

import (
	"context"
	"encoding/base64"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/config"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/infrastructure/openrouter"
	"github.com/phbiling/isp-billing/internal/infrastructure/whatsapp"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/phbiling/isp-billing/internal/seed"
	"github.com/phbiling/isp-billing/internal/server"
	"github.com/phbiling/isp-billing/internal/service"
	"github.com/phbiling/isp-billing/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	zl.Info("starting PH Biling service", zap.String("env", cfg.Server.Environment), zap.String("store", cfg.Store.Driver))

	ctx := context.Background()

	// Grafana Cloud requires Basic auth with instanceId:apiToken base64 encoded
	authEncoded := base64.StdEncoding.EncodeToString([]byte(cfg.OTEL.InstanceID + ":" + cfg.OTEL.Token))

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		OTLPHeaders: map[string]string{
			"Authorization": "Basic " + authEncoded,
		},
		Enabled: cfg.OTEL.Enabled,
	})
	if err != nil {
		zl.Warn("failed to initialize OpenTelemetry", zap.Error(err))
	}
	if otelProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProvider.Shutdown(shutdownCtx); err != nil {
				zl.Warn("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	metrics, err := telemetry.NewBillingMetrics()
	if err != nil {
		zl.Warn("billing metrics disabled", zap.Error(err))
	}

	clk := clock.New(cfg.Billing.TimeZone)

	// Stores
	var stores *repository.Stores
	switch cfg.Store.Driver {
	case config.StoreMongo:
		ctxMongo, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
		// Add OTEL monitor for MongoDB tracing
		if cfg.OTEL.Enabled {
			mongoOpts.SetMonitor(otelmongo.NewMonitor())
		}

		mongoClient, err := mongo.Connect(ctxMongo, mongoOpts)
		if err != nil {
			zl.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				zl.Warn("error disconnecting from MongoDB", zap.Error(err))
			}
		}()

		if err := mongoClient.Ping(ctxMongo, nil); err != nil {
			zl.Fatal("failed to ping MongoDB", zap.Error(err))
		}
		zl.Info("MongoDB connected", zap.String("database", cfg.MongoDB.Database))

		stores, err = repository.NewMongoStores(ctxMongo, mongoClient.Database(cfg.MongoDB.Database), seed.Routers)
		if err != nil {
			zl.Fatal("failed to prepare MongoDB stores", zap.Error(err))
		}
	default:
		stores = repository.NewMemoryStores(domain.CompanyConfig{}, seed.Routers)
		zl.Info("using in-memory store, state resets on restart")
	}

	if cfg.Store.Seed {
		if _, err := seed.Load(ctx, stores, clk.Now()); err != nil {
			zl.Fatal("failed to seed demo dataset", zap.Error(err))
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		zl.Fatal("failed to connect to Redis", zap.Error(err))
	}
	zl.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

	// Object storage: S3 when configured, otherwise in-process
	var files domain.FileRepository = repository.NewMemoryFileRepository()
	if cfg.S3.Endpoint != "" {
		s3Repo, err := repository.NewS3FileRepository(ctx, cfg.S3)
		if err != nil {
			zl.Warn("S3 unavailable, keeping files in memory", zap.Error(err))
		} else {
			files = s3Repo
		}
	}

	var sender service.MessageSender = service.LogSender{}
	if cfg.WhatsApp.BaseURL != "" {
		sender = service.NewWhatsAppSender(whatsapp.NewClient(whatsapp.Config{
			BaseURL: cfg.WhatsApp.BaseURL,
			Token:   cfg.WhatsApp.Token,
		}))
	}

	app := server.NewApp(server.AppDependencies{
		Config:      cfg,
		Clock:       clk,
		Stores:      stores,
		RedisClient: redisClient,
		Files:       files,
		AI:          openrouter.NewClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model),
		Sender:      sender,
		Metrics:     metrics,
	})

	if err := app.Scheduler.Start(); err != nil {
		zl.Fatal("failed to start billing scheduler", zap.Error(err))
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return app.Worker.Run(gctx)
	})

	g.Go(func() error {
		zl.Info("server starting", zap.String("port", cfg.Server.Port))
		return app.Fiber.Listen(":" + cfg.Server.Port)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down gracefully")
		<-app.Scheduler.Stop().Done()
		return app.Fiber.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		zl.Error("service stopped with error", zap.Error(err))
	}
}
