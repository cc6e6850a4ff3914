package main

import (
	"context"
	"log"
	"time"

	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/config"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/phbiling/isp-billing/internal/seed"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Seeds the demo dataset into the configured MongoDB database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		zl.Fatal("failed to connect to Mongo", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	stores, err := repository.NewMongoStores(ctx, client.Database(cfg.MongoDB.Database), seed.Routers)
	if err != nil {
		zl.Fatal("failed to prepare stores", zap.Error(err))
	}

	res, err := seed.Load(ctx, stores, clock.New(cfg.Billing.TimeZone).Now())
	if err != nil {
		zl.Fatal("seed failed", zap.Error(err))
	}
	if res.Skipped {
		zl.Info("database already has customers, nothing to do")
	}
}
