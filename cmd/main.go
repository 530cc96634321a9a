package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/api"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/config"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/events"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/interfaces"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/repository"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/service"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry("settlement-engine", cfg.JaegerEndpoint, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Settlement Engine")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Persistence
	var (
		obligations interfaces.ObligationRepository
		stock       interfaces.StockStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		obligationRepo := repository.NewObligationRepository(db)
		if err := obligationRepo.InitDB(ctx); err != nil {
			telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		stockRepo := repository.NewStockRepository(db)
		if err := stockRepo.InitDB(ctx); err != nil {
			telemetry.Logger.Fatal("Failed to initialize stock table", zap.Error(err))
		}
		obligations, stock = obligationRepo, stockRepo
	} else {
		telemetry.Logger.Warn("DATABASE_URL not set, using in-memory stores")
		obligations, stock = repository.NewMemoryObligationRepository(), repository.NewMemoryStockStore()
	}

	// Processed-trigger claims
	var dedup interfaces.TriggerDeduper
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		defer redisClient.Close()
		dedup = repository.NewRedisDeduper(redisClient, cfg.TriggerClaimTTL)
	} else {
		dedup = repository.NewMemoryDeduper()
	}

	coordinator := service.NewCoordinator(stock, dedup, service.CoordinatorOptions{
		RetryInterval:   cfg.StockRetryInterval,
		RetryMaxElapsed: cfg.StockRetryMaxElapse,
	})

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		coordinator.Run(ctx)
	}()

	// Fulfillment transport and change notifications
	var (
		dispatcher interfaces.TriggerDispatcher = service.NewDirectDispatcher(coordinator)
		notifier   events.MultiNotifier
	)
	if cfg.KafkaBrokers != "" {
		triggerWriter := events.NewWriter(cfg.KafkaBrokers, cfg.TriggerTopic)
		defer triggerWriter.Close()
		dispatcher = events.NewKafkaTriggerDispatcher(triggerWriter)

		changeWriter := events.NewWriter(cfg.KafkaBrokers, cfg.ChangeTopic)
		defer changeWriter.Close()
		notifier = append(notifier, events.NewKafkaNotifier(changeWriter))

		consumer := events.NewTriggerConsumer(
			events.NewReader(cfg.KafkaBrokers, cfg.TriggerTopic, cfg.ConsumerGroupID),
			coordinator,
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			consumer.Run(ctx)
		}()
	}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		notifier = append(notifier, events.NewNatsNotifier(nc))
	}

	processor := service.NewProcessor(obligations, dispatcher, notifier)
	reporter := service.NewReporter(obligations)

	r := api.NewRouter(processor, reporter, api.Options{
		SettlementTimeout: cfg.SettlementTimeout,
		ConflictRetries:   cfg.ConflictRetries,
	})

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Settlement Engine starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stop()
	workers.Wait()

	telemetry.Logger.Info("Server exited")
}
