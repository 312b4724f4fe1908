package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront-cart/internal/config"
	carthttp "github.com/fjod/storefront-cart/internal/http"
	"github.com/fjod/storefront-cart/internal/inventory"
	"github.com/fjod/storefront-cart/internal/logger"
	"github.com/fjod/storefront-cart/internal/notify"
	"github.com/fjod/storefront-cart/internal/service"
	"github.com/fjod/storefront-cart/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("cart service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	inv, err := newInventory(cfg, log)
	if err != nil {
		return err
	}

	store, closeStore, err := newStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	notifiers, closeNotifiers := newNotifiers(cfg, log)
	defer closeNotifiers()

	sessions := service.NewSessions(inv, store, notifiers, log, cfg.CartKey)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.SessionSweepInterval, cfg.SessionIdleTimeout)
	cartHandler := carthttp.NewCartHandler(sessions, cfg.RequestTimeout, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      carthttp.NewRouter(cartHandler, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart service listening", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("cart service stopped")
	return nil
}

func newInventory(cfg *config.Config, log *zap.Logger) (inventory.Service, error) {
	if cfg.InventoryURL != "" {
		log.Info("using remote inventory", zap.String("url", cfg.InventoryURL))
		return inventory.NewHTTPClient(cfg.InventoryURL, cfg.InventoryTimeout, log), nil
	}

	f, err := os.Open(cfg.InventoryCatalog)
	if err != nil {
		return nil, fmt.Errorf("open inventory catalog: %w", err)
	}
	defer f.Close()

	mem := inventory.NewMemoryService()
	if err := mem.LoadCatalog(f); err != nil {
		return nil, err
	}
	log.Info("using in-memory inventory", zap.String("catalog", cfg.InventoryCatalog))
	return mem, nil
}

func newStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("opened sqlite storage", zap.String("path", cfg.SQLitePath))
		return s, func() { _ = s.Close() }, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisStore(client, cfg.RedisTTL), func() { _ = client.Close() }, nil

	case config.BackendMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		s := storage.NewMongoStore(db)
		if err := s.CreateIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, err
		}
		log.Info("connected to MongoDB", zap.String("db", cfg.MongoDBName))
		return s, func() { _ = db.Client().Disconnect(context.Background()) }, nil

	default:
		log.Warn("using in-memory storage, carts will not survive a restart")
		return storage.NewMemoryStore(), func() {}, nil
	}
}

func newNotifiers(cfg *config.Config, log *zap.Logger) (service.NotifierFactory, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return func(sessionID string) notify.Notifier {
			return notify.NewLogNotifier(log, zap.String("session_id", sessionID))
		}, func() {}
	}

	writer := notify.NewKafkaWriter(cfg.KafkaTopic, log, cfg.KafkaBrokers...)
	factory := func(sessionID string) notify.Notifier {
		return notify.Multi{
			notify.NewLogNotifier(log, zap.String("session_id", sessionID)),
			notify.NewKafkaNotifier(writer, sessionID, log),
		}
	}
	return factory, func() { closeQuietly(writer, log) }
}

func closeQuietly(c io.Closer, log *zap.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("close failed", zap.Error(err))
	}
}
