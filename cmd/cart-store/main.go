package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/events"
	httpserver "github.com/andreasstove999/ecommerce-system/cart-store-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/logger"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "cart-store", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	if err := run(cfg, log); err != nil {
		log.Error("cart-store stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	var publisher *events.Publisher
	if cfg.RabbitURL != "" {
		conn, err := events.Dial(cfg.RabbitURL)
		if err != nil {
			return err
		}
		defer conn.Close()

		publisher, err = events.NewPublisher(conn)
		if err != nil {
			return fmt.Errorf("create cart publisher: %w", err)
		}
		defer publisher.Close()
	}

	store := cart.Open(ctx, backend,
		cart.WithLogger(log),
		cart.WithKey(cfg.StorageKey),
		cart.WithWriteTimeout(cfg.WriteTimeout),
	)

	var notifier *events.Notifier
	if publisher != nil {
		notifier = events.NewNotifier(publisher, log, events.NotifierOptions{PartitionKey: cfg.StorageKey})
		unsubscribe := store.Subscribe(notifier.Notify)
		defer unsubscribe()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.NewRouter(store),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart-store listening", "addr", srv.Addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errCh:
		log.Error("server error", "err", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown error", "err", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Warn("cart store close error", "err", err)
	}
	if notifier != nil {
		if err := notifier.Close(shutdownCtx); err != nil {
			log.Warn("cart notifier close error", "err", err)
		}
	}

	log.Info("shutdown complete", "stats", store.Stats())
	return serveErr
}

func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (cart.Storage, func(), error) {
	switch cfg.Storage {
	case config.BackendMemory, "":
		log.Warn("using in-memory cart storage, the cart will not survive a restart")
		return storage.NewMemory(), func() {}, nil

	case config.BackendPostgres:
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseDSN, log); err != nil {
				return nil, nil, fmt.Errorf("db migrate: %w", err)
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		return storage.NewPostgres(pool), pool.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		return storage.NewRedis(client, cfg.RedisKeyPrefix), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
