// Package main запускает HTTP-сервер и синхронизацию заказов сервиса кофейни.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/coffeeshop/internal/cache"
	"github.com/mmeshcher/coffeeshop/internal/config"
	"github.com/mmeshcher/coffeeshop/internal/handler"
	"github.com/mmeshcher/coffeeshop/internal/notify"
	"github.com/mmeshcher/coffeeshop/internal/orders"
	"github.com/mmeshcher/coffeeshop/internal/repository"
	"github.com/mmeshcher/coffeeshop/internal/session"
)

const notifyInbox = 256

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		sugar.Warnw("load .env", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.DatabaseURI == "" {
		sugar.Fatal("database URI is required")
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SeedDemo {
		if err := session.SeedDemoAccounts(ctx, repo, logger); err != nil {
			sugar.Fatalw("seed demo accounts", "error", err.Error())
		}
	}

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}

	// Отправка уведомлений останавливается после завершения всех горутин сервиса, а не по сигналу.
	kafkaCtx, stopKafka := context.WithCancel(context.Background())
	defer stopKafka()

	var kafkaNotifier *notify.KafkaNotifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotifyTopic, notifyInbox, logger)
		kafkaNotifier.Start(kafkaCtx)
		notifiers = append(notifiers, kafkaNotifier)
		sugar.Infow("publishing notifications to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.NotifyTopic)
	}

	var (
		sessionSnap session.Snapshot
		orderOpts   = []orders.Option{orders.WithPollInterval(cfg.PollInterval)}
	)
	if cfg.RedisAddress != "" {
		rdb := cache.NewClient(cfg.RedisAddress)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()

		if err != nil {
			sugar.Warnw("redis unavailable, local snapshot disabled", "addr", cfg.RedisAddress, "error", err.Error())
		} else {
			snap := cache.NewSnapshot(rdb)
			sessionSnap = snap
			orderOpts = append(orderOpts, orders.WithSnapshot(snap), orders.WithDeduper(cache.NewDeduper(rdb)))
		}
	}

	sessions := session.NewStore(repo, sessionSnap, notifiers, logger)
	orderStore := orders.NewStore(repo, sessions, notifiers, logger, orderOpts...)

	h := handler.NewHandler(sessions, orderStore, logger)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sessions.Restore(ctx)

	g, ctx := errgroup.WithContext(ctx)

	// Синхронизация заказов: лента изменений, смена пользователя и резервный опрос
	g.Go(func() error {
		return orderStore.Run(ctx, repo)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting coffeeshop server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	err = g.Wait()

	if kafkaNotifier != nil {
		stopKafka()
		kafkaNotifier.WaitClosed()
	}

	if err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
