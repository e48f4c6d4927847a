package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-booking/internal/api/middleware"
	"github.com/sanosuguru/go-cinema-booking/internal/api/router"
	"github.com/sanosuguru/go-cinema-booking/internal/application"
	"github.com/sanosuguru/go-cinema-booking/internal/config"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-cinema-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-booking/internal/infrastructure/file"
	"github.com/sanosuguru/go-cinema-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-cinema-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-cinema-booking/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-cinema-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-booking/internal/worker"
)

func main() {
	// .env がなくても環境変数だけで動く
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.NewLogger(cfg.Env)
	logger.Set(log)
	defer func() { _ = logger.Sync() }()

	m := metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	layout, err := seat.NewLayout(cfg.Booking.Rows, cfg.Booking.Columns)
	if err != nil {
		log.Fatal("座席配置の設定が不正です", zap.Int("rows", cfg.Booking.Rows), zap.Int("columns", cfg.Booking.Columns), zap.Error(err))
	}

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	// 在庫と履歴の両方が Redis の場合は接続を共有する
	var redisClient *goredis.Client
	connectRedis := func() *goredis.Client {
		if redisClient != nil {
			return redisClient
		}
		client, err := redisinfra.Connect(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal("Redis接続に失敗しました", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		log.Info("Redisに接続しました", zap.String("addr", cfg.Redis.Addr()))
		redisClient = client
		return client
	}

	// 座席在庫
	var inv inventory.Inventory
	switch cfg.Inventory.Backend {
	case config.InventoryRedis:
		client := connectRedis()
		inv = redisinfra.NewShowInventory(client, redisinfra.NewLockManager(client, m), layout, redisinfra.InventoryOptions{
			LockTTL:        cfg.Inventory.LockTTL,
			LockRetries:    cfg.Inventory.LockRetries,
			LockRetryDelay: cfg.Inventory.LockRetryDelay,
		})
	case config.InventoryMemory:
		inv = memory.NewShowInventory(layout)
	default:
		log.Fatal("不明な在庫バックエンドです", zap.String("backend", cfg.Inventory.Backend))
	}

	// 予約履歴
	var history booking.HistoryStore
	switch cfg.History.Backend {
	case config.HistoryPostgres:
		db, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			log.Fatal("データベース接続に失敗しました", zap.Error(err))
		}
		cleanups = append(cleanups, func() { _ = db.Close() })
		if err := postgres.RunMigrations(db.DB, "migrations"); err != nil {
			log.Fatal("マイグレーションに失敗しました", zap.Error(err))
		}
		history = postgres.NewHistoryRepository(db)
	case config.HistoryRedis:
		history = redisinfra.NewHistoryStore(connectRedis())
	case config.HistoryFile:
		history = file.NewHistoryStore(cfg.History.FilePath)
	default:
		log.Fatal("不明な履歴バックエンドです", zap.String("backend", cfg.History.Backend))
	}

	validatorOpts := []booking.ValidatorOption{}
	if cfg.Booking.RequireEndTime {
		validatorOpts = append(validatorOpts, booking.WithRequireEndTime())
	}
	if cfg.Booking.StrictSeats {
		validatorOpts = append(validatorOpts, booking.WithSeatLayout(layout))
	}

	opts := []application.Option{
		application.WithHistory(history),
		application.WithMetrics(m),
		application.WithValidator(booking.NewValidator(validatorOpts...)),
		application.WithPricePolicy(booking.PricePolicy{PerSeat: cfg.Booking.PricePerSeat}),
		application.WithHistoryTimeout(cfg.History.Timeout),
	}
	if cfg.Broker.Enabled() {
		pub := rabbitmq.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue)
		cleanups = append(cleanups, func() { _ = pub.Close() })
		opts = append(opts, application.WithPublisher(pub))
		log.Info("予約イベントの送信を有効化", zap.String("queue", cfg.Broker.Queue))
	}

	svc := application.NewBookingService(inv, opts...)

	retryWorker := worker.NewHistoryRetryWorker(svc, cfg.History.RetryInterval)
	// シャットダウン時はサーバー停止後に Stop で最後の再送を行う
	go retryWorker.Start(context.Background())

	e := router.New(svc, router.Options{
		Metrics: m,
		MetricsAuth: middleware.MetricsConfig{
			User:     cfg.Server.MetricsUser,
			Password: cfg.Server.MetricsPassword,
		},
	})
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		log.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("inventory", cfg.Inventory.Backend),
			zap.String("history", cfg.History.Backend),
		)
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("サーバー起動エラー", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	// 受付を止めてから残りの履歴を再送する
	retryWorker.Stop()

	log.Info("サーバーが正常にシャットダウンしました")
}
