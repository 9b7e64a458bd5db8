package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-academy-bot/internal/adapters/remote"
	"tg-academy-bot/internal/adapters/toast"
	"tg-academy-bot/internal/adapters/webapi"
	"tg-academy-bot/internal/domain"
	"tg-academy-bot/internal/infra/cache"
	"tg-academy-bot/internal/infra/config"
	"tg-academy-bot/internal/infra/db"
	httpinfra "tg-academy-bot/internal/infra/http"
	logpkg "tg-academy-bot/internal/infra/log"
	"tg-academy-bot/internal/infra/metrics"
	"tg-academy-bot/internal/infra/queue"
	"tg-academy-bot/internal/usecase/broadcast"
	syncuc "tg-academy-bot/internal/usecase/sync"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	localCache := cache.NewRedis(redisClient, logpkg.Component(logger, "cache"))

	var store domain.RemoteStore
	switch cfg.Remote.Backend {
	case "gridapi":
		store = remote.NewGridAPI(cfg.Remote.GridURL, cfg.Remote.GridKey, 15*time.Second, logpkg.Component(logger, "gridapi"))
	default:
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("academy: нет подключения к БД")
		}
		defer pool.Close()
		pg := remote.NewPostgres(pool, logpkg.Component(logger, "postgres"))
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Warn().Err(err).Msg("academy: схема не развёрнута, работаем поверх существующей")
		}
		store = pg
	}

	var toaster domain.ToastSink = toast.Discard{}
	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Warn().Err(err).Msg("academy: бот недоступен, тосты отключены")
		} else {
			toaster = toast.NewTelegram(bot, logpkg.Component(logger, "toast"))
		}
	}

	opts := syncuc.Options{
		PollInterval: cfg.Sync.PollInterval,
		Debounce:     cfg.Sync.Debounce,
		ToastWindow:  cfg.Sync.ToastWindow,
	}
	registry := syncuc.NewRegistry(store, localCache, toaster, logpkg.Component(logger, "sync"), opts, cfg.Sync.SessionExpiry)
	defer registry.Close()

	broadcastQueue := queue.NewRedisBroadcastQueue(redisClient, cfg.Queues.Broadcast)
	broadcastUC := broadcast.NewService(store, broadcastQueue, logpkg.Component(logger, "broadcast"))

	if cfg.AMQPURL != "" {
		listener, err := queue.NewChangeListener(cfg.AMQPURL, cfg.Queues.Changes, logpkg.Component(logger, "changes"))
		if err != nil {
			logger.Warn().Err(err).Msg("academy: слушатель изменений недоступен, остаёмся на опросе")
		} else {
			defer listener.Close()
			go func() {
				if err := listener.Listen(ctx, registry.TriggerAll); err != nil && ctx.Err() == nil {
					logger.Warn().Err(err).Msg("academy: слушатель изменений остановился")
				}
			}()
		}
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				registry.Sweep()
			}
		}
	}()

	srv := httpinfra.NewServer(logger)
	handler := webapi.NewHandler(registry, broadcastUC, store, logpkg.Component(logger, "webapi"))
	handler.Register(srv.Router, cfg.Telegram.Token)

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && ctx.Err() == nil {
			logger.Fatal().Err(err).Msg("academy: HTTP сервер упал")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("academy: сервер не завершился корректно")
	}
}
