package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"tg-academy-bot/internal/adapters/toast"
	"tg-academy-bot/internal/infra/config"
	logpkg "tg-academy-bot/internal/infra/log"
	"tg-academy-bot/internal/infra/queue"
)

// broadcaster вычитывает задачи рассылок из очереди и доставляет их
// в Telegram. Выделен в отдельный процесс, чтобы медленная доставка
// не задерживала циклы синхронизации.
func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("broadcaster: бот недоступен")
	}
	sink := toast.NewTelegram(bot, logpkg.Component(logger, "toast"))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	jobs := queue.NewRedisBroadcastQueue(redisClient, cfg.Queues.Broadcast)

	logger.Info().Str("queue", cfg.Queues.Broadcast).Msg("broadcaster: запущен")
	for {
		job, err := jobs.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("broadcaster: остановлен")
				return
			}
			logger.Error().Err(err).Msg("broadcaster: очередь недоступна")
			// Пауза перед повтором, чтобы лежащая очередь не
			// раскручивала горячий цикл.
			select {
			case <-ctx.Done():
				logger.Info().Msg("broadcaster: остановлен")
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		logger.Info().Str("notification", job.Notification.ID).Int("chats", len(job.ChatIDs)).Msg("broadcaster: задача получена")
		sink.DeliverBroadcast(ctx, job)
	}
}
