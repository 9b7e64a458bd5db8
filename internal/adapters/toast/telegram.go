package toast

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
	"tg-academy-bot/internal/infra/metrics"
)

// Telegram бот-сообщения не длиннее лимита API.
const maxMessageLen = 4096

// Telegram реализует domain.ToastSink через Bot API: уведомление
// уходит сообщением в личный чат, тип задаёт эмодзи-акцент
// (тактильный отклик добавляет хост мини-аппа).
type Telegram struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.ToastSink = (*Telegram)(nil)

// NewTelegram создаёт доставку тостов.
func NewTelegram(bot *tgbotapi.BotAPI, log zerolog.Logger) *Telegram {
	return &Telegram{bot: bot, log: log}
}

func prefixFor(kind domain.NotificationType) string {
	switch kind {
	case domain.NotificationWarning:
		return "⚠️ "
	case domain.NotificationSuccess:
		return "✅ "
	case domain.NotificationAlert:
		return "🚨 "
	default:
		return "ℹ️ "
	}
}

// Toast отправляет уведомление в чат.
func (t *Telegram) Toast(ctx context.Context, chatID int64, kind domain.NotificationType, text, link string) error {
	body := prefixFor(kind) + text
	if link != "" {
		body += "\n" + link
	}
	body = Truncate(body, maxMessageLen)
	msg := tgbotapi.NewMessage(chatID, body)
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	if err != nil {
		t.log.Warn().Err(err).Int64("chat", chatID).Msg("toast: сообщение не отправлено")
	}
	return err
}

// DeliverBroadcast доставляет рассылку списку чатов; неудача по
// одному чату не прерывает остальных.
func (t *Telegram) DeliverBroadcast(ctx context.Context, job domain.BroadcastJob) {
	for _, chatID := range job.ChatIDs {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := t.Toast(ctx, chatID, job.Notification.Type, job.Notification.Text, job.Notification.Link); err != nil {
			metrics.BroadcastDeliveries.WithLabelValues("error").Inc()
			continue
		}
		metrics.BroadcastDeliveries.WithLabelValues("ok").Inc()
	}
}

// Discard реализует domain.ToastSink без доставки: используется, когда
// бот не настроен.
type Discard struct{}

var _ domain.ToastSink = Discard{}

// Toast молча принимает уведомление.
func (Discard) Toast(ctx context.Context, chatID int64, kind domain.NotificationType, text, link string) error {
	return nil
}

// Truncate обрезает текст по лимиту, не разрывая руны.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const ellipsis = "…"
	out := make([]rune, 0, limit/4)
	size := 0
	for _, r := range s {
		size += len(string(r))
		if size > limit-len(ellipsis) {
			break
		}
		out = append(out, r)
	}
	return string(out) + ellipsis
}
