package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-academy-bot/internal/domain"
)

// ErrEmptyText возвращается при попытке разослать пустое уведомление.
var ErrEmptyText = errors.New("текст уведомления пуст")

// Service реализует админскую рассылку: уведомление добавляется в
// удалённую ленту и отдельно ставится задача доставки. Две записи
// независимы, атомарности между ними нет: лента может уже содержать
// уведомление, которое ещё не доставлено в чаты.
type Service struct {
	remote domain.RemoteStore
	queue  domain.BroadcastQueue
	log    zerolog.Logger
}

// NewService создаёт сервис рассылок.
func NewService(remote domain.RemoteStore, queue domain.BroadcastQueue, log zerolog.Logger) *Service {
	return &Service{remote: remote, queue: queue, log: log}
}

// Send публикует уведомление. Лента append-only: записи не мутируются
// и не удаляются. Возвращает итоговое уведомление с назначенным
// идентификатором.
func (s *Service) Send(ctx context.Context, n domain.AppNotification, audience []domain.UserProgress) (domain.AppNotification, error) {
	if n.Text == "" {
		return domain.AppNotification{}, ErrEmptyText
	}
	if n.Type == "" {
		n.Type = domain.NotificationInfo
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Date == 0 {
		n.Date = domain.NowMillis()
	}

	fields := map[string]any{
		"id":   n.ID,
		"type": string(n.Type),
		"text": n.Text,
		"date": n.Date,
	}
	if n.Link != "" {
		fields["link"] = n.Link
	}
	if n.TargetRole != "" {
		fields["target_role"] = string(n.TargetRole)
	}
	if n.TargetUserID != 0 {
		fields["target_user_id"] = n.TargetUserID
	}
	if s.remote.Upsert(ctx, domain.CollectionNotifications, "id", n.ID, fields) == "" {
		return domain.AppNotification{}, fmt.Errorf("уведомление не записано в ленту")
	}

	var chatIDs []int64
	for _, u := range audience {
		if u.Banned || !u.Prefs.Enabled || !u.Prefs.Broadcasts {
			continue
		}
		if n.VisibleTo(u) {
			chatIDs = append(chatIDs, u.TelegramID)
		}
	}
	if len(chatIDs) > 0 {
		job := domain.BroadcastJob{Notification: n, ChatIDs: chatIDs}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			// Лента уже пополнена: доставку подберёт следующий опрос
			// клиентов, задача лишь ускоряла её.
			s.log.Warn().Err(err).Str("notification", n.ID).Msg("broadcast: задача доставки не поставлена")
		}
	}
	return n, nil
}
