package domain

import (
	"context"
	"fmt"
	"time"
)

// RemoteStore абстрагирует удалённое хранилище именованных коллекций.
// Методы не возвращают ошибок транспорта: при любой сетевой проблеме
// возвращается безопасное пустое значение, а проблема логируется
// внутри адаптера. Флаг ok чтений отличает «коллекция действительно
// пуста» от «выборка не удалась»: без него сетевой сбой был бы
// неотличим от пустой коллекции и затирал бы уже синхронизированные
// данные дефолтами. Ping — единственный метод с реальной ошибкой:
// им пользуется явная пользовательская проверка соединения.
type RemoteStore interface {
	// FetchCollection возвращает все записи коллекции. Отсутствующая
	// на сервере коллекция эквивалентна пустой (ok=true); ok=false
	// только при сбое транспорта.
	FetchCollection(ctx context.Context, name string) ([]RawRecord, bool)
	// Upsert ищет запись по точному совпадению idField=idValue и
	// обновляет её, либо создаёт новую. Возвращает идентификатор
	// записи в хранилище или пустую строку при неудаче.
	Upsert(ctx context.Context, name, idField, idValue string, fields map[string]any) string
	// Query возвращает записи с точным совпадением поля; семантика ok
	// та же, что у FetchCollection.
	Query(ctx context.Context, name, field, value string) ([]RawRecord, bool)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// LocalCache синхронный локальный кэш состояния. Чтение никогда не
// отдаёт ошибку наружу: битые или отсутствующие данные означают
// «значения нет», и вызывающая сторона остаётся на своём дефолте.
type LocalCache interface {
	// GetJSON декодирует значение ключа в dst. Возвращает false,
	// если значения нет или оно не декодируется.
	GetJSON(ctx context.Context, key string, dst any) bool
	// SetJSON сохраняет значение ключа.
	SetJSON(ctx context.Context, key string, value any)
	// Delete удаляет ключ.
	Delete(ctx context.Context, key string)
	// Clear удаляет все ключи с данным префиксом.
	Clear(ctx context.Context, prefix string)
	// Once выполняет fn только если ключ ещё не занят (замок на ttl).
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// ToastSink доставляет пользователю всплывающее уведомление
// (сообщение в чат мини-аппа с тактильным акцентом на стороне хоста).
type ToastSink interface {
	Toast(ctx context.Context, chatID int64, kind NotificationType, text, link string) error
}

// BroadcastJob задача на доставку уведомления списку чатов.
type BroadcastJob struct {
	Notification AppNotification `json:"notification"`
	ChatIDs      []int64         `json:"chat_ids"`
}

// BroadcastQueue очередь рассылки уведомлений.
type BroadcastQueue interface {
	Enqueue(ctx context.Context, job BroadcastJob) error
	Pop(ctx context.Context) (BroadcastJob, error)
}

// CacheKey строит ключ локального кэша для пользователя и логического
// раздела состояния.
func CacheKey(tgID int64, logical string) string {
	return fmt.Sprintf("academy:%d:%s", tgID, logical)
}
