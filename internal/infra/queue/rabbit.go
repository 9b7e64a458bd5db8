package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ChangeListener слушает fanout-обменник с событиями изменений
// удалённого хранилища и дёргает колбэк на каждое событие. Колбэк
// запускает внеочередной цикл синхронизации у живых сессий.
type ChangeListener struct {
	conn     *amqp.Connection
	exchange string
	log      zerolog.Logger
}

// NewChangeListener подключается к RabbitMQ.
func NewChangeListener(url, exchange string, log zerolog.Logger) (*ChangeListener, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &ChangeListener{conn: conn, exchange: exchange, log: log}, nil
}

// Listen блокирующе читает события до отмены контекста.
func (l *ChangeListener) Listen(ctx context.Context, onChange func()) error {
	ch, err := l.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(l.exchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", l.exchange, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			l.log.Debug().Str("routing_key", d.RoutingKey).Msg("событие изменения удалённого хранилища")
			onChange()
		}
	}
}

// Close закрывает соединение.
func (l *ChangeListener) Close() error {
	return l.conn.Close()
}
