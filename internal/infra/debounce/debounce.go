package debounce

import (
	"sync"
	"time"
)

// Trailing откладывает выполнение функции до тихого периода: каждый
// новый Trigger перезапускает таймер, выполняется только последняя
// переданная функция. Используется для отложенной записи прогресса
// в удалённое хранилище.
type Trailing struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	stopped bool
}

// NewTrailing создаёт дебаунсер с заданным тихим периодом.
func NewTrailing(delay time.Duration) *Trailing {
	return &Trailing{delay: delay}
}

// Trigger планирует выполнение fn через тихий период, сбрасывая
// ранее запланированный вызов.
func (t *Trailing) Trigger(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.delay, fn)
}

// Flush немедленно отменяет запланированный вызов и возвращает true,
// если вызов был в ожидании. Сам вызов остаётся за вызывающей
// стороной.
func (t *Trailing) Flush() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return false
	}
	pending := t.timer.Stop()
	t.timer = nil
	return pending
}

// Stop отменяет запланированный вызов и запрещает новые.
func (t *Trailing) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
