package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTrailingCoalesces(t *testing.T) {
	d := NewTrailing(50 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(120 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("ожидали ровно один вызов, получили %d", got)
	}
}

func TestTrailingStopCancelsPending(t *testing.T) {
	d := NewTrailing(30 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("после Stop вызовов быть не должно, получили %d", got)
	}
}

func TestTrailingFlushReportsPending(t *testing.T) {
	d := NewTrailing(time.Hour)
	if d.Flush() {
		t.Fatal("без Trigger отложенного вызова быть не должно")
	}
	d.Trigger(func() {})
	if !d.Flush() {
		t.Fatal("ожидали отложенный вызов в ожидании")
	}
}
