package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestSleep_InterruptedByCancel(t *testing.T) {
	s := &Scheduler{}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan bool, 1)
	go func() { done <- s.sleep(ctx, time.Hour) }()

	// Отмена контекста обязана прервать ожидание в пределах секундного тика
	select {
	case got := <-done:
		if got {
			t.Error("sleep() = true, want false после отмены")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sleep() не прервался после отмены контекста")
	}
}

func TestSleep_CompletesWithoutCancel(t *testing.T) {
	s := &Scheduler{}
	if !s.sleep(context.Background(), 10*time.Millisecond) {
		t.Error("sleep() = false, want true без отмены")
	}
}
