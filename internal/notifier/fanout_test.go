package notifier

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/skalibog/bpdb/internal/config"
)

// recordingSender считает попытки отправки по получателям,
// для failID всегда возвращает ошибку
type recordingSender struct {
	mu       sync.Mutex
	attempts map[int64]int
	failID   int64
}

func newRecordingSender(failID int64) *recordingSender {
	return &recordingSender{
		attempts: make(map[int64]int),
		failID:   failID,
	}
}

func (s *recordingSender) SendMessage(_ context.Context, chatID int64, _ string) error {
	s.mu.Lock()
	s.attempts[chatID]++
	s.mu.Unlock()

	if chatID == s.failID {
		return fmt.Errorf("получатель недоступен")
	}
	return nil
}

func testNotifierConfig() config.NotifierConfig {
	return config.NotifierConfig{
		MaxConcurrent: 25,
		BatchSize:     50,
		BatchPauseMS:  1,
		SendRetries:   3,
		RetryDelayMS:  1,
	}
}

func recipients(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

func TestBroadcast_FailedRecipientIsolated(t *testing.T) {
	sender := newRecordingSender(7)
	f := NewFanout(sender, testNotifierConfig())

	sent := f.Broadcast(context.Background(), recipients(120), "сигнал")

	// 120 подписчиков, один падает на всех ретраях
	if sent != 119 {
		t.Errorf("Broadcast() = %d, want 119", sent)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()

	if len(sender.attempts) != 120 {
		t.Errorf("попыток отправки по получателям = %d, want 120", len(sender.attempts))
	}
	if sender.attempts[7] != 3 {
		t.Errorf("неудачный получатель получил %d попыток, want 3", sender.attempts[7])
	}
	if sender.attempts[1] != 1 {
		t.Errorf("успешный получатель получил %d попыток, want 1", sender.attempts[1])
	}
}

func TestBroadcast_EmptyRecipients(t *testing.T) {
	sender := newRecordingSender(0)
	f := NewFanout(sender, testNotifierConfig())

	if sent := f.Broadcast(context.Background(), nil, "сигнал"); sent != 0 {
		t.Errorf("Broadcast() = %d, want 0", sent)
	}
}

func TestBroadcast_SmallBatch(t *testing.T) {
	sender := newRecordingSender(0)
	cfg := testNotifierConfig()
	cfg.BatchSize = 10

	f := NewFanout(sender, cfg)
	if sent := f.Broadcast(context.Background(), recipients(5), "сигнал"); sent != 5 {
		t.Errorf("Broadcast() = %d, want 5", sent)
	}
}

// timedSender фиксирует момент отправки каждому получателю
type timedSender struct {
	mu    sync.Mutex
	times map[int64]time.Time
}

func (s *timedSender) SendMessage(_ context.Context, chatID int64, _ string) error {
	s.mu.Lock()
	s.times[chatID] = time.Now()
	s.mu.Unlock()
	return nil
}

func TestBroadcast_BatchesSeparatedByPause(t *testing.T) {
	sender := &timedSender{times: make(map[int64]time.Time)}
	cfg := testNotifierConfig()
	cfg.BatchPauseMS = 30

	f := NewFanout(sender, cfg)
	if sent := f.Broadcast(context.Background(), recipients(120), "сигнал"); sent != 120 {
		t.Fatalf("Broadcast() = %d, want 120", sent)
	}

	// 120 получателей при батче 50 — три батча; между соседними батчами
	// пауза, поэтому последняя отправка батча обязана завершиться раньше
	// первой отправки следующего минимум на BatchPauseMS
	pause := time.Duration(cfg.BatchPauseMS) * time.Millisecond
	for batch := 0; batch < 2; batch++ {
		var lastPrev, firstNext time.Time
		for id, at := range sender.times {
			idx := int(id - 1)
			switch idx / cfg.BatchSize {
			case batch:
				if at.After(lastPrev) {
					lastPrev = at
				}
			case batch + 1:
				if firstNext.IsZero() || at.Before(firstNext) {
					firstNext = at
				}
			}
		}

		if gap := firstNext.Sub(lastPrev); gap < pause {
			t.Errorf("пауза между батчами %d и %d = %v, want не меньше %v",
				batch+1, batch+2, gap, pause)
		}
	}
}

// gatedSender блокирует отправки до явного освобождения,
// сигнализируя о каждой начатой отправке
type gatedSender struct {
	started chan struct{}
	release chan struct{}

	mu       sync.Mutex
	startedN int
}

func (s *gatedSender) SendMessage(_ context.Context, _ int64, _ string) error {
	s.mu.Lock()
	s.startedN++
	s.mu.Unlock()

	s.started <- struct{}{}
	<-s.release
	return nil
}

func (s *gatedSender) startedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedN
}

func TestBroadcast_CanceledMidBatchCountsStartedSends(t *testing.T) {
	sender := &gatedSender{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	cfg := testNotifierConfig()
	cfg.MaxConcurrent = 2
	cfg.BatchSize = 4
	cfg.SendRetries = 1

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Две отправки заняли весь семафор; отмена обрывает ожидание
		// семафора, после чего начатые отправки освобождаются и успевают
		// завершиться успешно
		<-sender.started
		<-sender.started
		cancel()
		close(sender.release)
	}()

	f := NewFanout(sender, cfg)
	sent := f.Broadcast(ctx, recipients(4), "сигнал")

	// Каждая начатая отправка завершается успехом и обязана попасть
	// в возвращенный счетчик
	if started := sender.startedCount(); sent != started {
		t.Errorf("Broadcast() = %d, want %d (все начатые отправки)", sent, started)
	}
	if sent < 2 {
		t.Errorf("Broadcast() = %d, want не меньше 2", sent)
	}
}
