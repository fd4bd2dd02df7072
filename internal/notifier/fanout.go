package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Sender отправитель одного сообщения одному получателю
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Fanout рассылает сообщение списку получателей с ограничением параллелизма.
// Получатели обрабатываются батчами с паузой между ними, чтобы не упереться
// в лимиты Bot API; отказ одного получателя не прерывает остальных.
type Fanout struct {
	sender Sender
	cfg    config.NotifierConfig
	sem    *semaphore.Weighted
}

// NewFanout создает рассыльщик с бюджетом параллельных отправок
func NewFanout(sender Sender, cfg config.NotifierConfig) *Fanout {
	return &Fanout{
		sender: sender,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Broadcast отправляет текст всем получателям и возвращает число успешных
// доставок. Каждая отправка повторяется до SendRetries раз с линейно
// растущей паузой.
func (f *Fanout) Broadcast(ctx context.Context, recipients []int64, text string) int {
	var sent atomic.Int64

	for start := 0; start < len(recipients); start += f.cfg.BatchSize {
		end := start + f.cfg.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]

		var wg sync.WaitGroup
		for _, chatID := range batch {
			if err := f.sem.Acquire(ctx, 1); err != nil {
				logger.Warn("Рассылка прервана", zap.Error(err))
				// Уже запущенные отправки доводятся до конца и входят в счетчик
				wg.Wait()
				return int(sent.Load())
			}

			wg.Add(1)
			go func(chatID int64) {
				defer wg.Done()
				defer f.sem.Release(1)

				if f.sendWithRetries(ctx, chatID, text) {
					sent.Add(1)
				}
			}(chatID)
		}
		wg.Wait()

		// Пауза между батчами, после последнего не нужна
		if end < len(recipients) {
			select {
			case <-time.After(time.Duration(f.cfg.BatchPauseMS) * time.Millisecond):
			case <-ctx.Done():
				return int(sent.Load())
			}
		}
	}

	logger.Info("Рассылка завершена",
		zap.Int("sent", int(sent.Load())),
		zap.Int("total", len(recipients)))

	return int(sent.Load())
}

// sendWithRetries отправляет сообщение одному получателю с повторами.
// Исчерпание попыток логируется и не влияет на остальных получателей.
func (f *Fanout) sendWithRetries(ctx context.Context, chatID int64, text string) bool {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.SendRetries; attempt++ {
		err := f.sender.SendMessage(ctx, chatID, text)
		if err == nil {
			return true
		}
		lastErr = err

		if attempt < f.cfg.SendRetries {
			delay := time.Duration(attempt*f.cfg.RetryDelayMS) * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		}
	}

	logger.Error("Не удалось отправить сообщение получателю",
		zap.Int64("chat_id", chatID),
		zap.Error(lastErr))
	return false
}
