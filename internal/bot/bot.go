// Package bot реализует обработку команд пользователей через long-polling.
//
// Работает параллельно с циклом анализа: текущий режим торговли читается
// и меняется через потокобезопасный доступ планировщика.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/internal/notifier"
	"github.com/skalibog/bpdb/internal/storage"
	"github.com/skalibog/bpdb/pkg/format"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

// Analyzer доступ к состоянию конвейера анализа
type Analyzer interface {
	Mode() models.Mode
	SetMode(mode models.Mode)
	LastCycle() (*models.Snapshot, *models.Indicators, models.SignalRecord, bool)
}

// Bot обработчик команд Telegram
type Bot struct {
	client   *notifier.TelegramClient
	store    storage.Storage
	analyzer Analyzer
	symbol   string
	timeout  int
}

// New создает обработчик команд
func New(client *notifier.TelegramClient, store storage.Storage, analyzer Analyzer, cfg config.Config) *Bot {
	return &Bot{
		client:   client,
		store:    store,
		analyzer: analyzer,
		symbol:   cfg.Trading.Symbol,
		timeout:  cfg.Telegram.PollTimeoutSeconds,
	}
}

// Run запускает цикл long-polling до отмены контекста
func (b *Bot) Run(ctx context.Context) {
	logger.Info("Обработчик команд запущен")

	var offset int64
	for {
		select {
		case <-ctx.Done():
			logger.Info("Обработчик команд остановлен")
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("Ошибка получения обновлений", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, upd := range updates {
			offset = upd.UpdateID + 1
			if upd.Message == nil || upd.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, upd.Message)
		}
	}
}

// handleMessage разбирает команду и отвечает пользователю
func (b *Bot) handleMessage(ctx context.Context, msg *notifier.Message) {
	command := strings.TrimSpace(msg.Text)
	if i := strings.Index(command, "@"); i > 0 && strings.HasPrefix(command, "/") {
		command = command[:i]
	}

	logger.Info("Получена команда",
		zap.String("command", command),
		zap.Int64("user_id", msg.From.ID))

	var reply string
	switch command {
	case "/start":
		reply = b.handleStart(ctx, msg)
	case "/status":
		reply = b.handleStatus()
	case "/stats":
		reply = b.handleStats(ctx)
	case "/subscribe":
		reply = b.handleSubscribe(ctx, msg.From.ID)
	case "/unsubscribe":
		reply = b.handleUnsubscribe(ctx, msg.From.ID)
	case "/mode":
		reply = b.handleMode()
	case "/help":
		reply = helpText
	default:
		return
	}

	if err := b.client.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		logger.Warn("Ошибка отправки ответа", zap.Error(err))
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *notifier.Message) string {
	if err := b.store.AddUser(ctx, msg.From.ID, msg.From.Username, msg.From.FirstName); err != nil {
		logger.Warn("Ошибка регистрации пользователя", zap.Error(err))
	}

	return fmt.Sprintf(`👋 Привет, %s!

Я бот для анализа %s и прогнозирования PUMP/DUMP движений.

🤖 Что я умею:
- Анализировать рынок в режиме реального времени
- Рассчитывать вероятность роста/падения
- Отправлять сигналы с высокой точностью
- Показывать технические индикаторы

📊 Команды:
/status - Текущий анализ
/stats - Статистика и точность
/subscribe - Включить уведомления
/unsubscribe - Отключить уведомления
/mode - Текущий режим торговли
/help - Помощь

⚠️ Disclaimer: Это не финансовый совет. Торгуйте на свой риск!`, msg.From.FirstName, b.symbol)
}

func (b *Bot) handleStatus() string {
	snap, ind, rec, ok := b.analyzer.LastCycle()
	if !ok {
		return "🔄 Анализ еще не выполнялся, подождите первый цикл..."
	}

	bollinger := "Внутри диапазона"
	switch ind.BBPosition {
	case models.BandAboveUpper:
		bollinger = "Выше верхней полосы"
	case models.BandBelowLower:
		bollinger = "Ниже нижней полосы"
	}

	return fmt.Sprintf(`📊 %s Анализ

💰 Цена: %s
📈 Изменение 1h: %s
📊 Изменение 4h: %s

🔍 Индикаторы:
- RSI (14): %.0f
- MACD: %s
- Bollinger: %s
- Объём: %s от среднего
- Fear & Greed: %d

🎯 Прогноз: %s
Вероятность: %s
Confidence: %s

⏰ Обновлено: %s`,
		b.symbol,
		format.Price(snap.CurrentPrice),
		format.Percent(snap.PriceChange1h),
		format.Percent(snap.PriceChange4h),
		ind.RSI,
		ind.MACDCrossover,
		bollinger,
		format.Percent((ind.VolumeRatio-1)*100),
		snap.FearGreed,
		rec.Type,
		format.Probability(rec.Probability),
		rec.Confidence,
		format.Timestamp(snap.Timestamp))
}

func (b *Bot) handleStats(ctx context.Context) string {
	accuracy, err := b.store.GetSignalAccuracy(ctx, 7)
	if err != nil {
		logger.Warn("Ошибка запроса статистики", zap.Error(err))
		return "⚠️ Не удалось получить статистику, попробуйте позже."
	}

	if len(accuracy) == 0 {
		return `📊 Статистика за последние 7 дней

Пока недостаточно данных для расчёта точности.
Бот только начал работу! 🚀

Подпишись на сигналы: /subscribe`
	}

	pumpAcc := accuracy[models.SignalPump]
	dumpAcc := accuracy[models.SignalDump]

	return fmt.Sprintf(`📊 Статистика за последние 7 дней

🚀 PUMP сигналы: %.1f%% точность
📉 DUMP сигналы: %.1f%% точность

Общая точность: %.1f%%

⏰ Обновлено: %s`,
		pumpAcc, dumpAcc, (pumpAcc+dumpAcc)/2, format.Timestamp(time.Now()))
}

func (b *Bot) handleSubscribe(ctx context.Context, userID int64) string {
	if err := b.store.UpdateSubscription(ctx, userID, true); err != nil {
		logger.Warn("Ошибка обновления подписки", zap.Error(err))
		return "⚠️ Не удалось оформить подписку, попробуйте позже."
	}

	return `✅ Вы подписаны на сигналы!

Вы будете получать уведомления когда:
• Обнаружен сильный сигнал PUMP/DUMP
• Вероятность выше порога
• Confidence уровень HIGH или MEDIUM

Используйте /unsubscribe чтобы отписаться.`
}

func (b *Bot) handleUnsubscribe(ctx context.Context, userID int64) string {
	if err := b.store.UpdateSubscription(ctx, userID, false); err != nil {
		logger.Warn("Ошибка обновления подписки", zap.Error(err))
		return "⚠️ Не удалось отписаться, попробуйте позже."
	}

	return `❌ Вы отписались от сигналов.

Используйте /subscribe чтобы подписаться снова.`
}

// handleMode переключает режим торговли: swing ↔ day
func (b *Bot) handleMode() string {
	current := b.analyzer.Mode()

	next := models.ModeDay
	if current == models.ModeDay {
		next = models.ModeSwing
	}
	b.analyzer.SetMode(next)

	logger.Info("Режим торговли переключен",
		zap.String("from", string(current)),
		zap.String("to", string(next)))

	if next == models.ModeDay {
		return `⚡ Режим переключен: внутридневной (day)

Таймфрейм 1m, проверка каждую минуту, порог сигналов 75%.`
	}
	return `🌊 Режим переключен: свинг (swing)

Таймфрейм 5m, проверка каждые 5 минут, порог сигналов 70%.`
}

const helpText = `❓ Помощь по боту

📊 Что означают сигналы:

🚀 PUMP - Прогноз роста цены
📉 DUMP - Прогноз падения цены
⚪️ NEUTRAL - Нет четкого тренда

🎚️ Уровни уверенности:
- HIGH: вероятность 75%+
- MEDIUM: вероятность 60-75%
- LOW: менее 60%

🔍 Индикаторы:
- RSI - индекс относительной силы
- MACD - схождение/расхождение средних
- Bollinger Bands - полосы Боллинджера
- Volume - анализ объёмов
- Fear & Greed - индекс страха и жадности

⚠️ Важно:
- Это не финансовый совет
- Всегда проводите свой анализ
- Используйте стоп-лоссы
- Не вкладывайте больше, чем можете потерять`
