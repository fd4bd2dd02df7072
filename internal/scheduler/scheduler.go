// Package scheduler управляет жизненным циклом анализа: периодически
// собирает снимок рынка, считает индикаторы, скорит и рассылает сигналы.
//
// Планировщик владеет всем процессным изменяемым состоянием; режим торговли
// защищен мьютексом, так как меняется параллельно обработчиком команд.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skalibog/bpdb/internal/collector"
	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/internal/gate"
	"github.com/skalibog/bpdb/internal/health"
	"github.com/skalibog/bpdb/internal/indicators"
	"github.com/skalibog/bpdb/internal/notifier"
	"github.com/skalibog/bpdb/internal/scorer"
	"github.com/skalibog/bpdb/internal/storage"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

// Scheduler цикл анализа рынка
type Scheduler struct {
	cfg       *config.Config
	collector *collector.Collector
	engine    *indicators.Engine
	scorer    scorer.Scorer
	gate      *gate.Gate
	store     storage.Storage
	fanout    *notifier.Fanout
	health    *health.Server
	influx    *storage.InfluxSnapshotSink // nil, если не включен

	modeMu sync.RWMutex
	mode   models.Mode

	lastMu   sync.RWMutex
	lastSnap *models.Snapshot
	lastInd  *models.Indicators
	lastRec  models.SignalRecord
	hasCycle bool

	// Отправленные сигналы, ожидающие проверки фактического исхода
	pending []pendingSignal
}

// pendingSignal отправленный сигнал до записи его исхода
type pendingSignal struct {
	id    int64
	typ   models.SignalType
	price float64
	at    time.Time
}

// Исход сигнала проверяется спустя час после отправки
const resultCheckAfter = time.Hour

// New создает планировщик
func New(
	cfg *config.Config,
	coll *collector.Collector,
	engine *indicators.Engine,
	sc scorer.Scorer,
	g *gate.Gate,
	store storage.Storage,
	fanout *notifier.Fanout,
	h *health.Server,
	influx *storage.InfluxSnapshotSink,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		collector: coll,
		engine:    engine,
		scorer:    sc,
		gate:      g,
		store:     store,
		fanout:    fanout,
		health:    h,
		influx:    influx,
		mode:      models.Mode(cfg.Trading.Mode),
	}
}

// Mode возвращает текущий режим торговли
func (s *Scheduler) Mode() models.Mode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// SetMode переключает режим торговли. Вступает в силу со следующего цикла.
func (s *Scheduler) SetMode(mode models.Mode) {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
}

// LastCycle возвращает результат последнего завершенного цикла
func (s *Scheduler) LastCycle() (*models.Snapshot, *models.Indicators, models.SignalRecord, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastSnap, s.lastInd, s.lastRec, s.hasCycle
}

// Run выполняет циклы анализа до отмены контекста.
// Начатый цикл доводится до конца; отмена проверяется между циклами.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("Планировщик запущен", zap.String("mode", string(s.Mode())))
	s.health.SetReady(true)

	for {
		s.runCycle(ctx)

		if !s.sleep(ctx, s.nextInterval()) {
			logger.Info("Планировщик остановлен")
			return
		}
	}
}

// runCycle выполняет один цикл: сбор, расчет, скоринг, фильтр, рассылка
func (s *Scheduler) runCycle(ctx context.Context) {
	mode := s.Mode()
	mc := s.cfg.ModeConfigFor(string(mode))
	cycleID := uuid.New().String()[:8]

	log := logger.GetLogger().With(
		zap.String("cycle", cycleID),
		zap.String("mode", string(mode)))

	log.Info("Цикл анализа начат")

	snap, err := s.collector.Collect(ctx, mc.Timeframe, mc.CandleLimit)
	if err != nil {
		log.Error("Цикл прерван: сбор данных не удался", zap.Error(err))
		s.health.RecordError()
		return
	}

	ind := s.engine.Compute(snap.Candles, snap.OrderBook, mode)
	if ind == nil {
		log.Warn("Недостаточно истории для расчета индикаторов",
			zap.Int("candles", len(snap.Candles)))
		return
	}

	rec := s.scorer.Score(ind, snap, mode)

	s.lastMu.Lock()
	s.lastSnap = snap
	s.lastInd = ind
	s.lastRec = rec
	s.hasCycle = true
	s.lastMu.Unlock()

	// Снимок цены пишется каждый цикл независимо от сигнала
	if err := s.store.SavePriceSnapshot(ctx, snap.CurrentPrice, snap.CurrentVolume, ind, snap.FearGreed); err != nil {
		log.Warn("Ошибка сохранения снимка цены", zap.Error(err))
	}
	if s.influx != nil {
		s.influx.WriteSnapshot(snap, ind)
	}

	s.health.RecordCycleCompleted()

	now := time.Now()
	s.checkPendingResults(ctx, log, snap.CurrentPrice, now)

	if !s.gate.ShouldDispatch(rec, mode, now) {
		log.Info("Цикл завершен без отправки",
			zap.String("signal", string(rec.Type)),
			zap.Float64("probability", rec.Probability))
		return
	}

	s.dispatch(ctx, log, rec, snap, ind, now)
}

// dispatch сохраняет сигнал и рассылает его подписчикам
func (s *Scheduler) dispatch(ctx context.Context, log *zap.Logger, rec models.SignalRecord, snap *models.Snapshot, ind *models.Indicators, now time.Time) {
	signalID, err := s.store.SaveSignal(ctx, rec, snap.CurrentPrice)
	if err != nil {
		log.Warn("Ошибка сохранения сигнала", zap.Error(err))
	} else {
		s.pending = append(s.pending, pendingSignal{
			id:    signalID,
			typ:   rec.Type,
			price: snap.CurrentPrice,
			at:    now,
		})
	}

	users, err := s.store.GetSubscribedUsers(ctx)
	if err != nil {
		log.Error("Ошибка запроса подписчиков, рассылка пропущена", zap.Error(err))
		s.health.RecordError()
		return
	}
	if len(users) == 0 {
		log.Info("Нет подписчиков для рассылки")
		s.gate.MarkDispatched(rec, snap.CurrentPrice, now)
		return
	}

	text := notifier.FormatSignal(rec, snap, ind, s.cfg.Trading.Symbol)
	sent := s.fanout.Broadcast(ctx, users, text)

	s.gate.MarkDispatched(rec, snap.CurrentPrice, now)
	s.health.RecordSignalsDispatched(sent)
	if s.influx != nil {
		s.influx.WriteSignal(rec, snap.CurrentPrice)
	}

	log.Info("Сигнал отправлен",
		zap.Int64("signal_id", signalID),
		zap.String("type", string(rec.Type)),
		zap.Int("sent", sent),
		zap.Int("subscribers", len(users)))
}

// checkPendingResults записывает фактический исход сигналов, отправленных
// более часа назад: сигнал считается верным, если цена сдвинулась в его сторону
func (s *Scheduler) checkPendingResults(ctx context.Context, log *zap.Logger, price float64, now time.Time) {
	remaining := s.pending[:0]
	for _, p := range s.pending {
		if now.Sub(p.at) < resultCheckAfter {
			remaining = append(remaining, p)
			continue
		}

		result := "incorrect"
		if (p.typ == models.SignalPump && price > p.price) ||
			(p.typ == models.SignalDump && price < p.price) {
			result = "correct"
		}

		if err := s.store.UpdateSignalResult(ctx, p.id, result, price); err != nil {
			log.Warn("Ошибка записи исхода сигнала",
				zap.Int64("signal_id", p.id), zap.Error(err))
			remaining = append(remaining, p)
			continue
		}

		log.Info("Исход сигнала записан",
			zap.Int64("signal_id", p.id),
			zap.String("result", result),
			zap.Float64("entry_price", p.price),
			zap.Float64("result_price", price))
	}
	s.pending = remaining
}

// nextInterval возвращает интервал до следующего цикла со случайным сдвигом,
// чтобы запросы не попадали в одну и ту же секунду свечи
func (s *Scheduler) nextInterval() time.Duration {
	base := s.cfg.CheckInterval(string(s.Mode()))
	jitter := time.Duration(float64(base) * s.cfg.Trading.JitterRatio * (2*rand.Float64() - 1))
	return base + jitter
}

// sleep ждет указанное время секундными тиками, прерываясь по контексту
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
	return true
}
