// Package gate решает, достоин ли сигнал отправки подписчикам.
//
// Пропускаются только направленные сигналы с вероятностью не ниже порога
// режима; повторный сигнал того же типа подавляется в течение окна
// с момента последней фактической отправки.
package gate

import (
	"sync"
	"time"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

// Gate фильтр сигналов с анти-спам состоянием
type Gate struct {
	cfg config.AnalysisConfig

	mu          sync.Mutex
	lastType    models.SignalType
	lastTime    time.Time
	lastPrice   float64
	hasDispatch bool
}

// New создает новый фильтр сигналов
func New(cfg config.AnalysisConfig) *Gate {
	return &Gate{cfg: cfg}
}

// ShouldDispatch проверяет, нужно ли отправлять сигнал. NEUTRAL не отправляется
// никогда; направленный сигнал должен пройти порог вероятности режима
// (граница включительно) и окно подавления повторов.
func (g *Gate) ShouldDispatch(rec models.SignalRecord, mode models.Mode, now time.Time) bool {
	if rec.Type == models.SignalNeutral {
		return false
	}

	if rec.Probability < g.threshold(rec.Type, mode) {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	window := time.Duration(g.cfg.SuppressWindowSeconds) * time.Second
	if g.hasDispatch && g.lastType == rec.Type && now.Sub(g.lastTime) < window {
		logger.Info("Сигнал подавлен анти-спам окном",
			zap.String("type", string(rec.Type)),
			zap.Duration("since_last", now.Sub(g.lastTime)))
		return false
	}

	return true
}

// MarkDispatched фиксирует фактическую отправку сигнала.
// Состояние меняется только здесь: подавленные и не прошедшие порог
// сигналы окно не сдвигают.
func (g *Gate) MarkDispatched(rec models.SignalRecord, price float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastType = rec.Type
	g.lastTime = now
	g.lastPrice = price
	g.hasDispatch = true
}

// LastDispatch возвращает тип и время последней отправки
func (g *Gate) LastDispatch() (models.SignalType, time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastType, g.lastTime, g.hasDispatch
}

// threshold возвращает порог вероятности для типа сигнала и режима
func (g *Gate) threshold(t models.SignalType, mode models.Mode) float64 {
	mc := g.cfg.Swing
	if mode == models.ModeDay {
		mc = g.cfg.Day
	}

	if t == models.SignalDump {
		return mc.DumpThreshold
	}
	return mc.PumpThreshold
}
