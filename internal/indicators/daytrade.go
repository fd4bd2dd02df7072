package indicators

import (
	"math"

	"github.com/skalibog/bpdb/pkg/models"
)

// Окно расчета краткосрочной волатильности и моментума, в барах
const volatilityWindow = 5

// computeDayBlock рассчитывает внутридневной блок индикаторов: быстрая и
// медленная EMA, волатильность, всплеск объема, консолидация, спред и
// итоговый признак валидности для скальперских сигналов.
func (e *Engine) computeDayBlock(candles []models.Candle, closes, volumes []float64, book *models.OrderBook, rsi float64) *models.DayIndicators {
	dc := e.cfg.DayTrade

	fast := emaSeries(closes, dc.MAFast)
	slow := emaSeries(closes, dc.MASlow)
	n := len(closes)

	emaFast := fast[n-1]
	emaSlow := slow[n-1]

	trend := models.TrendFlat
	if emaFast > emaSlow {
		trend = models.TrendUp
	} else if emaFast < emaSlow {
		trend = models.TrendDown
	}

	trendStrength := 0.0
	if emaSlow != 0 {
		trendStrength = math.Abs(emaFast-emaSlow) / emaSlow * 100
	}

	day := &models.DayIndicators{
		EMAFast:       emaFast,
		EMASlow:       emaSlow,
		Trend:         trend,
		TrendStrength: trendStrength,
		Volatile:      e.computeVolatility(candles),
		VolumeSurge:   computeVolumeSurge(volumes, dc.MASlow),
		Consolidating: e.computeConsolidation(candles),
		Momentum5:     computeMomentumPercent(closes, volatilityWindow),
		SpreadPercent: computeSpreadPercent(book),
		MACross:       computeMACross(fast, slow),
	}

	// Сигнал пригоден для внутридневной торговли только при одновременном
	// выполнении всех условий ликвидности и движения
	day.Valid = day.Volatile &&
		day.VolumeSurge >= dc.VolumeSurgeThreshold &&
		day.SpreadPercent <= dc.MaxSpreadPercent &&
		day.TrendStrength >= dc.TrendStrengthThreshold &&
		rsi > 30 && rsi < 70

	return day
}

// computeVolatility проверяет, превышает ли диапазон последних 5 баров
// пороговую долю текущей цены
func (e *Engine) computeVolatility(candles []models.Candle) bool {
	n := len(candles)
	if n < volatilityWindow {
		return false
	}

	high := candles[n-volatilityWindow].High
	low := candles[n-volatilityWindow].Low
	for _, c := range candles[n-volatilityWindow:] {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}

	currentPrice := candles[n-1].Close
	if currentPrice == 0 {
		return false
	}

	rangePercent := (high - low) / currentPrice * 100
	return rangePercent > e.cfg.DayTrade.VolatilityThreshold
}

// computeVolumeSurge считает отношение текущего объема к среднему за окно
func computeVolumeSurge(volumes []float64, window int) float64 {
	n := len(volumes)
	if n < window {
		return 1.0
	}

	var sum float64
	for _, v := range volumes[n-window:] {
		sum += v
	}
	avg := sum / float64(window)
	if avg == 0 {
		return 1.0
	}

	return volumes[n-1] / avg
}

// computeConsolidation проверяет, сжался ли ценовой диапазон последних
// N баров ниже порога консолидации
func (e *Engine) computeConsolidation(candles []models.Candle) bool {
	dc := e.cfg.DayTrade
	n := len(candles)
	if n < dc.ConsolidationBars {
		return false
	}

	high := candles[n-dc.ConsolidationBars].High
	low := candles[n-dc.ConsolidationBars].Low
	for _, c := range candles[n-dc.ConsolidationBars:] {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}

	currentPrice := candles[n-1].Close
	if currentPrice == 0 {
		return false
	}

	rangePercent := (high - low) / currentPrice * 100
	return rangePercent < dc.ConsolidationThreshold
}

// computeMomentumPercent считает процентное изменение цены за bars баров
func computeMomentumPercent(closes []float64, bars int) float64 {
	n := len(closes)
	if n <= bars {
		return 0.0
	}

	past := closes[n-1-bars]
	if past == 0 {
		return 0.0
	}

	return (closes[n-1] - past) / past * 100
}

// computeSpreadPercent считает спред между лучшим бидом и аском в процентах
// от средней цены. Без стакана спред считается нулевым.
func computeSpreadPercent(book *models.OrderBook) float64 {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0.0
	}

	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price
	mid := (bestBid + bestAsk) / 2
	if mid == 0 {
		return 0.0
	}

	return (bestAsk - bestBid) / mid * 100
}

// computeMACross определяет пересечение быстрой и медленной MA
// на последних двух барах
func computeMACross(fast, slow []float64) models.MACross {
	n := len(fast)
	if n < 2 {
		return models.MACrossNone
	}

	prevDiff := fast[n-2] - slow[n-2]
	currDiff := fast[n-1] - slow[n-1]

	if prevDiff <= 0 && currDiff > 0 {
		return models.MACrossBuy
	}
	if prevDiff >= 0 && currDiff < 0 {
		return models.MACrossSell
	}
	return models.MACrossNone
}
