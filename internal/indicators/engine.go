// Package indicators реализует чистый расчет технических индикаторов
// по последовательности свечей и стакану заявок.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/models"
)

// Минимальная длина истории для валидного расчета индикаторов
const minCandles = 50

// Engine рассчитывает фиксированный набор индикаторов
type Engine struct {
	cfg config.AnalysisConfig
}

// NewEngine создает новый движок индикаторов
func NewEngine(cfg config.AnalysisConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Compute рассчитывает все индикаторы по свечам и стакану.
// Возвращает nil при истории короче 50 баров. Функция чистая: одинаковый
// вход всегда дает одинаковый результат.
func (e *Engine) Compute(candles []models.Candle, book *models.OrderBook, mode models.Mode) *models.Indicators {
	if len(candles) < minCandles {
		return nil
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	macd, macdSignal, macdHist, crossover := e.computeMACD(closes)
	bbUpper, bbMiddle, bbLower, bbPosition := e.computeBollinger(closes)

	ind := &models.Indicators{
		RSI:                e.computeRSI(closes),
		MACD:               macd,
		MACDSignal:         macdSignal,
		MACDHist:           macdHist,
		MACDCrossover:      crossover,
		BBUpper:            bbUpper,
		BBMiddle:           bbMiddle,
		BBLower:            bbLower,
		BBPosition:         bbPosition,
		EMA50:              lastEMA(closes, 50),
		Momentum:           computeMomentum(closes, 10),
		ATR:                e.computeATR(highs, lows, closes),
		VWAP:               computeVWAP(candles),
		OrderBookImbalance: computeImbalance(book),
	}

	if len(candles) >= 200 {
		ema200 := lastEMA(closes, 200)
		ind.EMA200 = &ema200
	}

	ind.VolumeRatio, ind.HighVolume = e.computeVolumeRatio(volumes)

	if mode == models.ModeDay {
		ind.Day = e.computeDayBlock(candles, closes, volumes, book, ind.RSI)
	}

	return ind
}

// computeRSI считает осциллятор относительной силы по скользящим средним
// приростов и потерь. При нулевой средней потере возвращает 100 (рынок
// полностью перекуплен), а на полностью плоском окне без приростов и
// потерь — нейтральные 50. NaN/Inf наружу не выходят.
func (e *Engine) computeRSI(closes []float64) float64 {
	period := e.cfg.RSIPeriod

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	avgGain := last(talib.Sma(gains, period))
	avgLoss := last(talib.Sma(losses, period))

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// computeMACD считает линию MACD, сигнальную линию и гистограмму.
// Кроссовер определяется по смене знака гистограммы на последних двух барах.
func (e *Engine) computeMACD(closes []float64) (macd, signal, hist float64, crossover models.Crossover) {
	fast := emaSeries(closes, e.cfg.MACDFast)
	slow := emaSeries(closes, e.cfg.MACDSlow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fast[i] - slow[i]
	}

	signalLine := emaSeries(macdLine, e.cfg.MACDSignal)

	histogram := make([]float64, len(closes))
	for i := range closes {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	n := len(closes)
	crossover = models.CrossoverNone
	if histogram[n-1] > 0 && histogram[n-2] <= 0 {
		crossover = models.CrossoverBullish
	} else if histogram[n-1] < 0 && histogram[n-2] >= 0 {
		crossover = models.CrossoverBearish
	}

	return macdLine[n-1], signalLine[n-1], histogram[n-1], crossover
}

// computeBollinger считает полосы Боллинджера и положение цены
func (e *Engine) computeBollinger(closes []float64) (upper, middle, lower float64, position models.BandPosition) {
	up, mid, low := talib.BBands(closes, e.cfg.BollingerPeriod, 2.0, 2.0, talib.SMA)

	upper = last(up)
	middle = last(mid)
	lower = last(low)

	currentPrice := closes[len(closes)-1]
	switch {
	case currentPrice > upper:
		position = models.BandAboveUpper
	case currentPrice < lower:
		position = models.BandBelowLower
	default:
		position = models.BandInside
	}

	return upper, middle, lower, position
}

// computeVolumeRatio считает отношение текущего объема к среднему за окно
func (e *Engine) computeVolumeRatio(volumes []float64) (ratio float64, high bool) {
	avgVolume := last(talib.Sma(volumes, e.cfg.VolumeMAPeriod))
	currentVolume := volumes[len(volumes)-1]

	ratio = 1.0
	if avgVolume > 0 {
		ratio = currentVolume / avgVolume
	}

	return ratio, ratio > 1.5
}

// computeATR считает средний истинный диапазон как скользящее среднее
// истинного диапазона каждого бара
func (e *Engine) computeATR(highs, lows, closes []float64) float64 {
	trueRanges := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trueRanges[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	return last(talib.Sma(trueRanges, 14))
}

// computeMomentum считает разницу цены закрытия за period баров
func computeMomentum(closes []float64, period int) float64 {
	n := len(closes)
	return closes[n-1] - closes[n-1-period]
}

// computeVWAP считает объемно-взвешенную среднюю цену за все окно.
// При нулевом суммарном объеме или нечисловом результате возвращает nil:
// подменять отсутствующий VWAP нулем нельзя.
func computeVWAP(candles []models.Candle) *float64 {
	var cumPV, cumVolume float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * c.Volume
		cumVolume += c.Volume
	}

	if cumVolume == 0 || math.IsNaN(cumVolume) {
		return nil
	}

	vwap := cumPV / cumVolume
	if math.IsNaN(vwap) || math.IsInf(vwap, 0) {
		return nil
	}

	return &vwap
}

// computeImbalance считает дисбаланс стакана (Σбиды − Σаски) / (Σбиды + Σаски).
// При отсутствии стакана, пустой стороне или нулевом суммарном объеме
// возвращает ровно 0.0 — нейтральный вклад в аддитивный скоринг.
func computeImbalance(book *models.OrderBook) float64 {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0.0
	}

	var bidVolume, askVolume float64
	for _, b := range book.Bids {
		bidVolume += b.Quantity
	}
	for _, a := range book.Asks {
		askVolume += a.Quantity
	}

	total := bidVolume + askVolume
	if total == 0 {
		return 0.0
	}

	return (bidVolume - askVolume) / total
}

// emaSeries считает экспоненциальную скользящую среднюю рекуррентно,
// с затравкой первым значением ряда
func emaSeries(values []float64, span int) []float64 {
	result := make([]float64, len(values))
	if len(values) == 0 {
		return result
	}

	alpha := 2.0 / (float64(span) + 1.0)
	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = alpha*values[i] + (1-alpha)*result[i-1]
	}

	return result
}

// lastEMA возвращает последнее значение EMA
func lastEMA(values []float64, span int) float64 {
	return last(emaSeries(values, span))
}

// last возвращает последний элемент ряда
func last(values []float64) float64 {
	return values[len(values)-1]
}
