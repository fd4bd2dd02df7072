package scorer

import (
	"math"
	"time"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

// Пороговые значения аддитивного скоринга
const (
	pumpScore          = 4
	dumpScore          = -4
	oiChangeThreshold  = 2.0   // изменение открытого интереса за час, %
	priceMoveThreshold = 2.5   // значимое изменение цены за час, %
	strongMomentum     = 300.0 // сильный моментум в абсолютных ценовых единицах
)

// RuleScorer аддитивный скорер: каждое правило независимо добавляет или
// снимает очки и пишет причину
type RuleScorer struct {
	cfg config.AnalysisConfig
}

// NewRuleScorer создает rule-based скорер
func NewRuleScorer(cfg config.AnalysisConfig) *RuleScorer {
	return &RuleScorer{cfg: cfg}
}

// Score считает суммарный балл по набору правил и классифицирует сигнал
func (s *RuleScorer) Score(ind *models.Indicators, snap *models.Snapshot, _ models.Mode) models.SignalRecord {
	score := 0
	var reasons []string

	// RSI
	switch {
	case ind.RSI > 70:
		score -= 2
		reasons = append(reasons, "RSI перекупленность")
	case ind.RSI < 30:
		score += 2
		reasons = append(reasons, "RSI перепроданность")
	case ind.RSI > 60:
		score--
	case ind.RSI < 40:
		score++
	}

	// MACD кроссовер
	switch ind.MACDCrossover {
	case models.CrossoverBullish:
		score += 2
		reasons = append(reasons, "MACD бычий кроссовер")
	case models.CrossoverBearish:
		score -= 2
		reasons = append(reasons, "MACD медвежий кроссовер")
	}

	// Открытый интерес: сильное изменение за час, подтвержденное ценой
	oi1h := snap.OpenInterest.Change1h
	if math.Abs(oi1h) > oiChangeThreshold {
		if oi1h > 0 && snap.PriceChange1h > 0 {
			score += 3
			reasons = append(reasons, "Рост открытого интереса подтверждает движение вверх")
		} else if oi1h < 0 && snap.PriceChange1h < 0 {
			score -= 3
			reasons = append(reasons, "Падение открытого интереса подтверждает движение вниз")
		}
	}

	// Полосы Боллинджера
	switch ind.BBPosition {
	case models.BandBelowLower:
		score += 2
		reasons = append(reasons, "Цена ниже нижней BB")
	case models.BandAboveUpper:
		score -= 2
		reasons = append(reasons, "Цена выше верхней BB")
	}

	// Высокий объем усиливает уже набранный балл
	if ind.HighVolume {
		if score > 0 {
			score += 2
			reasons = append(reasons, "Высокий объём подтверждает рост")
		} else if score < 0 {
			score -= 2
			reasons = append(reasons, "Высокий объём подтверждает падение")
		}
	}

	// Значимое изменение цены за час
	if snap.PriceChange1h > priceMoveThreshold {
		score += 2
		reasons = append(reasons, "Сильный рост цены за час")
	} else if snap.PriceChange1h < -priceMoveThreshold {
		score -= 2
		reasons = append(reasons, "Сильное падение цены за час")
	}

	// Fear & Greed: контртрендовое правило
	if snap.FearGreed > 75 {
		score--
		reasons = append(reasons, "Extreme Greed - возможна коррекция")
	} else if snap.FearGreed < 25 {
		score++
		reasons = append(reasons, "Extreme Fear - возможен отскок")
	}

	// Моментум
	if math.Abs(ind.Momentum) > strongMomentum {
		if ind.Momentum > 0 {
			score += 2
			reasons = append(reasons, "Сильный положительный моментум")
		} else {
			score -= 2
			reasons = append(reasons, "Сильный отрицательный моментум")
		}
	} else if ind.Momentum > 0 {
		score++
	} else if ind.Momentum < 0 {
		score--
	}

	// Положение цены относительно VWAP; отсутствующий VWAP пропускается
	if ind.VWAP != nil {
		if snap.CurrentPrice > *ind.VWAP {
			score++
			reasons = append(reasons, "Цена выше VWAP")
		} else {
			score--
			reasons = append(reasons, "Цена ниже VWAP")
		}
	}

	// Дисбаланс стакана
	if ind.OrderBookImbalance > s.cfg.OBImbalanceThreshold {
		score++
		reasons = append(reasons, "Дисбаланс стакана в пользу бидов")
	} else if ind.OrderBookImbalance < -s.cfg.OBImbalanceThreshold {
		score--
		reasons = append(reasons, "Дисбаланс стакана в пользу асков")
	}

	// Сильный всплеск объема усиливает набранный балл
	if ind.VolumeRatio > s.cfg.VolumeSpikeRatio {
		if score > 0 {
			score++
			reasons = append(reasons, "Сильный всплеск объёма поддерживает рост")
		} else if score < 0 {
			score--
			reasons = append(reasons, "Сильный всплеск объёма поддерживает падение")
		}
	}

	// Ограничение силы сигнала при низкой волатильности: на плоском рынке
	// большой балл скорее шум, чем движение
	if snap.CurrentPrice > 0 && ind.ATR < s.cfg.ATRLowRatio*snap.CurrentPrice && abs(score) > 1 {
		if score > 0 {
			score = 1
		} else {
			score = -1
		}
		reasons = append(reasons, "Низкая волатильность (ATR) — ограничение силы сигнала")
	}

	rec := classify(score, reasons, snap.Timestamp)

	logger.Info("Rule-based скоринг завершен",
		zap.Int("score", score),
		zap.String("signal", string(rec.Type)),
		zap.Float64("probability", rec.Probability))

	return rec
}

// classify переводит балл в тип сигнала, вероятность и уровень уверенности
func classify(score int, reasons []string, ts time.Time) models.SignalRecord {
	var signalType models.SignalType
	var probability float64

	switch {
	case score >= pumpScore:
		signalType = models.SignalPump
		probability = math.Min(0.65+float64(score-pumpScore)*0.05, 0.90)
	case score <= dumpScore:
		signalType = models.SignalDump
		probability = math.Min(0.65+float64(abs(score)+dumpScore)*0.05, 0.90)
	default:
		signalType = models.SignalNeutral
		probability = 0.50 + float64(abs(score))*0.05
	}

	return models.SignalRecord{
		Type:        signalType,
		Probability: probability,
		Confidence:  confidenceTier(probability),
		Reasons:     reasons,
		Timestamp:   ts,
	}
}

// confidenceTier определяет уровень уверенности по вероятности
func confidenceTier(probability float64) models.Confidence {
	switch {
	case probability >= 0.75:
		return models.ConfidenceHigh
	case probability >= 0.60:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
