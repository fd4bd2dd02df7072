package scorer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

// Число классов модели: DUMP, NEUTRAL, PUMP
const numClasses = 3

// Порог вероятности, ниже которого победивший класс понижается до NEUTRAL
const minTopProbability = 0.5

// Штрафные множители внутридневного режима, применяются последовательно
const (
	dampenValidity   = 0.8
	dampenSpread     = 0.9
	dampenVolume     = 0.9
	dampenVolatility = 0.9
)

// modelArtifact обученная модель логистической регрессии:
// нормализация признаков и softmax-классификация на три класса
type modelArtifact struct {
	FeatureMeans []float64   `json:"feature_means"`
	FeatureStds  []float64   `json:"feature_stds"`
	Weights      [][]float64 `json:"weights"`    // numClasses x len(features)
	Intercepts   []float64   `json:"intercepts"` // numClasses
}

// MLScorer скорер на обученной модели с прозрачным фолбэком на rule-based
type MLScorer struct {
	model    *modelArtifact
	cfg      config.AnalysisConfig
	fallback *RuleScorer
}

// NewMLScorer загружает артефакт модели и проверяет согласованность размерностей
func NewMLScorer(path string, cfg config.AnalysisConfig, fallback *RuleScorer) (*MLScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения артефакта модели: %w", err)
	}

	var model modelArtifact
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("ошибка разбора артефакта модели: %w", err)
	}

	n := len(model.FeatureMeans)
	if n == 0 {
		return nil, fmt.Errorf("артефакт модели без признаков")
	}
	if len(model.FeatureStds) != n {
		return nil, fmt.Errorf("размерность feature_stds не совпадает: %d != %d", len(model.FeatureStds), n)
	}
	if len(model.Weights) != numClasses || len(model.Intercepts) != numClasses {
		return nil, fmt.Errorf("модель должна иметь %d класса", numClasses)
	}
	for i, w := range model.Weights {
		if len(w) != n {
			return nil, fmt.Errorf("размерность весов класса %d не совпадает: %d != %d", i, len(w), n)
		}
	}

	return &MLScorer{
		model:    &model,
		cfg:      cfg,
		fallback: fallback,
	}, nil
}

// Score выполняет ML-инференс. Любая ошибка переключает на rule-based
// скорер для этого цикла.
func (s *MLScorer) Score(ind *models.Indicators, snap *models.Snapshot, mode models.Mode) models.SignalRecord {
	rec, err := s.predict(ind, snap, mode)
	if err != nil {
		logger.Warn("Ошибка ML-инференса, используется rule-based скоринг", zap.Error(err))
		return s.fallback.Score(ind, snap, mode)
	}
	return rec
}

func (s *MLScorer) predict(ind *models.Indicators, snap *models.Snapshot, mode models.Mode) (models.SignalRecord, error) {
	features := featureVector(ind, snap, mode)
	if len(features) != len(s.model.FeatureMeans) {
		return models.SignalRecord{}, fmt.Errorf("вектор признаков не совпадает с моделью: %d != %d",
			len(features), len(s.model.FeatureMeans))
	}

	// Нормализация
	scaled := make([]float64, len(features))
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return models.SignalRecord{}, fmt.Errorf("нечисловой признак в позиции %d", i)
		}
		std := s.model.FeatureStds[i]
		if std == 0 {
			std = 1
		}
		scaled[i] = (f - s.model.FeatureMeans[i]) / std
	}

	probs := s.softmax(scaled)

	// Победивший класс: 0=DUMP, 1=NEUTRAL, 2=PUMP
	winner := 0
	for i := 1; i < numClasses; i++ {
		if probs[i] > probs[winner] {
			winner = i
		}
	}
	topProb := probs[winner]

	signalType := []models.SignalType{models.SignalDump, models.SignalNeutral, models.SignalPump}[winner]

	// Внутридневные штрафы понижают уверенность направленного сигнала
	if mode == models.ModeDay && ind.Day != nil && signalType != models.SignalNeutral {
		topProb = s.dampen(topProb, ind.Day)
	}

	if topProb < minTopProbability {
		signalType = models.SignalNeutral
	}

	logger.Info("ML-скоринг завершен",
		zap.String("signal", string(signalType)),
		zap.Float64("probability", topProb))

	return models.SignalRecord{
		Type:        signalType,
		Probability: topProb,
		Confidence:  confidenceTier(topProb),
		Reasons:     []string{"Прогноз ML-модели"},
		Timestamp:   snap.Timestamp,
	}, nil
}

// dampen последовательно применяет штрафы за невыполненные внутридневные
// условия. Порядок множителей фиксирован, перенормализация не выполняется.
func (s *MLScorer) dampen(prob float64, day *models.DayIndicators) float64 {
	if !day.Valid {
		prob *= dampenValidity
	}
	if day.SpreadPercent > s.cfg.DayTrade.MaxSpreadPercent {
		prob *= dampenSpread
	}
	if day.VolumeSurge < s.cfg.DayTrade.VolumeSurgeThreshold {
		prob *= dampenVolume
	}
	if !day.Volatile {
		prob *= dampenVolatility
	}
	return prob
}

// softmax считает вероятности классов по линейным логитам
func (s *MLScorer) softmax(features []float64) [numClasses]float64 {
	var logits [numClasses]float64
	maxLogit := math.Inf(-1)
	for c := 0; c < numClasses; c++ {
		sum := s.model.Intercepts[c]
		for i, f := range features {
			sum += s.model.Weights[c][i] * f
		}
		logits[c] = sum
		if sum > maxLogit {
			maxLogit = sum
		}
	}

	var probs [numClasses]float64
	var total float64
	for c := 0; c < numClasses; c++ {
		probs[c] = math.Exp(logits[c] - maxLogit)
		total += probs[c]
	}
	for c := 0; c < numClasses; c++ {
		probs[c] /= total
	}
	return probs
}

// featureVector строит вектор признаков в фиксированном порядке.
// В внутридневном режиме базовый набор расширяется признаками дневного блока.
func featureVector(ind *models.Indicators, snap *models.Snapshot, mode models.Mode) []float64 {
	ema200 := ind.EMA50
	if ind.EMA200 != nil {
		ema200 = *ind.EMA200
	}

	vwap := 0.0
	if ind.VWAP != nil {
		vwap = *ind.VWAP
	}

	features := []float64{
		ind.RSI,
		ind.MACD,
		ind.MACDSignal,
		ind.MACDHist,
		crossoverValue(ind.MACDCrossover),
		ind.BBUpper,
		ind.BBLower,
		bandValue(ind.BBPosition),
		ind.EMA50,
		ema200,
		ind.VolumeRatio,
		boolValue(ind.HighVolume),
		ind.Momentum,
		ind.ATR,
		vwap,
		snap.PriceChange1h,
		snap.PriceChange4h,
		float64(snap.FearGreed),
	}

	if mode == models.ModeDay && ind.Day != nil {
		features = append(features,
			ind.Day.EMAFast,
			ind.Day.EMASlow,
			trendValue(ind.Day.Trend),
			ind.Day.TrendStrength,
			boolValue(ind.Day.Volatile),
			ind.Day.VolumeSurge,
			ind.Day.Momentum5,
			ind.Day.SpreadPercent,
		)
	}

	return features
}

func crossoverValue(c models.Crossover) float64 {
	switch c {
	case models.CrossoverBullish:
		return 1
	case models.CrossoverBearish:
		return -1
	default:
		return 0
	}
}

func bandValue(p models.BandPosition) float64 {
	switch p {
	case models.BandAboveUpper:
		return 1
	case models.BandBelowLower:
		return -1
	default:
		return 0
	}
}

func trendValue(t models.Trend) float64 {
	switch t {
	case models.TrendUp:
		return 1
	case models.TrendDown:
		return -1
	default:
		return 0
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
