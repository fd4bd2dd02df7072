package scorer

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/models"
)

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		OBImbalanceThreshold: 0.3,
		VolumeSpikeRatio:     2.0,
		ATRLowRatio:          0.001,
	}
}

func TestClassify(t *testing.T) {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		score           int
		wantType        models.SignalType
		wantProbability float64
		wantConfidence  models.Confidence
	}{
		{"score 4 — нижняя граница PUMP", 4, models.SignalPump, 0.65, models.ConfidenceMedium},
		{"score 5", 5, models.SignalPump, 0.70, models.ConfidenceMedium},
		{"score 7 — HIGH", 7, models.SignalPump, 0.80, models.ConfidenceHigh},
		{"score 12 — потолок вероятности", 12, models.SignalPump, 0.90, models.ConfidenceHigh},
		{"score -4 — нижняя граница DUMP", -4, models.SignalDump, 0.65, models.ConfidenceMedium},
		{"score -6", -6, models.SignalDump, 0.75, models.ConfidenceHigh},
		{"score 0", 0, models.SignalNeutral, 0.50, models.ConfidenceLow},
		{"score 2 — нейтральный", 2, models.SignalNeutral, 0.60, models.ConfidenceMedium},
		{"score -3 — нейтральный", -3, models.SignalNeutral, 0.65, models.ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := classify(tt.score, nil, ts)

			if rec.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", rec.Type, tt.wantType)
			}
			if math.Abs(rec.Probability-tt.wantProbability) > 1e-9 {
				t.Errorf("Probability = %v, want %v", rec.Probability, tt.wantProbability)
			}
			if rec.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", rec.Confidence, tt.wantConfidence)
			}
		})
	}
}

// bullishSetup собирает индикаторы с суммарным баллом +7:
// перепроданный RSI (+2), бычий кроссовер (+2), цена ниже нижней полосы (+2),
// положительный моментум (+1)
func bullishSetup(atr float64) (*models.Indicators, *models.Snapshot) {
	ind := &models.Indicators{
		RSI:           25,
		MACDCrossover: models.CrossoverBullish,
		BBPosition:    models.BandBelowLower,
		VolumeRatio:   1.0,
		Momentum:      10,
		ATR:           atr,
	}
	snap := &models.Snapshot{
		CurrentPrice: 50000,
		FearGreed:    50,
		Timestamp:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	return ind, snap
}

func TestRuleScorer_BullishSetupGivesPump(t *testing.T) {
	s := NewRuleScorer(testAnalysisConfig())
	ind, snap := bullishSetup(500)

	rec := s.Score(ind, snap, models.ModeSwing)

	if rec.Type != models.SignalPump {
		t.Errorf("Type = %v, want PUMP", rec.Type)
	}
	if math.Abs(rec.Probability-0.80) > 1e-9 {
		t.Errorf("Probability = %v, want 0.80", rec.Probability)
	}
	if rec.Confidence != models.ConfidenceHigh {
		t.Errorf("Confidence = %v, want HIGH", rec.Confidence)
	}
	if len(rec.Reasons) == 0 {
		t.Error("Reasons пуст")
	}
}

func TestRuleScorer_LowATRClampsToNeutral(t *testing.T) {
	s := NewRuleScorer(testAnalysisConfig())

	// Тот же набор правил, но ATR ниже 0.001 от цены: балл срезается до 1
	ind, snap := bullishSetup(10)

	rec := s.Score(ind, snap, models.ModeSwing)

	if rec.Type != models.SignalNeutral {
		t.Errorf("Type = %v, want NEUTRAL после среза по ATR", rec.Type)
	}
	if math.Abs(rec.Probability-0.55) > 1e-9 {
		t.Errorf("Probability = %v, want 0.55", rec.Probability)
	}

	clamped := false
	for _, r := range rec.Reasons {
		if r == "Низкая волатильность (ATR) — ограничение силы сигнала" {
			clamped = true
		}
	}
	if !clamped {
		t.Error("причина среза по ATR отсутствует")
	}
}

func TestRuleScorer_NilVWAPSkipped(t *testing.T) {
	s := NewRuleScorer(testAnalysisConfig())

	vwap := 49000.0
	base := &models.Indicators{RSI: 50, VolumeRatio: 1.0, ATR: 500}
	snap := &models.Snapshot{CurrentPrice: 50000, FearGreed: 50, Timestamp: time.Now()}

	withVWAP := *base
	withVWAP.VWAP = &vwap

	recNil := s.Score(base, snap, models.ModeSwing)
	recVWAP := s.Score(&withVWAP, snap, models.ModeSwing)

	// Цена выше VWAP дает +1, без VWAP правило должно молчать
	if recNil.Probability >= recVWAP.Probability {
		t.Errorf("nil VWAP дал вероятность %v >= %v c VWAP", recNil.Probability, recVWAP.Probability)
	}
}
