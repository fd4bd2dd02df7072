package scorer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/models"
)

// writeArtifact сохраняет артефакт модели во временный файл
func writeArtifact(t *testing.T, m modelArtifact) string {
	t.Helper()

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("сериализация артефакта: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("запись артефакта: %v", err)
	}
	return path
}

// swingArtifact модель на 18 признаков с фиксированным фаворитом:
// нулевые веса, перекос только в интерсептах
func swingArtifact(intercepts []float64) modelArtifact {
	const n = 18
	weights := make([][]float64, numClasses)
	for i := range weights {
		weights[i] = make([]float64, n)
	}
	return modelArtifact{
		FeatureMeans: make([]float64, n),
		FeatureStds:  ones(n),
		Weights:      weights,
		Intercepts:   intercepts,
	}
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func swingInput() (*models.Indicators, *models.Snapshot) {
	ind := &models.Indicators{
		RSI:           55,
		MACDCrossover: models.CrossoverNone,
		BBPosition:    models.BandInside,
		VolumeRatio:   1.0,
		ATR:           500,
	}
	snap := &models.Snapshot{
		CurrentPrice: 50000,
		FearGreed:    50,
		Timestamp:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	return ind, snap
}

func TestNewMLScorer_ValidatesArtifact(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*modelArtifact)
		wantErr bool
	}{
		{"валидный артефакт", func(*modelArtifact) {}, false},
		{"пустые признаки", func(m *modelArtifact) { m.FeatureMeans = nil }, true},
		{"не совпадают stds", func(m *modelArtifact) { m.FeatureStds = m.FeatureStds[:5] }, true},
		{"не три класса", func(m *modelArtifact) { m.Weights = m.Weights[:2] }, true},
		{"не совпадают веса", func(m *modelArtifact) { m.Weights[1] = m.Weights[1][:3] }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := swingArtifact([]float64{0, 0, 0})
			tt.mutate(&m)
			path := writeArtifact(t, m)

			_, err := NewMLScorer(path, config.AnalysisConfig{}, NewRuleScorer(config.AnalysisConfig{}))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMLScorer() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMLScorer_MissingFile(t *testing.T) {
	_, err := NewMLScorer(filepath.Join(t.TempDir(), "нет.json"), config.AnalysisConfig{}, nil)
	if err == nil {
		t.Error("ожидалась ошибка на отсутствующем файле")
	}
}

func TestMLScorer_PredictsFavoredClass(t *testing.T) {
	// Сильный перекос интерсепта в пользу PUMP
	path := writeArtifact(t, swingArtifact([]float64{0, 0, 5}))

	ml, err := NewMLScorer(path, testAnalysisConfig(), NewRuleScorer(testAnalysisConfig()))
	if err != nil {
		t.Fatalf("NewMLScorer(): %v", err)
	}

	ind, snap := swingInput()
	rec := ml.Score(ind, snap, models.ModeSwing)

	if rec.Type != models.SignalPump {
		t.Errorf("Type = %v, want PUMP", rec.Type)
	}
	if rec.Probability < 0.9 {
		t.Errorf("Probability = %v, want > 0.9 при перекосе 5", rec.Probability)
	}
}

func TestMLScorer_FeatureMismatchFallsBack(t *testing.T) {
	// Модель обучена на 18 признаках, внутридневной режим дает 26:
	// инференс обязан тихо уступить rule-based скореру
	path := writeArtifact(t, swingArtifact([]float64{0, 0, 5}))

	rule := NewRuleScorer(testAnalysisConfig())
	ml, err := NewMLScorer(path, testAnalysisConfig(), rule)
	if err != nil {
		t.Fatalf("NewMLScorer(): %v", err)
	}

	ind, snap := swingInput()
	ind.Day = &models.DayIndicators{Valid: true}

	got := ml.Score(ind, snap, models.ModeDay)
	want := rule.Score(ind, snap, models.ModeDay)

	if got.Type != want.Type || got.Probability != want.Probability {
		t.Errorf("фолбэк дал %+v, rule-based дает %+v", got, want)
	}
}

func TestMLScorer_DayDampeningDemotesToNeutral(t *testing.T) {
	// 26 признаков для внутридневного режима, перевес PUMP ~0.787
	const n = 26
	weights := make([][]float64, numClasses)
	for i := range weights {
		weights[i] = make([]float64, n)
	}
	m := modelArtifact{
		FeatureMeans: make([]float64, n),
		FeatureStds:  ones(n),
		Weights:      weights,
		Intercepts:   []float64{0, 0, 2},
	}
	path := writeArtifact(t, m)

	cfg := testAnalysisConfig()
	cfg.DayTrade.MaxSpreadPercent = 0.05
	cfg.DayTrade.VolumeSurgeThreshold = 1.5

	ml, err := NewMLScorer(path, cfg, NewRuleScorer(cfg))
	if err != nil {
		t.Fatalf("NewMLScorer(): %v", err)
	}

	ind, snap := swingInput()
	// Все четыре внутридневных условия провалены:
	// 0.787 × 0.8 × 0.9 × 0.9 × 0.9 ≈ 0.459 < 0.5
	ind.Day = &models.DayIndicators{
		Valid:         false,
		SpreadPercent: 0.2,
		VolumeSurge:   0.5,
		Volatile:      false,
	}

	rec := ml.Score(ind, snap, models.ModeDay)
	if rec.Type != models.SignalNeutral {
		t.Errorf("Type = %v, want NEUTRAL после штрафов", rec.Type)
	}
	if rec.Probability >= 0.5 {
		t.Errorf("Probability = %v, want < 0.5", rec.Probability)
	}
}
