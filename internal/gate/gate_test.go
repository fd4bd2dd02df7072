package gate

import (
	"testing"
	"time"

	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/models"
)

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		Swing: config.ModeConfig{PumpThreshold: 0.70, DumpThreshold: 0.70},
		Day:   config.ModeConfig{PumpThreshold: 0.75, DumpThreshold: 0.75},

		SuppressWindowSeconds: 1800,
	}
}

func record(t models.SignalType, probability float64) models.SignalRecord {
	return models.SignalRecord{
		Type:        t,
		Probability: probability,
		Confidence:  models.ConfidenceMedium,
		Timestamp:   time.Now(),
	}
}

func TestShouldDispatch_Thresholds(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  models.SignalRecord
		mode models.Mode
		want bool
	}{
		{"NEUTRAL никогда не отправляется", record(models.SignalNeutral, 0.99), models.ModeSwing, false},
		{"PUMP ровно на пороге", record(models.SignalPump, 0.70), models.ModeSwing, true},
		{"PUMP чуть ниже порога", record(models.SignalPump, 0.699), models.ModeSwing, false},
		{"DUMP выше порога", record(models.SignalDump, 0.80), models.ModeSwing, true},
		{"day требует 0.75", record(models.SignalPump, 0.70), models.ModeDay, false},
		{"day ровно на пороге", record(models.SignalPump, 0.75), models.ModeDay, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(testAnalysisConfig())
			if got := g.ShouldDispatch(tt.rec, tt.mode, now); got != tt.want {
				t.Errorf("ShouldDispatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldDispatch_RecencySuppression(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := record(models.SignalPump, 0.80)

	t.Run("повтор внутри окна подавляется", func(t *testing.T) {
		g := New(testAnalysisConfig())

		if !g.ShouldDispatch(rec, models.ModeSwing, now) {
			t.Fatal("первый сигнал должен пройти")
		}
		g.MarkDispatched(rec, 50000, now)

		if g.ShouldDispatch(rec, models.ModeSwing, now.Add(1799*time.Second)) {
			t.Error("повтор через 1799s должен быть подавлен")
		}
	})

	t.Run("повтор после окна проходит", func(t *testing.T) {
		g := New(testAnalysisConfig())
		g.MarkDispatched(rec, 50000, now)

		if !g.ShouldDispatch(rec, models.ModeSwing, now.Add(1800*time.Second)) {
			t.Error("повтор через 1800s должен пройти")
		}
	})

	t.Run("другой тип сигнала не подавляется", func(t *testing.T) {
		g := New(testAnalysisConfig())
		g.MarkDispatched(rec, 50000, now)

		dump := record(models.SignalDump, 0.80)
		if !g.ShouldDispatch(dump, models.ModeSwing, now.Add(time.Minute)) {
			t.Error("DUMP после PUMP не должен подавляться")
		}
	})

	t.Run("подавленный сигнал не сдвигает окно", func(t *testing.T) {
		g := New(testAnalysisConfig())
		g.MarkDispatched(rec, 50000, now)

		// Подавленная попытка в середине окна
		g.ShouldDispatch(rec, models.ModeSwing, now.Add(900*time.Second))

		// Окно отсчитывается от отправки, а не от попытки
		if !g.ShouldDispatch(rec, models.ModeSwing, now.Add(1800*time.Second)) {
			t.Error("окно должно отсчитываться от последней отправки")
		}
	})
}
