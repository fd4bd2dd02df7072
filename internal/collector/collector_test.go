package collector

import (
	"testing"
	"time"

	"github.com/skalibog/bpdb/pkg/models"
)

func TestPriceChange(t *testing.T) {
	closes := func(values ...float64) []models.Candle {
		candles := make([]models.Candle, len(values))
		for i, v := range values {
			candles[i] = models.Candle{Close: v, OpenTime: time.Now()}
		}
		return candles
	}

	tests := []struct {
		name    string
		candles []models.Candle
		bars    int
		want    float64
	}{
		{"рост на 10%", closes(100, 105, 110), 2, 10.0},
		{"история короче окна", closes(100, 110), 5, 0.0},
		{"нулевой bars трактуется как один бар", closes(100, 110), 0, 10.0},
		{"нулевая опорная цена", closes(0, 110), 1, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := priceChange(tt.candles, tt.bars); got != tt.want {
				t.Errorf("priceChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeframeMinutes(t *testing.T) {
	tests := []struct {
		timeframe string
		want      int
	}{
		{"1m", 1},
		{"5m", 5},
		{"15m", 15},
		{"1h", 60},
		{"4h", 240},
		{"неизвестный", 5},
	}

	for _, tt := range tests {
		t.Run(tt.timeframe, func(t *testing.T) {
			if got := timeframeMinutes(tt.timeframe); got != tt.want {
				t.Errorf("timeframeMinutes(%q) = %d, want %d", tt.timeframe, got, tt.want)
			}
		})
	}
}
