package collector

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/skalibog/bpdb/internal/sentiment"
)

// stubFetcher возвращает заданный ответ или ошибку
type stubFetcher struct {
	idx   *sentiment.Index
	err   error
	calls int
}

func (s *stubFetcher) Fetch(_ context.Context) (*sentiment.Index, error) {
	s.calls++
	return s.idx, s.err
}

func TestOpenInterestChange(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		values  []float64
		offsets []time.Duration // смещения назад от now
		minutes int
		want    float64
	}{
		{
			name:    "меньше двух точек",
			values:  []float64{100},
			offsets: []time.Duration{0},
			minutes: 5,
			want:    0.0,
		},
		{
			name:    "ближайшая точка за 5 минут",
			values:  []float64{100, 100, 110},
			offsets: []time.Duration{10 * time.Minute, 5 * time.Minute, 0},
			minutes: 5,
			want:    10.0,
		},
		{
			name:    "равные расстояния выбирают раннюю точку",
			values:  []float64{100, 200},
			offsets: []time.Duration{10 * time.Minute, 0},
			minutes: 5,
			want:    100.0,
		},
		{
			name:    "нулевое опорное значение",
			values:  []float64{0, 110},
			offsets: []time.Duration{5 * time.Minute, 0},
			minutes: 5,
			want:    0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewFeatureCache(nil, time.Minute)
			for i, v := range tt.values {
				cache.RecordOpenInterest(v, now.Add(-tt.offsets[i]))
			}

			got := cache.OpenInterestChange(tt.minutes, now)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("OpenInterestChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordOpenInterest_EvictsOldest(t *testing.T) {
	cache := NewFeatureCache(nil, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < oiCapacity+10; i++ {
		cache.RecordOpenInterest(float64(i), now.Add(time.Duration(i)*time.Minute))
	}

	if cache.OpenInterestLen() != oiCapacity {
		t.Errorf("OpenInterestLen() = %d, want %d", cache.OpenInterestLen(), oiCapacity)
	}
}

func TestSentiment_CacheAndFallback(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("нет данных и источник недоступен", func(t *testing.T) {
		fetcher := &stubFetcher{err: fmt.Errorf("недоступен")}
		cache := NewFeatureCache(fetcher, 5*time.Minute)

		if got := cache.Sentiment(ctx, now); got != neutralSentiment {
			t.Errorf("Sentiment() = %d, want нейтральные %d", got, neutralSentiment)
		}
	})

	t.Run("значение кэшируется на время TTL", func(t *testing.T) {
		fetcher := &stubFetcher{idx: &sentiment.Index{Value: 72, Classification: "Greed"}}
		cache := NewFeatureCache(fetcher, 5*time.Minute)

		if got := cache.Sentiment(ctx, now); got != 72 {
			t.Fatalf("Sentiment() = %d, want 72", got)
		}
		// Внутри TTL источник не опрашивается
		cache.Sentiment(ctx, now.Add(4*time.Minute))
		if fetcher.calls != 1 {
			t.Errorf("calls = %d, want 1", fetcher.calls)
		}
		// После TTL выполняется обновление
		cache.Sentiment(ctx, now.Add(6*time.Minute))
		if fetcher.calls != 2 {
			t.Errorf("calls = %d, want 2", fetcher.calls)
		}
	})

	t.Run("при отказе возвращается последнее известное", func(t *testing.T) {
		fetcher := &stubFetcher{idx: &sentiment.Index{Value: 30, Classification: "Fear"}}
		cache := NewFeatureCache(fetcher, 5*time.Minute)

		cache.Sentiment(ctx, now)
		fetcher.idx = nil
		fetcher.err = fmt.Errorf("недоступен")

		if got := cache.Sentiment(ctx, now.Add(10*time.Minute)); got != 30 {
			t.Errorf("Sentiment() = %d, want последнее известное 30", got)
		}
	})
}
