package collector

import (
	"context"
	"math"
	"time"

	"github.com/skalibog/bpdb/internal/sentiment"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

const (
	// Емкость кольцевого буфера открытого интереса
	oiCapacity = 60

	// Нейтральное значение индекса при полном отсутствии данных
	neutralSentiment = 50
)

// SentimentFetcher источник значения индекса настроений
type SentimentFetcher interface {
	Fetch(ctx context.Context) (*sentiment.Index, error)
}

// FeatureCache хранит короткоживущие рыночные данные, переживающие циклы опроса:
// единственный слот индекса настроений с TTL и кольцевой буфер открытого интереса.
// Мутируется только внутри одного цикла опроса, блокировки не требуются.
type FeatureCache struct {
	fetcher SentimentFetcher
	ttl     time.Duration

	sentimentValue int
	sentimentTS    time.Time
	hasSentiment   bool

	oi []models.OpenInterestPoint
}

// NewFeatureCache создает новый кэш рыночных данных
func NewFeatureCache(fetcher SentimentFetcher, ttl time.Duration) *FeatureCache {
	return &FeatureCache{
		fetcher: fetcher,
		ttl:     ttl,
		oi:      make([]models.OpenInterestPoint, 0, oiCapacity),
	}
}

// Sentiment возвращает значение индекса Fear & Greed [0,100].
// Кэшированное значение живет ttl; по истечении выполняется обновление,
// при неудаче возвращается последнее известное значение либо нейтральные 50.
func (c *FeatureCache) Sentiment(ctx context.Context, now time.Time) int {
	if c.hasSentiment && now.Sub(c.sentimentTS) < c.ttl {
		return c.sentimentValue
	}

	idx, err := c.fetcher.Fetch(ctx)
	if err != nil {
		logger.Warn("Не удалось обновить индекс Fear & Greed", zap.Error(err))
		if c.hasSentiment {
			return c.sentimentValue
		}
		return neutralSentiment
	}

	logger.Info("Индекс Fear & Greed обновлен",
		zap.Int("value", idx.Value),
		zap.String("classification", idx.Classification))

	c.sentimentValue = idx.Value
	c.sentimentTS = now
	c.hasSentiment = true
	return idx.Value
}

// RecordOpenInterest добавляет точку в кольцевой буфер, вытесняя самые старые
// записи сверх емкости. Временные метки монотонно возрастают.
func (c *FeatureCache) RecordOpenInterest(value float64, now time.Time) {
	c.oi = append(c.oi, models.OpenInterestPoint{Value: value, Timestamp: now})
	if len(c.oi) > oiCapacity {
		c.oi = c.oi[len(c.oi)-oiCapacity:]
	}
}

// OpenInterestChange возвращает процентное изменение открытого интереса
// относительно точки, ближайшей по времени к now-minutes. При менее чем двух
// точках или нулевом опорном значении возвращает 0. При равных расстояниях
// выбирается более ранняя точка.
func (c *FeatureCache) OpenInterestChange(minutes int, now time.Time) float64 {
	if len(c.oi) < 2 {
		return 0.0
	}

	target := now.Add(-time.Duration(minutes) * time.Minute)

	best := 0
	bestDist := math.MaxFloat64
	for i, p := range c.oi {
		dist := math.Abs(p.Timestamp.Sub(target).Seconds())
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	ref := c.oi[best].Value
	if ref == 0 {
		return 0.0
	}

	latest := c.oi[len(c.oi)-1].Value
	return (latest - ref) / ref * 100
}

// OpenInterestLen возвращает число накопленных точек
func (c *FeatureCache) OpenInterestLen() int {
	return len(c.oi)
}
