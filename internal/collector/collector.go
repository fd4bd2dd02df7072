// Package collector собирает единый срез рыночных данных за цикл анализа.
//
// Отказ первичных источников (свечи, тикер) фатален для цикла; вспомогательные
// источники (статистика 24h, стакан, открытый интерес, индекс настроений)
// деградируют до последних известных значений или значений по умолчанию.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

// MarketClient источник рыночных данных биржи
type MarketClient interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	GetTicker(ctx context.Context, symbol string) (price, quoteVolume float64, err error)
	Get24hStats(ctx context.Context, symbol string) (*models.Stats24h, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error)
	GetOpenInterest(ctx context.Context, symbol string) (float64, error)
}

// Collector собирает снимок рынка за один цикл
type Collector struct {
	client MarketClient
	cache  *FeatureCache
	symbol string
	depth  int

	// Последний успешно рассчитанный результат открытого интереса,
	// используется при недоступности источника
	lastOIDeltas models.OpenInterestDeltas
}

// New создает новый сборщик данных
func New(client MarketClient, cache *FeatureCache, symbol string, depth int) *Collector {
	return &Collector{
		client: client,
		cache:  cache,
		symbol: symbol,
		depth:  depth,
	}
}

// Collect собирает полный снимок рынка. Возвращает ошибку только при отказе
// первичных источников: без свечей и текущей цены анализ невозможен.
func (c *Collector) Collect(ctx context.Context, timeframe string, limit int) (*models.Snapshot, error) {
	now := time.Now()

	// 1. Свечи — фатально при отказе
	candles, err := c.client.GetKlines(ctx, c.symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}
	logger.Info("Свечи получены", zap.Int("count", len(candles)), zap.String("timeframe", timeframe))

	// 2. Тикер — фатально при отказе
	price, quoteVolume, err := c.client.GetTicker(ctx, c.symbol)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тикера: %w", err)
	}

	// 3. Индекс настроений — никогда не фатален
	fearGreed := c.cache.Sentiment(ctx, now)

	// 4. Статистика 24h — деградация при отказе
	stats24h, err := c.client.Get24hStats(ctx, c.symbol)
	if err != nil {
		logger.Warn("Суточная статистика недоступна", zap.Error(err))
		stats24h = nil
	}

	// 5. Стакан — деградация при отказе
	orderBook, err := c.client.GetOrderBook(ctx, c.symbol, c.depth)
	if err != nil {
		logger.Warn("Стакан заявок недоступен", zap.Error(err))
		orderBook = nil
	}

	// 6. Открытый интерес — деградация до последнего результата
	oiDeltas := c.collectOpenInterest(ctx, now)

	// 7. Изменения цены по истории свечей
	tfMinutes := timeframeMinutes(timeframe)
	priceChange1h := priceChange(candles, 60/tfMinutes)
	priceChange4h := priceChange(candles, 240/tfMinutes)

	return &models.Snapshot{
		Candles:       candles,
		CurrentPrice:  price,
		CurrentVolume: quoteVolume,
		Timestamp:     now,
		FearGreed:     fearGreed,
		PriceChange1h: priceChange1h,
		PriceChange4h: priceChange4h,
		Stats24h:      stats24h,
		OrderBook:     orderBook,
		OpenInterest:  oiDeltas,
	}, nil
}

// collectOpenInterest запрашивает текущий открытый интерес, пишет его в
// кольцевой буфер и считает изменения за 5m/1h/4h. При отказе источника
// возвращает последний рассчитанный результат.
func (c *Collector) collectOpenInterest(ctx context.Context, now time.Time) models.OpenInterestDeltas {
	value, err := c.client.GetOpenInterest(ctx, c.symbol)
	if err != nil {
		logger.Warn("Открытый интерес недоступен, используем последний результат", zap.Error(err))
		return c.lastOIDeltas
	}

	c.cache.RecordOpenInterest(value, now)

	c.lastOIDeltas = models.OpenInterestDeltas{
		Change5m: c.cache.OpenInterestChange(5, now),
		Change1h: c.cache.OpenInterestChange(60, now),
		Change4h: c.cache.OpenInterestChange(240, now),
	}
	return c.lastOIDeltas
}

// priceChange считает процентное изменение цены закрытия за bars баров назад.
// При истории короче окна возвращает 0.
func priceChange(candles []models.Candle, bars int) float64 {
	if bars < 1 {
		bars = 1
	}
	if len(candles) <= bars {
		return 0.0
	}

	current := candles[len(candles)-1].Close
	past := candles[len(candles)-1-bars].Close
	if past == 0 {
		return 0.0
	}

	return (current - past) / past * 100
}

// timeframeMinutes переводит таймфрейм в минуты.
// Неизвестные таймфреймы трактуются как 5-минутные.
func timeframeMinutes(timeframe string) int {
	switch timeframe {
	case "1m":
		return 1
	case "3m":
		return 3
	case "5m":
		return 5
	case "15m":
		return 15
	case "30m":
		return 30
	case "1h":
		return 60
	case "4h":
		return 240
	default:
		return 5
	}
}
