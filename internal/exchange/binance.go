package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/models"
)

// BinanceClient клиент для взаимодействия с Binance Futures.
// Ключи не обязательны: все используемые эндпоинты публичные.
type BinanceClient struct {
	futures *futures.Client
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	futuresClient := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.Testnet {
		futures.UseTestnet = true
	}

	return &BinanceClient{
		futures: futuresClient,
	}, nil
}

// GetKlines получает исторические свечи, от старых к новым
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	klines, err := c.futures.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]models.Candle, len(klines))
	for i, k := range klines {
		open, err := strconv.ParseFloat(k.Open, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга цены открытия: %w", err)
		}
		high, err := strconv.ParseFloat(k.High, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга максимума: %w", err)
		}
		low, err := strconv.ParseFloat(k.Low, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга минимума: %w", err)
		}
		cls, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга цены закрытия: %w", err)
		}
		volume, err := strconv.ParseFloat(k.Volume, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга объема: %w", err)
		}

		candles[i] = models.Candle{
			OpenTime: time.Unix(k.OpenTime/1000, 0),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    cls,
			Volume:   volume,
		}
	}

	return candles, nil
}

// GetTicker получает последнюю цену и суточный quote-объем
func (c *BinanceClient) GetTicker(ctx context.Context, symbol string) (price, quoteVolume float64, err error) {
	stats, err := c.futures.NewListPriceChangeStatsService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка получения тикера: %w", err)
	}
	if len(stats) == 0 {
		return 0, 0, fmt.Errorf("тикер для %s не найден", symbol)
	}

	price, err = strconv.ParseFloat(stats[0].LastPrice, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка парсинга последней цены: %w", err)
	}
	quoteVolume, err = strconv.ParseFloat(stats[0].QuoteVolume, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка парсинга объема: %w", err)
	}

	return price, quoteVolume, nil
}

// Get24hStats получает статистику за 24 часа
func (c *BinanceClient) Get24hStats(ctx context.Context, symbol string) (*models.Stats24h, error) {
	stats, err := c.futures.NewListPriceChangeStatsService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения суточной статистики: %w", err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("суточная статистика для %s не найдена", symbol)
	}

	change, err := strconv.ParseFloat(stats[0].PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга изменения цены: %w", err)
	}
	high, err := strconv.ParseFloat(stats[0].HighPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга максимума: %w", err)
	}
	low, err := strconv.ParseFloat(stats[0].LowPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга минимума: %w", err)
	}
	volume, err := strconv.ParseFloat(stats[0].QuoteVolume, 64)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга объема: %w", err)
	}

	return &models.Stats24h{
		ChangePercent: change,
		High:          high,
		Low:           low,
		Volume:        volume,
	}, nil
}

// GetOrderBook получает стакан заявок: биды по убыванию, аски по возрастанию цены
func (c *BinanceClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	ob, err := c.futures.NewDepthService().
		Symbol(symbol).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стакана: %w", err)
	}

	orderBook := &models.OrderBook{
		Timestamp: time.Now(),
		Bids:      make([]models.OrderBookLevel, len(ob.Bids)),
		Asks:      make([]models.OrderBookLevel, len(ob.Asks)),
	}

	for i, bid := range ob.Bids {
		price, err := strconv.ParseFloat(bid.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга цены бида: %w", err)
		}
		qty, err := strconv.ParseFloat(bid.Quantity, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга объема бида: %w", err)
		}
		orderBook.Bids[i] = models.OrderBookLevel{Price: price, Quantity: qty}
	}

	for i, ask := range ob.Asks {
		price, err := strconv.ParseFloat(ask.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга цены аска: %w", err)
		}
		qty, err := strconv.ParseFloat(ask.Quantity, 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга объема аска: %w", err)
		}
		orderBook.Asks[i] = models.OrderBookLevel{Price: price, Quantity: qty}
	}

	return orderBook, nil
}

// GetOpenInterest получает текущее значение открытого интереса
func (c *BinanceClient) GetOpenInterest(ctx context.Context, symbol string) (float64, error) {
	oi, err := c.futures.NewGetOpenInterestService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения открытого интереса: %w", err)
	}

	value, err := strconv.ParseFloat(oi.OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("ошибка парсинга открытого интереса: %w", err)
	}

	return value, nil
}
