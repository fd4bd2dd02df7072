package models

import (
	"time"
)

// SignalType тип торгового сигнала
type SignalType string

const (
	SignalPump    SignalType = "PUMP"
	SignalDump    SignalType = "DUMP"
	SignalNeutral SignalType = "NEUTRAL"
)

// Confidence уровень уверенности сигнала
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Mode режим торговли: свинг или внутридневной
type Mode string

const (
	ModeSwing Mode = "swing"
	ModeDay   Mode = "day"
)

// BandPosition положение цены относительно полос Боллинджера
type BandPosition string

const (
	BandAboveUpper BandPosition = "above_upper"
	BandBelowLower BandPosition = "below_lower"
	BandInside     BandPosition = "inside"
)

// Crossover направление пересечения MACD с сигнальной линией
type Crossover string

const (
	CrossoverBullish Crossover = "bullish"
	CrossoverBearish Crossover = "bearish"
	CrossoverNone    Crossover = "none"
)

// MACross сигнал пересечения скользящих средних
type MACross string

const (
	MACrossBuy  MACross = "buy"
	MACrossSell MACross = "sell"
	MACrossNone MACross = "none"
)

// Trend направление краткосрочного тренда
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Candle представляет свечу OHLCV
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// OrderBookLevel представляет уровень стакана
type OrderBookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook представляет стакан заявок: биды по убыванию, аски по возрастанию цены
type OrderBook struct {
	Timestamp time.Time
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
}

// Stats24h статистика за 24 часа
type Stats24h struct {
	ChangePercent float64
	High          float64
	Low           float64
	Volume        float64
}

// OpenInterestPoint точка истории открытого интереса
type OpenInterestPoint struct {
	Value     float64
	Timestamp time.Time
}

// OpenInterestDeltas процентные изменения открытого интереса за окна времени
type OpenInterestDeltas struct {
	Change5m float64
	Change1h float64
	Change4h float64
}

// Snapshot единый срез рыночных данных за один цикл анализа.
// Stats24h и OrderBook равны nil, если вспомогательный источник недоступен.
type Snapshot struct {
	Candles       []Candle
	CurrentPrice  float64
	CurrentVolume float64
	Timestamp     time.Time
	FearGreed     int
	PriceChange1h float64
	PriceChange4h float64
	Stats24h      *Stats24h
	OrderBook     *OrderBook
	OpenInterest  OpenInterestDeltas
}

// DayIndicators внутридневной блок индикаторов (только для режима day)
type DayIndicators struct {
	EMAFast       float64
	EMASlow       float64
	Trend         Trend
	TrendStrength float64 // относительный разрыв между MA, %
	Volatile      bool
	VolumeSurge   float64 // отношение к среднему объему за 20 баров
	Consolidating bool
	Momentum5     float64 // изменение цены за 5 баров, %
	SpreadPercent float64
	MACross       MACross
	Valid         bool
}

// Indicators фиксированный набор индикаторов одного цикла.
// VWAP равен nil при нулевом суммарном объеме, EMA200 — при истории короче 200 баров.
type Indicators struct {
	RSI                float64
	MACD               float64
	MACDSignal         float64
	MACDHist           float64
	MACDCrossover      Crossover
	BBUpper            float64
	BBMiddle           float64
	BBLower            float64
	BBPosition         BandPosition
	EMA50              float64
	EMA200             *float64
	VolumeRatio        float64
	HighVolume         bool
	Momentum           float64
	ATR                float64
	VWAP               *float64
	OrderBookImbalance float64
	Day                *DayIndicators
}

// SignalRecord результат скоринга одного цикла
type SignalRecord struct {
	Type        SignalType
	Probability float64
	Confidence  Confidence
	Reasons     []string
	Timestamp   time.Time
}
