package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance   BinanceConfig   `yaml:"binance"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Trading   TradingConfig   `yaml:"trading"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	ML        MLConfig        `yaml:"ml"`
	Storage   StorageConfig   `yaml:"storage"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Health    HealthConfig    `yaml:"health"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TelegramConfig содержит настройки Telegram-бота
type TelegramConfig struct {
	BotToken           string `yaml:"bot_token"`
	PollTimeoutSeconds int    `yaml:"poll_timeout_seconds"`
}

// TradingConfig содержит настройки торговой пары и режима
type TradingConfig struct {
	Symbol      string  `yaml:"symbol"`
	Mode        string  `yaml:"mode"` // swing или day
	OrderDepth  int     `yaml:"orderbook_depth"`
	JitterRatio float64 `yaml:"jitter_ratio"` // доля интервала для случайного сдвига
}

// ModeConfig настройки одного режима торговли
type ModeConfig struct {
	Timeframe            string  `yaml:"timeframe"`
	CandleLimit          int     `yaml:"candle_limit"`
	CheckIntervalSeconds int     `yaml:"check_interval_seconds"`
	PumpThreshold        float64 `yaml:"pump_threshold"`
	DumpThreshold        float64 `yaml:"dump_threshold"`
}

// DayTradeConfig настройки внутридневного блока индикаторов
type DayTradeConfig struct {
	MAFast                 int     `yaml:"ma_fast"`
	MASlow                 int     `yaml:"ma_slow"`
	VolatilityThreshold    float64 `yaml:"volatility_threshold"`    // минимальный 5-барный диапазон, %
	VolumeSurgeThreshold   float64 `yaml:"volume_surge_threshold"`  // отношение к среднему объему
	ConsolidationBars      int     `yaml:"consolidation_bars"`
	ConsolidationThreshold float64 `yaml:"consolidation_threshold"` // диапазон консолидации, %
	MaxSpreadPercent       float64 `yaml:"max_spread_percent"`
	TrendStrengthThreshold float64 `yaml:"trend_strength_threshold"` // минимальный разрыв MA, %
}

// AnalysisConfig содержит настройки аналитического конвейера
type AnalysisConfig struct {
	Swing    ModeConfig     `yaml:"swing"`
	Day      ModeConfig     `yaml:"day"`
	DayTrade DayTradeConfig `yaml:"day_trade"`

	RSIPeriod       int `yaml:"rsi_period"`
	MACDFast        int `yaml:"macd_fast"`
	MACDSlow        int `yaml:"macd_slow"`
	MACDSignal      int `yaml:"macd_signal"`
	BollingerPeriod int `yaml:"bollinger_period"`
	VolumeMAPeriod  int `yaml:"volume_ma_period"`

	OBImbalanceThreshold  float64 `yaml:"ob_imbalance_threshold"`
	VolumeSpikeRatio      float64 `yaml:"volume_spike_ratio"`
	ATRLowRatio           float64 `yaml:"atr_low_ratio"` // доля цены, ниже которой ATR считается низким
	SuppressWindowSeconds int     `yaml:"suppress_window_seconds"`
}

// SentimentConfig настройки источника Fear & Greed
type SentimentConfig struct {
	APIURL          string `yaml:"api_url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	Retries         int    `yaml:"retries"`
}

// MLConfig настройки ML-модели
type MLConfig struct {
	ModelPath string `yaml:"model_path"`
}

// StorageConfig настройки хранилищ
type StorageConfig struct {
	PostgresDSN string       `yaml:"postgres_dsn"`
	Influx      InfluxConfig `yaml:"influx"`
}

// InfluxConfig настройки time-series хранилища снимков
type InfluxConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// NotifierConfig настройки рассылки уведомлений
type NotifierConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"` // бюджет одновременных отправок
	BatchSize     int `yaml:"batch_size"`
	BatchPauseMS  int `yaml:"batch_pause_ms"`
	SendRetries   int `yaml:"send_retries"`
	RetryDelayMS  int `yaml:"retry_delay_ms"`
}

// HealthConfig настройки healthcheck-сервера
type HealthConfig struct {
	Port int `yaml:"port"`
}

// Load загружает конфигурацию из YAML-файла и накладывает секреты из окружения.
// Файл .env подхватывается, если существует; его отсутствие не ошибка.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv накладывает секреты из переменных окружения поверх YAML
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		c.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		c.Binance.APISecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.Storage.Influx.Token = v
	}
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) applyDefaults() {
	if c.Trading.Symbol == "" {
		c.Trading.Symbol = "BTCUSDT"
	}
	if c.Trading.Mode == "" {
		c.Trading.Mode = "swing"
	}
	if c.Trading.OrderDepth == 0 {
		c.Trading.OrderDepth = 20
	}
	if c.Trading.JitterRatio == 0 {
		c.Trading.JitterRatio = 0.1
	}

	if c.Analysis.Swing.Timeframe == "" {
		c.Analysis.Swing.Timeframe = "5m"
	}
	if c.Analysis.Swing.CandleLimit == 0 {
		c.Analysis.Swing.CandleLimit = 100
	}
	if c.Analysis.Swing.CheckIntervalSeconds == 0 {
		c.Analysis.Swing.CheckIntervalSeconds = 300
	}
	if c.Analysis.Swing.PumpThreshold == 0 {
		c.Analysis.Swing.PumpThreshold = 0.70
	}
	if c.Analysis.Swing.DumpThreshold == 0 {
		c.Analysis.Swing.DumpThreshold = 0.70
	}

	if c.Analysis.Day.Timeframe == "" {
		c.Analysis.Day.Timeframe = "1m"
	}
	if c.Analysis.Day.CandleLimit == 0 {
		c.Analysis.Day.CandleLimit = 100
	}
	if c.Analysis.Day.CheckIntervalSeconds == 0 {
		c.Analysis.Day.CheckIntervalSeconds = 60
	}
	if c.Analysis.Day.PumpThreshold == 0 {
		c.Analysis.Day.PumpThreshold = 0.75
	}
	if c.Analysis.Day.DumpThreshold == 0 {
		c.Analysis.Day.DumpThreshold = 0.75
	}

	if c.Analysis.DayTrade.MAFast == 0 {
		c.Analysis.DayTrade.MAFast = 5
	}
	if c.Analysis.DayTrade.MASlow == 0 {
		c.Analysis.DayTrade.MASlow = 20
	}
	if c.Analysis.DayTrade.VolatilityThreshold == 0 {
		c.Analysis.DayTrade.VolatilityThreshold = 0.3
	}
	if c.Analysis.DayTrade.VolumeSurgeThreshold == 0 {
		c.Analysis.DayTrade.VolumeSurgeThreshold = 1.5
	}
	if c.Analysis.DayTrade.ConsolidationBars == 0 {
		c.Analysis.DayTrade.ConsolidationBars = 10
	}
	if c.Analysis.DayTrade.ConsolidationThreshold == 0 {
		c.Analysis.DayTrade.ConsolidationThreshold = 0.5
	}
	if c.Analysis.DayTrade.MaxSpreadPercent == 0 {
		c.Analysis.DayTrade.MaxSpreadPercent = 0.05
	}
	if c.Analysis.DayTrade.TrendStrengthThreshold == 0 {
		c.Analysis.DayTrade.TrendStrengthThreshold = 0.1
	}

	if c.Analysis.RSIPeriod == 0 {
		c.Analysis.RSIPeriod = 14
	}
	if c.Analysis.MACDFast == 0 {
		c.Analysis.MACDFast = 12
	}
	if c.Analysis.MACDSlow == 0 {
		c.Analysis.MACDSlow = 26
	}
	if c.Analysis.MACDSignal == 0 {
		c.Analysis.MACDSignal = 9
	}
	if c.Analysis.BollingerPeriod == 0 {
		c.Analysis.BollingerPeriod = 20
	}
	if c.Analysis.VolumeMAPeriod == 0 {
		c.Analysis.VolumeMAPeriod = 20
	}
	if c.Analysis.OBImbalanceThreshold == 0 {
		c.Analysis.OBImbalanceThreshold = 0.3
	}
	if c.Analysis.VolumeSpikeRatio == 0 {
		c.Analysis.VolumeSpikeRatio = 2.0
	}
	if c.Analysis.ATRLowRatio == 0 {
		c.Analysis.ATRLowRatio = 0.001
	}
	if c.Analysis.SuppressWindowSeconds == 0 {
		c.Analysis.SuppressWindowSeconds = 1800
	}

	if c.Sentiment.APIURL == "" {
		c.Sentiment.APIURL = "https://api.alternative.me/fng/"
	}
	if c.Sentiment.CacheTTLSeconds == 0 {
		c.Sentiment.CacheTTLSeconds = 300
	}
	if c.Sentiment.TimeoutSeconds == 0 {
		c.Sentiment.TimeoutSeconds = 5
	}
	if c.Sentiment.Retries == 0 {
		c.Sentiment.Retries = 3
	}

	if c.ML.ModelPath == "" {
		c.ML.ModelPath = "model.json"
	}

	if c.Notifier.MaxConcurrent == 0 {
		c.Notifier.MaxConcurrent = 25
	}
	if c.Notifier.BatchSize == 0 {
		c.Notifier.BatchSize = 50
	}
	if c.Notifier.BatchPauseMS == 0 {
		c.Notifier.BatchPauseMS = 1000
	}
	if c.Notifier.SendRetries == 0 {
		c.Notifier.SendRetries = 3
	}
	if c.Notifier.RetryDelayMS == 0 {
		c.Notifier.RetryDelayMS = 500
	}

	if c.Telegram.PollTimeoutSeconds == 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
	if c.Health.Port == 0 {
		c.Health.Port = 8080
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return fmt.Errorf("telegram bot token не настроен")
	}
	if c.Trading.Mode != "swing" && c.Trading.Mode != "day" {
		return fmt.Errorf("неизвестный режим торговли: %s", c.Trading.Mode)
	}
	for _, mc := range []ModeConfig{c.Analysis.Swing, c.Analysis.Day} {
		if mc.PumpThreshold < 0 || mc.PumpThreshold > 1 {
			return fmt.Errorf("pump_threshold должен быть между 0 и 1")
		}
		if mc.DumpThreshold < 0 || mc.DumpThreshold > 1 {
			return fmt.Errorf("dump_threshold должен быть между 0 и 1")
		}
	}
	if c.Analysis.Day.CheckIntervalSeconds < 30 || c.Analysis.Swing.CheckIntervalSeconds < 60 {
		return fmt.Errorf("интервал проверки слишком маленький")
	}
	if c.Storage.PostgresDSN == "" {
		return fmt.Errorf("postgres DSN не настроен")
	}
	return nil
}

// ModeConfigFor возвращает настройки для указанного режима
func (c *Config) ModeConfigFor(mode string) ModeConfig {
	if mode == "day" {
		return c.Analysis.Day
	}
	return c.Analysis.Swing
}

// CheckInterval возвращает интервал между циклами для режима
func (c *Config) CheckInterval(mode string) time.Duration {
	return time.Duration(c.ModeConfigFor(mode).CheckIntervalSeconds) * time.Second
}
