package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skalibog/bpdb/internal/bot"
	"github.com/skalibog/bpdb/internal/collector"
	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/internal/exchange"
	"github.com/skalibog/bpdb/internal/gate"
	"github.com/skalibog/bpdb/internal/health"
	"github.com/skalibog/bpdb/internal/indicators"
	"github.com/skalibog/bpdb/internal/notifier"
	"github.com/skalibog/bpdb/internal/scheduler"
	"github.com/skalibog/bpdb/internal/scorer"
	"github.com/skalibog/bpdb/internal/sentiment"
	"github.com/skalibog/bpdb/internal/storage"
	"github.com/skalibog/bpdb/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Init()
	defer logger.GetLogger().Sync()

	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	logger.Info("Проверка наличия файла конфигурации", zap.String("path", *configPath))
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Fatal("Файл конфигурации не найден", zap.String("path", *configPath))
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Создаем контекст с возможностью отмены через горутину
	ctx, cancel := context.WithCancel(context.Background())

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
		// Текущий цикл и рассылка доводятся до конца, планировщик вернет
		// управление сам; повторный сигнал завершает процесс немедленно
		<-sigCh
		os.Exit(1)
	}()

	// Инициализируем хранилище
	store, err := storage.NewPostgresStorage(cfg.Storage.PostgresDSN)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Необязательный приемник временных рядов
	var influx *storage.InfluxSnapshotSink
	if cfg.Storage.Influx.Enabled {
		influx, err = storage.NewInfluxSnapshotSink(cfg.Storage.Influx, cfg.Trading.Symbol)
		if err != nil {
			logger.Warn("InfluxDB недоступен, снимки не будут записываться", zap.Error(err))
			influx = nil
		} else {
			defer influx.Close()
		}
	}

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	// Собираем конвейер анализа
	fngClient := sentiment.NewClient(cfg.Sentiment)
	cache := collector.NewFeatureCache(fngClient, time.Duration(cfg.Sentiment.CacheTTLSeconds)*time.Second)
	coll := collector.New(client, cache, cfg.Trading.Symbol, cfg.Trading.OrderDepth)
	engine := indicators.NewEngine(cfg.Analysis)
	sc := scorer.New(*cfg)
	g := gate.New(cfg.Analysis)

	// Telegram: рассылка сигналов и обработка команд
	tgClient := notifier.NewTelegramClient(cfg.Telegram.BotToken)
	fanout := notifier.NewFanout(tgClient, cfg.Notifier)

	// Healthcheck-сервер
	healthSrv := health.NewServer(cfg.Health)
	go healthSrv.Run(ctx)

	// Планировщик циклов анализа
	sched := scheduler.New(cfg, coll, engine, sc, g, store, fanout, healthSrv, influx)

	// Обработчик команд пользователей
	commandBot := bot.New(tgClient, store, sched, *cfg)
	go commandBot.Run(ctx)

	logger.Info("Бот запущен",
		zap.String("symbol", cfg.Trading.Symbol),
		zap.String("mode", cfg.Trading.Mode))

	// Основной цикл в главной горутине (блокирующий вызов)
	sched.Run(ctx)
}
