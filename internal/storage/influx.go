package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/models"
)

// InfluxSnapshotSink пишет циклы анализа в InfluxDB как временной ряд.
// Необязательный приемник: включается конфигурацией, отказы не фатальны
// для основного конвейера.
type InfluxSnapshotSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	symbol   string
}

// NewInfluxSnapshotSink создает приемник снимков и проверяет соединение
func NewInfluxSnapshotSink(cfg config.InfluxConfig, symbol string) (*InfluxSnapshotSink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxSnapshotSink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
		symbol:   symbol,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxSnapshotSink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}

// WriteSnapshot записывает снимок рынка с индикаторами как точку ряда
func (s *InfluxSnapshotSink) WriteSnapshot(snap *models.Snapshot, ind *models.Indicators) {
	fields := map[string]interface{}{
		"price":        snap.CurrentPrice,
		"volume":       snap.CurrentVolume,
		"rsi":          ind.RSI,
		"macd":         ind.MACD,
		"macd_signal":  ind.MACDSignal,
		"bb_upper":     ind.BBUpper,
		"bb_lower":     ind.BBLower,
		"fear_greed":   snap.FearGreed,
		"oi_change_1h": snap.OpenInterest.Change1h,
	}
	if ind.VWAP != nil {
		fields["vwap"] = *ind.VWAP
	}

	point := influxdb2.NewPoint(
		"market_snapshots",
		map[string]string{
			"symbol": s.symbol,
		},
		fields,
		snap.Timestamp,
	)

	s.writeAPI.WritePoint(point)
}

// WriteSignal записывает отправленный сигнал как точку ряда
func (s *InfluxSnapshotSink) WriteSignal(rec models.SignalRecord, price float64) {
	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"symbol": s.symbol,
			"type":   string(rec.Type),
		},
		map[string]interface{}{
			"probability": rec.Probability,
			"confidence":  string(rec.Confidence),
			"price":       price,
		},
		rec.Timestamp,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()
}
