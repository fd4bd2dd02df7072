package notifier

import (
	"fmt"
	"strings"

	"github.com/skalibog/bpdb/pkg/format"
	"github.com/skalibog/bpdb/pkg/models"
)

// FormatSignal строит текст уведомления о сигнале
func FormatSignal(rec models.SignalRecord, snap *models.Snapshot, ind *models.Indicators, symbol string) string {
	signalEmoji := "🚀"
	if rec.Type == models.SignalDump {
		signalEmoji = "📉"
	}

	confidenceEmoji := "💡"
	switch rec.Confidence {
	case models.ConfidenceHigh:
		confidenceEmoji = "🔥"
	case models.ConfidenceMedium:
		confidenceEmoji = "⚡"
	}

	rsiEmoji := "📉"
	if ind.RSI > 50 {
		rsiEmoji = "📈"
	}

	volumePrefix := ""
	if ind.HighVolume {
		volumePrefix = "+"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s SIGNAL %s\n\n", signalEmoji, rec.Type, confidenceEmoji)
	fmt.Fprintf(&b, "%s\n", symbol)
	fmt.Fprintf(&b, "💰 Цена: %s\n", format.Price(snap.CurrentPrice))
	fmt.Fprintf(&b, "📊 Изменение 1h: %s\n", format.Percent(snap.PriceChange1h))
	fmt.Fprintf(&b, "📈 Изменение 4h: %s\n\n", format.Percent(snap.PriceChange4h))
	fmt.Fprintf(&b, "🎯 Вероятность: %s\n", format.Probability(rec.Probability))
	fmt.Fprintf(&b, "🎚️ Confidence: %s\n\n", rec.Confidence)
	fmt.Fprintf(&b, "🔍 Индикаторы:\n")
	fmt.Fprintf(&b, "- RSI: %.1f %s\n", ind.RSI, rsiEmoji)
	fmt.Fprintf(&b, "- MACD: %s\n", ind.MACDCrossover)
	fmt.Fprintf(&b, "- Volume: %s%.0f%% от среднего\n", volumePrefix, (ind.VolumeRatio-1)*100)
	fmt.Fprintf(&b, "- Fear & Greed: %d\n", snap.FearGreed)

	if len(rec.Reasons) > 0 {
		fmt.Fprintf(&b, "\n📋 Причины:\n")
		for _, r := range rec.Reasons {
			fmt.Fprintf(&b, "• %s\n", r)
		}
	}

	fmt.Fprintf(&b, "\n⏰ %s\n\n", format.Timestamp(rec.Timestamp))
	fmt.Fprintf(&b, "⚠️ Это не финансовый совет!")

	return b.String()
}
