// Package format содержит форматирование значений для пользовательских сообщений.
package format

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price форматирует цену для отображения: $107,450.25
func Price(price float64) string {
	d := decimal.NewFromFloat(price).Round(2)
	whole := d.IntPart()
	frac := d.Sub(decimal.NewFromInt(whole)).Abs().Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	sign := ""
	if whole < 0 {
		sign = "-"
		whole = -whole
	}

	// Разделяем тысячные разряды запятыми
	digits := decimal.NewFromInt(whole).String()
	var grouped []byte
	for i, c := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, c)
	}

	fracStr := decimal.NewFromInt(frac).StringFixed(0)
	if frac < 10 {
		fracStr = "0" + fracStr
	}
	return "$" + sign + string(grouped) + "." + fracStr
}

// Percent форматирует процентное значение со знаком: +1.25%
func Percent(value float64) string {
	d := decimal.NewFromFloat(value).Round(2)
	s := d.StringFixed(2)
	if d.Sign() > 0 {
		s = "+" + s
	}
	return s + "%"
}

// Probability форматирует вероятность [0,1] как целые проценты: 72%
func Probability(p float64) string {
	return decimal.NewFromFloat(p * 100).Round(0).StringFixed(0) + "%"
}

// Timestamp форматирует время для отображения
func Timestamp(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04:05") + " UTC"
}
