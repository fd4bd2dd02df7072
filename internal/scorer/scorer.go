// Package scorer превращает рассчитанные индикаторы в торговый сигнал.
//
// Два взаимозаменяемых скорера: аддитивный rule-based и ML-модель из
// JSON-артефакта. ML-путь вспомогательный: любая ошибка загрузки или
// инференса прозрачно переключает на rule-based.
package scorer

import (
	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
	"go.uber.org/zap"
)

// Scorer оценивает снимок рынка и возвращает сигнал
type Scorer interface {
	Score(ind *models.Indicators, snap *models.Snapshot, mode models.Mode) models.SignalRecord
}

// New выбирает скорер при старте: ML-модель при наличии валидного артефакта,
// иначе rule-based
func New(cfg config.Config) Scorer {
	rule := NewRuleScorer(cfg.Analysis)

	ml, err := NewMLScorer(cfg.ML.ModelPath, cfg.Analysis, rule)
	if err != nil {
		logger.Info("ML-модель недоступна, используется rule-based скоринг", zap.Error(err))
		return rule
	}

	logger.Info("ML-модель загружена", zap.String("path", cfg.ML.ModelPath))
	return ml
}
