package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/skalibog/bpdb/pkg/logger"
	"github.com/skalibog/bpdb/pkg/models"
)

// Схема создается при старте, существующие таблицы не трогаются
const schema = `
CREATE TABLE IF NOT EXISTS price_data (
	id               BIGSERIAL PRIMARY KEY,
	timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	price            DOUBLE PRECISION NOT NULL,
	volume           DOUBLE PRECISION NOT NULL,
	rsi              DOUBLE PRECISION,
	macd             DOUBLE PRECISION,
	macd_signal      DOUBLE PRECISION,
	bb_upper         DOUBLE PRECISION,
	bb_lower         DOUBLE PRECISION,
	fear_greed_index INTEGER
);

CREATE TABLE IF NOT EXISTS signals (
	id               BIGSERIAL PRIMARY KEY,
	timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	signal_type      TEXT NOT NULL,
	probability      DOUBLE PRECISION NOT NULL,
	price            DOUBLE PRECISION NOT NULL,
	confidence       TEXT,
	actual_result    TEXT,
	result_price     DOUBLE PRECISION,
	result_timestamp TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS users (
	user_id    BIGINT PRIMARY KEY,
	username   TEXT,
	first_name TEXT,
	subscribed BOOLEAN NOT NULL DEFAULT TRUE,
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStorage реализует интерфейс Storage поверх PostgreSQL
type PostgresStorage struct {
	db *sqlx.DB
}

// NewPostgresStorage подключается к базе и инициализирует схему
func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации схемы: %w", err)
	}

	logger.Info("Хранилище PostgreSQL инициализировано")
	return &PostgresStorage{db: db}, nil
}

// Close закрывает соединение с базой данных
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// SavePriceSnapshot сохраняет снимок цены с ключевыми индикаторами
func (s *PostgresStorage) SavePriceSnapshot(ctx context.Context, price, volume float64, ind *models.Indicators, fearGreed int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_data (price, volume, rsi, macd, macd_signal, bb_upper, bb_lower, fear_greed_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		price, volume, ind.RSI, ind.MACD, ind.MACDSignal, ind.BBUpper, ind.BBLower, fearGreed)
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка цены: %w", err)
	}
	return nil
}

// SaveSignal сохраняет сигнал и возвращает его идентификатор
func (s *PostgresStorage) SaveSignal(ctx context.Context, rec models.SignalRecord, price float64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO signals (signal_type, probability, price, confidence)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		string(rec.Type), rec.Probability, price, string(rec.Confidence)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка сохранения сигнала: %w", err)
	}
	return id, nil
}

// UpdateSignalResult записывает фактический исход сигнала после проверки
func (s *PostgresStorage) UpdateSignalResult(ctx context.Context, signalID int64, actualResult string, resultPrice float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE signals
		SET actual_result = $1, result_price = $2, result_timestamp = NOW()
		WHERE id = $3`,
		actualResult, resultPrice, signalID)
	if err != nil {
		return fmt.Errorf("ошибка обновления результата сигнала: %w", err)
	}
	return nil
}

// GetSignalAccuracy считает точность сигналов за последние days дней
// по типам сигналов, учитываются только сигналы с известным исходом
func (s *PostgresStorage) GetSignalAccuracy(ctx context.Context, days int) (AccuracyByType, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT signal_type,
		       COUNT(*) AS total,
		       SUM(CASE WHEN actual_result = 'correct' THEN 1 ELSE 0 END) AS correct
		FROM signals
		WHERE timestamp >= NOW() - make_interval(days => $1)
		  AND actual_result IS NOT NULL
		GROUP BY signal_type`,
		days)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса точности сигналов: %w", err)
	}
	defer rows.Close()

	accuracy := make(AccuracyByType)
	for rows.Next() {
		var signalType string
		var total, correct int
		if err := rows.Scan(&signalType, &total, &correct); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки точности: %w", err)
		}
		if total > 0 {
			accuracy[models.SignalType(signalType)] = float64(correct) / float64(total) * 100
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода результатов: %w", err)
	}

	return accuracy, nil
}

// AddUser регистрирует пользователя, повторная регистрация не ошибка
func (s *PostgresStorage) AddUser(ctx context.Context, userID int64, username, firstName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, username, firstName)
	if err != nil {
		return fmt.Errorf("ошибка добавления пользователя: %w", err)
	}
	return nil
}

// UpdateSubscription меняет статус подписки пользователя
func (s *PostgresStorage) UpdateSubscription(ctx context.Context, userID int64, subscribed bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET subscribed = $1 WHERE user_id = $2`,
		subscribed, userID)
	if err != nil {
		return fmt.Errorf("ошибка обновления подписки: %w", err)
	}
	return nil
}

// GetSubscribedUsers возвращает идентификаторы подписанных пользователей
func (s *PostgresStorage) GetSubscribedUsers(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM users WHERE subscribed = TRUE`); err != nil {
		return nil, fmt.Errorf("ошибка запроса подписчиков: %w", err)
	}
	return ids, nil
}
