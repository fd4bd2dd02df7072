// Package storage отвечает за долговременное хранение данных:
// снимки цены с индикаторами, история сигналов и подписчики бота.
package storage

import (
	"context"
	"time"

	"github.com/skalibog/bpdb/pkg/models"
)

// User подписчик бота
type User struct {
	UserID     int64     `db:"user_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	Subscribed bool      `db:"subscribed"`
	JoinedAt   time.Time `db:"joined_at"`
}

// AccuracyByType точность сигналов в процентах по типу сигнала
type AccuracyByType map[models.SignalType]float64

// Storage интерфейс для работы с хранилищем данных
type Storage interface {
	// Методы для снимков рынка
	SavePriceSnapshot(ctx context.Context, price, volume float64, ind *models.Indicators, fearGreed int) error

	// Методы для сигналов
	SaveSignal(ctx context.Context, rec models.SignalRecord, price float64) (int64, error)
	UpdateSignalResult(ctx context.Context, signalID int64, actualResult string, resultPrice float64) error
	GetSignalAccuracy(ctx context.Context, days int) (AccuracyByType, error)

	// Методы для пользователей
	AddUser(ctx context.Context, userID int64, username, firstName string) error
	UpdateSubscription(ctx context.Context, userID int64, subscribed bool) error
	GetSubscribedUsers(ctx context.Context) ([]int64, error)

	Close() error
}
