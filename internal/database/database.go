// Package database хранит историю вычислений пользователей.
package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GGmuzem/formula-engine/pkg/models"
)

// DefaultHistoryLimit - число записей истории, возвращаемых по умолчанию
const DefaultHistoryLimit = 50

// Database определяет интерфейс хранилища истории
type Database interface {
	Close() error
	MigrateDB() error

	// AppendHistory сохраняет запись; пустые ID и CreatedAt заполняются
	AppendHistory(ctx context.Context, rec *models.HistoryRecord) error
	// ListHistory возвращает записи пользователя, новые первыми
	ListHistory(ctx context.Context, userID int, limit int) ([]models.HistoryRecord, error)
	// DeleteHistory удаляет все записи пользователя
	DeleteHistory(ctx context.Context, userID int) error
}

// prepare заполняет идентификатор и время создания записи
func prepare(rec *models.HistoryRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixNano()
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
