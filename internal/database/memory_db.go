package database

import (
	"context"
	"sort"
	"sync"

	"github.com/GGmuzem/formula-engine/pkg/models"
)

// MemoryDB реализация БД в памяти без использования SQLite
type MemoryDB struct {
	history map[int][]models.HistoryRecord
	mutex   sync.RWMutex
}

// NewMemoryDB создает новую in-memory БД
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{history: make(map[int][]models.HistoryRecord)}
}

// Close просто заглушка для совместимости
func (db *MemoryDB) Close() error {
	return nil
}

// MigrateDB для in-memory не требуется миграция
func (db *MemoryDB) MigrateDB() error {
	return nil
}

func (db *MemoryDB) AppendHistory(ctx context.Context, rec *models.HistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepare(rec)

	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.history[rec.UserID] = append(db.history[rec.UserID], *rec)
	return nil
}

func (db *MemoryDB) ListHistory(ctx context.Context, userID int, limit int) ([]models.HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mutex.RLock()
	records := append([]models.HistoryRecord{}, db.history[userID]...)
	db.mutex.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	if limit = normalizeLimit(limit); len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (db *MemoryDB) DeleteHistory(ctx context.Context, userID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()
	delete(db.history, userID)
	return nil
}
