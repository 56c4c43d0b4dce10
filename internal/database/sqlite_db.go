package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GGmuzem/formula-engine/pkg/models"
)

// SQLiteDB реализация интерфейса Database для SQLite
type SQLiteDB struct {
	db *sql.DB
}

// New создаёт и инициализирует новый экземпляр SQLite БД
func New(dbPath string) (*SQLiteDB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("не удалось создать каталог базы данных: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с базой данных: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close закрывает соединение с БД
func (db *SQLiteDB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// MigrateDB выполняет миграцию базы данных
func (db *SQLiteDB) MigrateDB() error {
	_, err := db.db.Exec(`
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		formula TEXT NOT NULL,
		formula_url TEXT NOT NULL,
		target TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("не удалось создать таблицу history: %w", err)
	}

	_, err = db.db.Exec(`CREATE INDEX IF NOT EXISTS history_user_created ON history (user_id, created_at)`)
	if err != nil {
		return fmt.Errorf("не удалось создать индекс history: %w", err)
	}
	return nil
}

// AppendHistory сохраняет запись истории
func (db *SQLiteDB) AppendHistory(ctx context.Context, rec *models.HistoryRecord) error {
	prepare(rec)
	_, err := db.db.ExecContext(ctx,
		"INSERT INTO history (id, user_id, formula, formula_url, target, result, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.UserID, rec.FormulaSlug, rec.FormulaURL, rec.Target, rec.Result, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка при сохранении истории: %w", err)
	}
	return nil
}

// ListHistory возвращает историю пользователя, новые записи первыми
func (db *SQLiteDB) ListHistory(ctx context.Context, userID int, limit int) ([]models.HistoryRecord, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, formula, formula_url, target, result, created_at
		FROM history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении истории: %w", err)
	}
	defer rows.Close()

	records := []models.HistoryRecord{}
	for rows.Next() {
		var rec models.HistoryRecord
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.FormulaSlug, &rec.FormulaURL, &rec.Target, &rec.Result, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании истории: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации результатов: %w", err)
	}
	return records, nil
}

// DeleteHistory удаляет историю пользователя
func (db *SQLiteDB) DeleteHistory(ctx context.Context, userID int) error {
	if _, err := db.db.ExecContext(ctx, "DELETE FROM history WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("ошибка при удалении истории: %w", err)
	}
	return nil
}
