package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store хранит текущий снимок справочника. Читатели получают снимок без
// блокировок; обновление подменяет указатель целиком.
type Store struct {
	current atomic.Pointer[Snapshot]
}

func NewStore(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

// Snapshot возвращает текущий снимок
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Swap заменяет снимок
func (s *Store) Swap(snap *Snapshot) {
	s.current.Store(snap)
}

// Reload загружает справочник из файла и подменяет снимок.
// При ошибке текущий снимок остаётся прежним.
func (s *Store) Reload(path string) error {
	snap, err := LoadFile(path)
	if err != nil {
		return err
	}
	s.Swap(snap)
	return nil
}

// Watch следит за файлом справочника и перезагружает его при изменении,
// пока не будет отменён ctx. Следим за каталогом: редакторы часто заменяют
// файл переименованием.
func (s *Store) Watch(ctx context.Context, path string, log *slog.Logger) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating catalog watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("error watching catalog directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if err := s.Reload(path); err != nil {
					log.Warn("catalog.reload_failed", "path", path, "error", err)
					continue
				}
				log.Info("catalog.reloaded", "path", path, "formulas", len(s.Snapshot().formulas))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("catalog.watch_error", "error", err)
			}
		}
	}()
	return nil
}
