package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gotd/td/session"
	"github.com/rs/zerolog/log"
)

// SessionStorage хранит и загружает сессию Telegram из таблицы telegram_sessions.
// Реализует session.Storage из gotd.
type SessionStorage struct {
	DB   *sql.DB
	Name string
}

// NewSessionStorage возвращает хранилище сессии с указанным именем.
func (db *DB) NewSessionStorage(name string) *SessionStorage {
	return &SessionStorage{DB: db.Conn, Name: name}
}

// LoadSession загружает текст сессии из БД.
func (s *SessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, session.ErrNotFound
	}

	var data string
	err := s.DB.QueryRowContext(ctx, "SELECT data_json FROM telegram_sessions WHERE name = $1", s.Name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Msgf("[SESSION] ошибка чтения сессии %s", s.Name)
		return nil, err
	}
	return []byte(data), nil
}

// StoreSession сохраняет текст сессии в БД.
func (s *SessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if s == nil || s.DB == nil {
		return session.ErrNotFound
	}
	// Одна запись на имя сессии, повторное сохранение обновляет её
	_, err := s.DB.ExecContext(
		ctx,
		"INSERT INTO telegram_sessions (name, data_json) VALUES ($1, $2) "+
			"ON CONFLICT (name) DO UPDATE SET data_json = EXCLUDED.data_json, date_time = NOW()",
		s.Name,
		string(data),
	)
	if err != nil {
		log.Error().Err(err).Msgf("[SESSION] ошибка сохранения сессии %s", s.Name)
		return err
	}
	return nil
}
