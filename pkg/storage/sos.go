package storage

import (
	"context"

	"gifts_radar/models"
)

// SaveSos сохраняет сообщение о критичном событии в таблице sos.
// Время добавляет сама БД через DEFAULT NOW().
func (db *DB) SaveSos(ctx context.Context, source, msg string) error {
	_, err := db.Conn.ExecContext(ctx, `INSERT INTO sos (source, msg) VALUES ($1, $2)`, source, msg)
	return err
}

// RecentSos возвращает последние критичные события, новые первыми.
func (db *DB) RecentSos(ctx context.Context, limit int) ([]models.Sos, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT id, date_time, source, msg
		FROM sos
		ORDER BY date_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Sos
	for rows.Next() {
		var s models.Sos
		if err := rows.Scan(&s.ID, &s.DateTime, &s.Source, &s.Msg); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
