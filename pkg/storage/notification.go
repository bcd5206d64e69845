package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gifts_radar/models"
)

// ErrNotificationNotFound сообщает, что для пары подарок/чат ещё нет записи.
var ErrNotificationNotFound = errors.New("notification not found")

const notificationColumns = `id, gift_id, chat_id, gift_message_id, info_message_id, info_message_text, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.StarGiftNotification, error) {
	var n models.StarGiftNotification
	var giftID int64
	if err := row.Scan(
		&n.ID,
		&giftID,
		&n.ChatID,
		&n.GiftMessageID,
		&n.InfoMessageID,
		&n.InfoMessageText,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.GiftID = models.GiftID(giftID)
	return &n, nil
}

// FindNotification возвращает запись по паре (gift_id, chat_id).
// Если записи нет, возвращается ErrNotificationNotFound.
func (db *DB) FindNotification(ctx context.Context, giftID models.GiftID, chatID string) (*models.StarGiftNotification, error) {
	row := db.Conn.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM star_gift_notifications
		WHERE gift_id = $1 AND chat_id = $2
	`, int64(giftID), chatID)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("поиск уведомления %s/%s: %w", giftID, chatID, err)
	}
	return n, nil
}

// UpsertNotification сохраняет уведомление вместе со снимком подарка.
// Подарок создаётся при первом уведомлении, существующая запись по (gift_id, chat_id)
// перезаписывается новыми идентификаторами сообщений и текстом.
func (db *DB) UpsertNotification(ctx context.Context, gift models.Gift, n models.StarGiftNotification) (*models.StarGiftNotification, error) {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var remains, total sql.NullInt64
	if gift.Limited {
		remains = sql.NullInt64{Int64: int64(gift.AvailabilityRemains), Valid: true}
		total = sql.NullInt64{Int64: int64(gift.AvailabilityTotal), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO star_gifts (gift_id, limited, stars, availability_remains, availability_total)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (gift_id) DO UPDATE SET
			limited = EXCLUDED.limited,
			stars = EXCLUDED.stars,
			availability_remains = EXCLUDED.availability_remains,
			availability_total = EXCLUDED.availability_total,
			updated_at = NOW()
	`, int64(gift.ID), gift.Limited, gift.Stars, remains, total); err != nil {
		return nil, fmt.Errorf("сохранение подарка %s: %w", gift.ID, err)
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO star_gift_notifications (gift_id, chat_id, gift_message_id, info_message_id, info_message_text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (gift_id, chat_id) DO UPDATE SET
			gift_message_id = EXCLUDED.gift_message_id,
			info_message_id = EXCLUDED.info_message_id,
			info_message_text = EXCLUDED.info_message_text,
			updated_at = NOW()
		RETURNING `+notificationColumns,
		int64(gift.ID), n.ChatID, n.GiftMessageID, n.InfoMessageID, n.InfoMessageText,
	)
	saved, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("сохранение уведомления %s/%s: %w", gift.ID, n.ChatID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("фиксация транзакции: %w", err)
	}
	return saved, nil
}

// ListNotifications возвращает все уведомления, упорядоченные по подарку и чату.
func (db *DB) ListNotifications(ctx context.Context) ([]models.StarGiftNotification, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM star_gift_notifications
		ORDER BY gift_id, chat_id
	`)
	if err != nil {
		return nil, fmt.Errorf("получение уведомлений: %w", err)
	}
	defer rows.Close()

	var list []models.StarGiftNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение уведомления: %w", err)
		}
		list = append(list, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
