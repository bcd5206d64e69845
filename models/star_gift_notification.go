package models

import "time"

// StarGiftNotification связывает подарок и чат с парой отправленных сообщений.
// Пара (GiftID, ChatID) уникальна: на один подарок в одном чате хранится одна запись.
type StarGiftNotification struct {
	ID              int       `json:"id"`
	GiftID          GiftID    `json:"gift_id"`
	ChatID          string    `json:"chat_id"`
	GiftMessageID   int       `json:"gift_message_id"`   // Сообщение со стикером
	InfoMessageID   int       `json:"info_message_id"`   // Сообщение с описанием
	InfoMessageText string    `json:"info_message_text"` // Последний отправленный текст (HTML)
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
