package models

import "strconv"

// GiftID — идентификатор подарка из каталога Telegram.
// Значения растут монотонно, поэтому по ним же определяется порядок появления подарков.
type GiftID uint64

// Less сравнивает идентификаторы в порядке появления подарков.
func (id GiftID) Less(other GiftID) bool { return id < other }

func (id GiftID) String() string { return strconv.FormatUint(uint64(id), 10) }

// StickerRef описывает документ стикера подарка.
// Этих полей достаточно, чтобы скачать файл через upload.getFile.
type StickerRef struct {
	DocumentID    int64  `json:"document_id"`
	AccessHash    int64  `json:"access_hash"`
	FileReference []byte `json:"-"`
	Size          int64  `json:"size"`
	MimeType      string `json:"mime_type"`
}

// Gift — подарок из каталога (payments.getStarGifts).
// AvailabilityRemains и AvailabilityTotal заполнены только у лимитированных подарков.
type Gift struct {
	ID                  GiftID     `json:"id"`
	Limited             bool       `json:"limited"`
	SoldOut             bool       `json:"sold_out"`
	Stars               int64      `json:"stars"`
	AvailabilityRemains int        `json:"availability_remains"`
	AvailabilityTotal   int        `json:"availability_total"`
	Sticker             StickerRef `json:"sticker"`
}
