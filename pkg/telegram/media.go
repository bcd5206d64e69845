package telegram

import (
	"bytes"
	"context"
	"fmt"

	"gifts_radar/models"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
)

const (
	stickerFileName = "sticker.tgs"
	stickerMimeType = "application/x-tgsticker"
)

// MediaLoader скачивает стикер подарка и загружает его заново как вложение.
// Документ каталога нельзя отправить напрямую, поэтому файл проходит через память.
type MediaLoader struct {
	api        *tg.Client
	downloader *downloader.Downloader
	uploader   *uploader.Uploader
}

func NewMediaLoader(api *tg.Client) *MediaLoader {
	return &MediaLoader{
		api:        api,
		downloader: downloader.NewDownloader(),
		uploader:   uploader.NewUploader(api),
	}
}

// StickerMedia возвращает InputMedia для отправки стикера подарка.
func (l *MediaLoader) StickerMedia(ctx context.Context, ref models.StickerRef) (tg.InputMediaClass, error) {
	if ref.DocumentID == 0 {
		return nil, fmt.Errorf("у подарка нет стикера")
	}
	var buf bytes.Buffer
	if ref.Size > 0 {
		buf.Grow(int(ref.Size))
	}
	loc := &tg.InputDocumentFileLocation{
		ID:            ref.DocumentID,
		AccessHash:    ref.AccessHash,
		FileReference: ref.FileReference,
	}
	if _, err := l.downloader.Download(l.api, loc).Stream(ctx, &buf); err != nil {
		return nil, fmt.Errorf("скачивание стикера %d: %w", ref.DocumentID, err)
	}
	file, err := l.uploader.FromBytes(ctx, stickerFileName, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("загрузка стикера %d: %w", ref.DocumentID, err)
	}
	mime := ref.MimeType
	if mime == "" {
		mime = stickerMimeType
	}
	return &tg.InputMediaUploadedDocument{
		File:     file,
		MimeType: mime,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: stickerFileName},
		},
	}, nil
}
