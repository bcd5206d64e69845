package telegram

import (
	"context"
	"fmt"

	"gifts_radar/models"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"
)

// Catalog читает каталог подарков через payments.getStarGifts.
type Catalog struct {
	api *tg.Client
}

func NewCatalog(api *tg.Client) *Catalog { return &Catalog{api: api} }

// FetchGifts возвращает каталог целиком. hash=0 всегда запрашивает свежие данные.
// Порядок элементов не гарантируется.
func (c *Catalog) FetchGifts(ctx context.Context, hash int) ([]models.Gift, error) {
	res, err := c.api.PaymentsGetStarGifts(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("payments.getStarGifts: %w", err)
	}
	list, ok := res.(*tg.PaymentsStarGifts)
	if !ok {
		// PaymentsStarGiftsNotModified возможен только при ненулевом hash
		return nil, fmt.Errorf("payments.getStarGifts: неожиданный ответ %T", res)
	}
	return giftsFromTL(list.Gifts), nil
}

// giftsFromTL отбрасывает уникальные (улучшенные) подарки: у них нет стикера каталога и остатков.
func giftsFromTL(items []tg.StarGiftClass) []models.Gift {
	gifts := make([]models.Gift, 0, len(items))
	for _, item := range items {
		g, ok := item.(*tg.StarGift)
		if !ok {
			continue
		}
		gift := models.Gift{
			ID:                  models.GiftID(g.ID),
			Limited:             g.Limited,
			SoldOut:             g.SoldOut,
			Stars:               g.Stars,
			AvailabilityRemains: g.AvailabilityRemains,
			AvailabilityTotal:   g.AvailabilityTotal,
		}
		if doc, ok := g.Sticker.(*tg.Document); ok {
			gift.Sticker = models.StickerRef{
				DocumentID:    doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
				Size:          doc.Size,
				MimeType:      doc.MimeType,
			}
		} else {
			log.Warn().Msgf("[TELEGRAM] у подарка %d нет документа стикера", g.ID)
		}
		gifts = append(gifts, gift)
	}
	return gifts
}
