package radar

import (
	"context"
	"errors"
	"fmt"

	"gifts_radar/internal/metrics"
	"gifts_radar/models"
	"gifts_radar/pkg/storage"

	"github.com/rs/zerolog"
)

// Операции над парой сообщений, они же метки метрик.
const (
	opCreate   = "create"
	opEdit     = "edit"
	opRecreate = "recreate"
	opNoop     = "noop"
)

// reconcileChat проходит подарки по возрастанию ID. Ошибка по одному подарку
// не мешает остальным.
func (e *Engine) reconcileChat(ctx context.Context, logger zerolog.Logger, chatID string, gifts []models.Gift) ChatSummary {
	var sum ChatSummary
	for _, g := range gifts {
		if ctx.Err() != nil {
			break
		}
		op, err := e.reconcileGift(ctx, logger, chatID, g)
		if e.metrics != nil {
			e.metrics.NotificationOp.WithLabelValues(op, metrics.Outcome(err)).Inc()
		}
		if err != nil {
			sum.Failed++
			logger.Error().Msgf("[RADAR] чат %s, подарок %s (%s): %v", chatID, g.ID, op, err)
			continue
		}
		switch op {
		case opCreate:
			sum.Created++
		case opEdit:
			sum.Edited++
		case opRecreate:
			sum.Recreated++
		default:
			sum.Unchanged++
		}
	}
	logger.Info().Msgf("[RADAR] чат %s: новых %d, изменено %d, пересоздано %d, без изменений %d, ошибок %d",
		chatID, sum.Created, sum.Edited, sum.Recreated, sum.Unchanged, sum.Failed)
	return sum
}

// reconcileGift приводит пару сообщений подарка в чате к актуальному виду.
// Если редактирование не удалось (например, сообщение удалили вручную),
// старые сообщения удаляются и пара создаётся заново без звука.
func (e *Engine) reconcileGift(ctx context.Context, logger zerolog.Logger, chatID string, g models.Gift) (string, error) {
	rec, err := e.store.FindNotification(ctx, g.ID, chatID)
	if errors.Is(err, storage.ErrNotificationNotFound) {
		return opCreate, e.createAndSave(ctx, chatID, g, false)
	}
	if err != nil {
		return opCreate, fmt.Errorf("поиск записи: %w", err)
	}

	text := RenderGiftText(g)
	if text == rec.InfoMessageText {
		return opNoop, nil
	}
	// стикер не редактируется, меняется только текст
	res, err := e.messages.EditText(ctx, chatID, rec.InfoMessageID, text)
	if err != nil {
		logger.Warn().Msgf("[RADAR] чат %s, подарок %s: редактирование не удалось (%v), пересоздаём", chatID, g.ID, err)
		e.messages.DeleteMessages(ctx, chatID, []int{rec.GiftMessageID, rec.InfoMessageID})
		return opRecreate, e.createAndSave(ctx, chatID, g, true)
	}
	op := opEdit
	if res == models.EditNotModified {
		// в чате уже этот текст, запоминаем его, чтобы не редактировать на каждом проходе
		op = opNoop
	}
	updated := *rec
	updated.InfoMessageText = text
	if _, err := e.store.UpsertNotification(ctx, g, updated); err != nil {
		// текст в чате уже новый, следующий проход повторит редактирование
		return op, fmt.Errorf("сохранение текста: %w", err)
	}
	return op, nil
}

// createAndSave отправляет стикер и текст, затем сохраняет запись.
// При ошибке отправки запись не создаётся, и следующий проход повторит попытку.
func (e *Engine) createAndSave(ctx context.Context, chatID string, g models.Gift, silent bool) error {
	n, err := e.createNotification(ctx, chatID, g, silent)
	if err != nil {
		return err
	}
	if _, err := e.store.UpsertNotification(ctx, g, n); err != nil {
		return fmt.Errorf("сохранение записи: %w", err)
	}
	return nil
}

func (e *Engine) createNotification(ctx context.Context, chatID string, g models.Gift, silent bool) (models.StarGiftNotification, error) {
	// стикер всегда без звука, уведомление даёт только текст
	giftMsgID, err := e.messages.SendMedia(ctx, chatID, g.Sticker, true)
	if err != nil {
		return models.StarGiftNotification{}, fmt.Errorf("стикер: %w", err)
	}
	text := RenderGiftText(g)
	infoMsgID, err := e.messages.SendText(ctx, chatID, text, silent)
	if err != nil {
		e.messages.DeleteMessages(ctx, chatID, []int{giftMsgID})
		return models.StarGiftNotification{}, fmt.Errorf("текст: %w", err)
	}
	return models.StarGiftNotification{
		GiftID:          g.ID,
		ChatID:          chatID,
		GiftMessageID:   giftMsgID,
		InfoMessageID:   infoMsgID,
		InfoMessageText: text,
	}, nil
}
