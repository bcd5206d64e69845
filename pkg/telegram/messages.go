package telegram

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"gifts_radar/internal/common"
	"gifts_radar/models"

	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrNoMessageID возвращается, если в ответе на отправку нет ID нового сообщения.
var ErrNoMessageID = errors.New("message id not found in updates")

// maxFloodWait — дольше этого не ждём FLOOD_WAIT, ошибка уходит вызывающему.
const maxFloodWait = time.Minute

// Messenger отправляет, редактирует и удаляет сообщения радара.
// Все запросы проходят через общий лимитер, чтобы параллельные чаты не ловили FLOOD_WAIT.
type Messenger struct {
	api     *tg.Client
	peers   *PeerResolver
	media   *MediaLoader
	limiter *rate.Limiter
}

func NewMessenger(api *tg.Client, peers *PeerResolver, media *MediaLoader, limiter *rate.Limiter) *Messenger {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Messenger{api: api, peers: peers, media: media, limiter: limiter}
}

// SendMedia отправляет стикер подарка и возвращает ID сообщения.
func (m *Messenger) SendMedia(ctx context.Context, chatID string, sticker models.StickerRef, silent bool) (int, error) {
	peer, err := m.peers.Resolve(ctx, chatID)
	if err != nil {
		return 0, err
	}
	media, err := m.media.StickerMedia(ctx, sticker)
	if err != nil {
		return 0, err
	}
	var id int
	err = m.invoke(ctx, func() error {
		upd, err := m.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
			Silent:   silent,
			Peer:     peer,
			Media:    media,
			RandomID: randomID(),
		})
		if err != nil {
			return err
		}
		id, err = sentMessageID(upd)
		return err
	})
	if err != nil {
		m.forgetOnPeerError(chatID, err)
		return 0, fmt.Errorf("отправка стикера в %s: %w", chatID, err)
	}
	return id, nil
}

// SendText отправляет текст в HTML-разметке и возвращает ID сообщения.
func (m *Messenger) SendText(ctx context.Context, chatID string, htmlText string, silent bool) (int, error) {
	peer, err := m.peers.Resolve(ctx, chatID)
	if err != nil {
		return 0, err
	}
	text, entities, err := formatHTML(htmlText)
	if err != nil {
		return 0, err
	}
	var id int
	err = m.invoke(ctx, func() error {
		upd, err := m.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			NoWebpage: true,
			Silent:    silent,
			Peer:      peer,
			Message:   text,
			Entities:  entities,
			RandomID:  randomID(),
		})
		if err != nil {
			return err
		}
		id, err = sentMessageID(upd)
		return err
	})
	if err != nil {
		m.forgetOnPeerError(chatID, err)
		return 0, fmt.Errorf("отправка текста в %s: %w", chatID, err)
	}
	return id, nil
}

// EditText меняет текст сообщения. MESSAGE_NOT_MODIFIED возвращается как EditNotModified без ошибки.
func (m *Messenger) EditText(ctx context.Context, chatID string, messageID int, htmlText string) (models.EditResult, error) {
	peer, err := m.peers.Resolve(ctx, chatID)
	if err != nil {
		return models.EditOK, err
	}
	text, entities, err := formatHTML(htmlText)
	if err != nil {
		return models.EditOK, err
	}
	req := &tg.MessagesEditMessageRequest{
		NoWebpage: true,
		Peer:      peer,
		ID:        messageID,
	}
	req.SetMessage(text)
	req.SetEntities(entities)

	err = m.invoke(ctx, func() error {
		_, err := m.api.MessagesEditMessage(ctx, req)
		return err
	})
	if tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return models.EditNotModified, nil
	}
	if err != nil {
		m.forgetOnPeerError(chatID, err)
		return models.EditOK, fmt.Errorf("редактирование %d в %s: %w", messageID, chatID, err)
	}
	return models.EditOK, nil
}

// DeleteMessages удаляет сообщения у всех участников. Ошибки только логируются:
// сообщения могли быть уже удалены вручную.
func (m *Messenger) DeleteMessages(ctx context.Context, chatID string, messageIDs []int) {
	ids := make([]int, 0, len(messageIDs))
	for _, id := range messageIDs {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	peer, err := m.peers.Resolve(ctx, chatID)
	if err != nil {
		log.Warn().Msgf("[TELEGRAM] удаление в %s: %v", chatID, err)
		return
	}
	err = m.invoke(ctx, func() error {
		if ch, ok := peer.(*tg.InputPeerChannel); ok {
			_, err := m.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
				Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
				ID:      ids,
			})
			return err
		}
		_, err := m.api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{Revoke: true, ID: ids})
		return err
	})
	if err != nil {
		m.forgetOnPeerError(chatID, err)
		log.Warn().Msgf("[TELEGRAM] не удалось удалить сообщения %v в %s: %v", ids, chatID, err)
	}
}

// forgetOnPeerError сбрасывает кэш peer, если Telegram его больше не принимает
// (канал пересоздан, аккаунт исключён). Следующий запрос разрешит чат заново.
func (m *Messenger) forgetOnPeerError(chatID string, err error) {
	if isPeerError(err) {
		log.Warn().Msgf("[TELEGRAM] peer %s недействителен, сбрасываем кэш: %v", chatID, err)
		m.peers.Forget(chatID)
	}
}

func isPeerError(err error) bool {
	return tgerr.Is(err, "PEER_ID_INVALID", "CHANNEL_INVALID", "CHANNEL_PRIVATE", "CHAT_ID_INVALID")
}

// formatHTML переводит HTML-разметку в текст и сущности MTProto (смещения в UTF-16).
func formatHTML(s string) (string, []tg.MessageEntityClass, error) {
	var b entity.Builder
	if err := html.HTML(strings.NewReader(s), &b, html.Options{}); err != nil {
		return "", nil, fmt.Errorf("разбор html: %w", err)
	}
	text, entities := b.Complete()
	return text, entities, nil
}

// invoke ждёт лимитер и повторяет запрос один раз после короткого FLOOD_WAIT.
func (m *Messenger) invoke(ctx context.Context, fn func() error) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	err := fn()
	d, ok := tgerr.AsFloodWait(err)
	if !ok || d > maxFloodWait {
		return err
	}
	log.Warn().Msgf("[TELEGRAM] FLOOD_WAIT %s, повторяем запрос", d)
	if err := common.Sleep(ctx, d); err != nil {
		return err
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn()
}

// sentMessageID достаёт ID отправленного сообщения из ответа сервера.
func sentMessageID(upd tg.UpdatesClass) (int, error) {
	var updates []tg.UpdateClass
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, nil
	case *tg.Updates:
		updates = u.Updates
	case *tg.UpdatesCombined:
		updates = u.Updates
	}
	for _, update := range updates {
		switch v := update.(type) {
		case *tg.UpdateMessageID:
			return v.ID, nil
		case *tg.UpdateNewMessage:
			return v.Message.GetID(), nil
		case *tg.UpdateNewChannelMessage:
			return v.Message.GetID(), nil
		}
	}
	return 0, ErrNoMessageID
}

func randomID() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]))
}
