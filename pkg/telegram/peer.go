package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
)

// ErrPeerNotFound возвращается, если идентификатор чата или пользователя не удалось разрешить.
var ErrPeerNotFound = errors.New("peer not found")

// errDialogFound останавливает обход диалогов.
var errDialogFound = errors.New("dialog found")

// channelIDPrefix — префикс ID каналов и супергрупп в формате Bot API.
const channelIDPrefix = "-100"

// peerRef — нормализованная ссылка на чат или пользователя.
type peerRef struct {
	self      bool
	phone     string
	username  string
	userID    int64
	chatID    int64
	channelID int64
}

// numeric сообщает, что чат задан числовым ID и access hash нужно искать в диалогах.
func (r peerRef) numeric() bool {
	return r.userID != 0 || r.channelID != 0
}

// parsePeerRef принимает "me", "+79990000000", "@name", "https://t.me/name", "name"
// и числовые ID в формате Bot API: -1001234567890 (канал), -123456 (группа), 123456 (пользователь).
func parsePeerRef(raw string) (peerRef, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "me", "self":
		return peerRef{self: true}, nil
	}
	if strings.HasPrefix(s, "+") {
		return peerRef{phone: strings.TrimPrefix(s, "+")}, nil
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return parseNumericRef(raw, s, id)
	}
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimPrefix(s, "@")
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return peerRef{}, fmt.Errorf("%w: пустой идентификатор %q", ErrPeerNotFound, raw)
	}
	return peerRef{username: s}, nil
}

func parseNumericRef(raw, s string, id int64) (peerRef, error) {
	switch {
	case id > 0:
		return peerRef{userID: id}, nil
	case strings.HasPrefix(s, channelIDPrefix):
		channelID, err := strconv.ParseInt(strings.TrimPrefix(s, channelIDPrefix), 10, 64)
		if err != nil || channelID <= 0 {
			return peerRef{}, fmt.Errorf("%w: некорректный ID канала %q", ErrPeerNotFound, raw)
		}
		return peerRef{channelID: channelID}, nil
	case id < 0:
		return peerRef{chatID: -id}, nil
	}
	return peerRef{}, fmt.Errorf("%w: нулевой ID %q", ErrPeerNotFound, raw)
}

// PeerResolver разрешает идентификаторы из конфигурации в InputPeer и кэширует результат.
type PeerResolver struct {
	api *tg.Client

	mu    sync.Mutex
	cache map[string]tg.InputPeerClass
}

func NewPeerResolver(api *tg.Client) *PeerResolver {
	return &PeerResolver{api: api, cache: make(map[string]tg.InputPeerClass)}
}

// Resolve возвращает InputPeer для чата или пользователя.
func (r *PeerResolver) Resolve(ctx context.Context, id string) (tg.InputPeerClass, error) {
	r.mu.Lock()
	if p, ok := r.cache[id]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	ref, err := parsePeerRef(id)
	if err != nil {
		return nil, err
	}

	var peer tg.InputPeerClass
	switch {
	case ref.self:
		peer = &tg.InputPeerSelf{}
	case ref.chatID != 0:
		peer = &tg.InputPeerChat{ChatID: ref.chatID}
	case ref.numeric():
		if peer, err = r.findInDialogs(ctx, ref); err != nil {
			return nil, fmt.Errorf("resolve id %s: %w", id, err)
		}
	case ref.phone != "":
		resolved, err := r.api.ContactsResolvePhone(ctx, ref.phone)
		if err != nil {
			return nil, fmt.Errorf("resolve phone %s: %w", id, err)
		}
		if peer, err = inputPeerFromResolved(resolved); err != nil {
			return nil, err
		}
	default:
		resolved, err := r.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: ref.username})
		if err != nil {
			return nil, fmt.Errorf("resolve username %s: %w", id, err)
		}
		if peer, err = inputPeerFromResolved(resolved); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.cache[id] = peer
	r.mu.Unlock()
	return peer, nil
}

// ResolveUser возвращает InputUser. Нужен для звонков.
func (r *PeerResolver) ResolveUser(ctx context.Context, id string) (tg.InputUserClass, error) {
	peer, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	switch p := peer.(type) {
	case *tg.InputPeerSelf:
		return &tg.InputUserSelf{}, nil
	case *tg.InputPeerUser:
		return &tg.InputUser{UserID: p.UserID, AccessHash: p.AccessHash}, nil
	default:
		return nil, fmt.Errorf("%w: %s не является пользователем", ErrPeerNotFound, id)
	}
}

// findInDialogs ищет канал или пользователя среди диалогов аккаунта.
// По одному числовому ID access hash не получить, поэтому аккаунт должен состоять в чате.
func (r *PeerResolver) findInDialogs(ctx context.Context, ref peerRef) (tg.InputPeerClass, error) {
	var found tg.InputPeerClass
	err := query.GetDialogs(r.api).BatchSize(100).ForEach(ctx, func(_ context.Context, elem dialogs.Elem) error {
		if matchDialogPeer(ref, elem.Peer) {
			found = elem.Peer
			return errDialogFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDialogFound) {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: нет среди диалогов аккаунта", ErrPeerNotFound)
	}
	return found, nil
}

// matchDialogPeer сравнивает InputPeer диалога с числовой ссылкой.
func matchDialogPeer(ref peerRef, p tg.InputPeerClass) bool {
	switch v := p.(type) {
	case *tg.InputPeerChannel:
		return ref.channelID != 0 && v.ChannelID == ref.channelID
	case *tg.InputPeerUser:
		return ref.userID != 0 && v.UserID == ref.userID
	}
	return false
}

// Forget удаляет идентификатор из кэша, например после CHANNEL_INVALID.
func (r *PeerResolver) Forget(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// inputPeerFromResolved находит в ответе contacts.resolve* сущность с access hash.
func inputPeerFromResolved(res *tg.ContactsResolvedPeer) (tg.InputPeerClass, error) {
	switch p := res.Peer.(type) {
	case *tg.PeerUser:
		for _, u := range res.Users {
			if user, ok := u.(*tg.User); ok && user.ID == p.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
			}
		}
	case *tg.PeerChannel:
		for _, c := range res.Chats {
			if ch, ok := c.(*tg.Channel); ok && ch.ID == p.ChannelID {
				return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
			}
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, nil
	}
	return nil, ErrPeerNotFound
}
