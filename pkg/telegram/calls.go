package telegram

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"gifts_radar/models"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"
)

const dhKeySize = 256

// callProtocol — параметры, с которыми клиенты Telegram принимают входящий звонок.
var callProtocol = tg.PhoneCallProtocol{
	UDPP2P:          true,
	UDPReflector:    true,
	MinLayer:        92,
	MaxLayer:        92,
	LibraryVersions: []string{"3.0.0"},
}

// InAppCaller звонит пользователям внутри Telegram. Разговор не устанавливается:
// звонок нужен только чтобы телефон получателя зазвонил.
type InAppCaller struct {
	api   *tg.Client
	peers *PeerResolver
}

func NewInAppCaller(api *tg.Client, peers *PeerResolver) *InAppCaller {
	return &InAppCaller{api: api, peers: peers}
}

// Call начинает звонок. Live=false означает, что сервер не вернул звонок, который можно сбросить.
func (c *InAppCaller) Call(ctx context.Context, recipientID string) (models.CallSession, error) {
	user, err := c.peers.ResolveUser(ctx, recipientID)
	if err != nil {
		return models.CallSession{}, err
	}
	gAHash, err := c.gAHash(ctx)
	if err != nil {
		return models.CallSession{}, err
	}
	randomID, err := rand.Int(rand.Reader, big.NewInt(1<<31-1))
	if err != nil {
		return models.CallSession{}, err
	}
	res, err := c.api.PhoneRequestCall(ctx, &tg.PhoneRequestCallRequest{
		UserID:   user,
		RandomID: int(randomID.Int64()),
		GAHash:   gAHash,
		Protocol: callProtocol,
	})
	if err != nil {
		return models.CallSession{}, fmt.Errorf("phone.requestCall %s: %w", recipientID, err)
	}
	return sessionFromCall(res.PhoneCall), nil
}

// Terminate сбрасывает звонок. true означает, что получатель уже завершил его сам.
func (c *InAppCaller) Terminate(ctx context.Context, s models.CallSession) (bool, error) {
	upd, err := c.api.PhoneDiscardCall(ctx, &tg.PhoneDiscardCallRequest{
		Peer:     tg.InputPhoneCall{ID: s.ID, AccessHash: s.AccessHash},
		Duration: 1,
		Reason:   &tg.PhoneCallDiscardReasonHangup{},
	})
	if err != nil {
		return false, fmt.Errorf("phone.discardCall %d: %w", s.ID, err)
	}
	return !hasPhoneCallUpdate(upd), nil
}

// gAHash считает sha256(g^a mod p) по актуальным параметрам Диффи-Хеллмана.
func (c *InAppCaller) gAHash(ctx context.Context) ([]byte, error) {
	res, err := c.api.MessagesGetDhConfig(ctx, &tg.MessagesGetDhConfigRequest{Version: 0, RandomLength: dhKeySize})
	if err != nil {
		return nil, fmt.Errorf("messages.getDhConfig: %w", err)
	}
	cfg, ok := res.(*tg.MessagesDhConfig)
	if !ok {
		return nil, fmt.Errorf("messages.getDhConfig: неожиданный ответ %T", res)
	}
	p := new(big.Int).SetBytes(cfg.P)
	a, err := randomExponent(p)
	if err != nil {
		return nil, err
	}
	return computeGAHash(big.NewInt(int64(cfg.G)), p, a), nil
}

// randomExponent выбирает a из (1, p-1).
func randomExponent(p *big.Int) (*big.Int, error) {
	limit := new(big.Int).Sub(p, big.NewInt(3))
	if limit.Sign() <= 0 {
		return nil, fmt.Errorf("некорректный модуль DH")
	}
	a, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, err
	}
	return a.Add(a, big.NewInt(2)), nil
}

func computeGAHash(g, p, a *big.Int) []byte {
	gA := new(big.Int).Exp(g, a, p)
	buf := make([]byte, dhKeySize)
	gA.FillBytes(buf)
	sum := sha256.Sum256(buf)
	return sum[:]
}

func sessionFromCall(call tg.PhoneCallClass) models.CallSession {
	s := models.CallSession{ID: call.GetID()}
	if withHash, ok := call.(interface{ GetAccessHash() int64 }); ok {
		s.AccessHash = withHash.GetAccessHash()
		s.Live = true
	} else {
		log.Debug().Msgf("[TELEGRAM] звонок %d вернулся как %T", s.ID, call)
	}
	return s
}

// hasPhoneCallUpdate проверяет, прислал ли сервер обновление о звонке в ответ на сброс.
// Если звонок уже завершён получателем, обновления нет.
func hasPhoneCallUpdate(upd tg.UpdatesClass) bool {
	var updates []tg.UpdateClass
	switch u := upd.(type) {
	case *tg.Updates:
		updates = u.Updates
	case *tg.UpdatesCombined:
		updates = u.Updates
	case *tg.UpdateShort:
		updates = []tg.UpdateClass{u.Update}
	}
	for _, update := range updates {
		if _, ok := update.(*tg.UpdatePhoneCall); ok {
			return true
		}
	}
	return false
}
