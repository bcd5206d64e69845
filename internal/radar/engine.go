package radar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gifts_radar/internal/alerts"
	"gifts_radar/internal/common"
	"gifts_radar/internal/metrics"
	"gifts_radar/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// catalogHash=0 заставляет Telegram всегда возвращать полный каталог.
const catalogHash = 0

// GiftCatalog — источник каталога подарков.
type GiftCatalog interface {
	FetchGifts(ctx context.Context, hash int) ([]models.Gift, error)
}

// NotificationStore хранит пары сообщений по ключу (gift_id, chat_id).
type NotificationStore interface {
	FindNotification(ctx context.Context, giftID models.GiftID, chatID string) (*models.StarGiftNotification, error)
	UpsertNotification(ctx context.Context, gift models.Gift, n models.StarGiftNotification) (*models.StarGiftNotification, error)
	ListNotifications(ctx context.Context) ([]models.StarGiftNotification, error)
}

// MessageChannel отправляет и правит сообщения в чатах.
type MessageChannel interface {
	SendMedia(ctx context.Context, chatID string, sticker models.StickerRef, silent bool) (int, error)
	SendText(ctx context.Context, chatID string, html string, silent bool) (int, error)
	EditText(ctx context.Context, chatID string, messageID int, html string) (models.EditResult, error)
	DeleteMessages(ctx context.Context, chatID string, messageIDs []int)
}

// Alerter оповещает людей о новом подарке.
type Alerter interface {
	Dispatch(ctx context.Context, recipients []models.CallRecipient) []alerts.Outcome
}

// GiftEventPublisher отправляет события о новых подарках во внешние системы.
type GiftEventPublisher interface {
	PublishNewGifts(ctx context.Context, passID string, gifts []models.Gift) error
}

// SosRecorder сохраняет критичные события.
type SosRecorder interface {
	SaveSos(ctx context.Context, source, msg string) error
}

// Config — параметры цикла сверки.
type Config struct {
	ChatIDs    []string
	Interval   time.Duration
	Recipients []models.CallRecipient
}

// Deps — внешние зависимости движка. Alerter, Events, Sos и Metrics необязательны.
type Deps struct {
	Catalog  GiftCatalog
	Store    NotificationStore
	Messages MessageChannel
	Alerter  Alerter
	Events   GiftEventPublisher
	Sos      SosRecorder
	Metrics  *metrics.Metrics
	Sleep    common.SleepFunc
}

// ChatSummary — итог сверки одного чата за проход.
type ChatSummary struct {
	Created   int `json:"created"`
	Edited    int `json:"edited"`
	Recreated int `json:"recreated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// PassStatus — снимок последнего прохода для страницы статуса.
type PassStatus struct {
	ID         string                 `json:"id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Gifts      int                    `json:"gifts"`
	NewGifts   []models.GiftID        `json:"new_gifts"`
	Chats      map[string]ChatSummary `json:"chats"`
	Alerts     []alerts.Outcome       `json:"alerts,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Engine опрашивает каталог и приводит сообщения в каждом чате к актуальному виду.
type Engine struct {
	cfg      Config
	catalog  GiftCatalog
	store    NotificationStore
	messages MessageChannel
	alerter  Alerter
	events   GiftEventPublisher
	sos      SosRecorder
	metrics  *metrics.Metrics
	sleep    common.SleepFunc

	mu     sync.RWMutex
	last   PassStatus
	passes int
}

func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("не указан ни один чат")
	}
	if deps.Catalog == nil || deps.Store == nil || deps.Messages == nil {
		return nil, errors.New("catalog, store и messages обязательны")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if deps.Sleep == nil {
		deps.Sleep = common.Sleep
	}
	return &Engine{
		cfg:      cfg,
		catalog:  deps.Catalog,
		store:    deps.Store,
		messages: deps.Messages,
		alerter:  deps.Alerter,
		events:   deps.Events,
		sos:      deps.Sos,
		metrics:  deps.Metrics,
		sleep:    deps.Sleep,
	}, nil
}

// Run выполняет проходы до отмены контекста. Ошибка каталога или хранилища
// завершает цикл: процесс перезапускается супервизором и продолжает с сохранённого состояния.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Msgf("[RADAR] старт: чатов %d, интервал %s", len(e.cfg.ChatIDs), e.cfg.Interval)
	for {
		if _, err := e.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.saveSos(ctx, fmt.Sprintf("цикл остановлен: %v", err))
			return err
		}
		log.Debug().Msgf("[RADAR] ждём %s до следующей проверки", e.cfg.Interval)
		if err := e.sleep(ctx, e.cfg.Interval); err != nil {
			return err
		}
	}
}

// RunOnce выполняет один проход: каталог, сверка всех чатов и оповещение о новых подарках.
func (e *Engine) RunOnce(ctx context.Context) (PassStatus, error) {
	st := PassStatus{ID: uuid.NewString(), StartedAt: time.Now(), Chats: make(map[string]ChatSummary)}
	logger := log.With().Str("pass", st.ID).Logger()

	err := e.pass(ctx, logger, &st)
	st.FinishedAt = time.Now()
	if err != nil {
		st.Error = err.Error()
		logger.Error().Msgf("[RADAR] проход завершился ошибкой: %v", err)
	}
	if e.metrics != nil {
		e.metrics.Passes.WithLabelValues(metrics.Outcome(err)).Inc()
		e.metrics.PassDuration.Observe(st.FinishedAt.Sub(st.StartedAt).Seconds())
	}

	e.mu.Lock()
	e.last = st
	e.passes++
	e.mu.Unlock()
	return st, err
}

func (e *Engine) pass(ctx context.Context, logger zerolog.Logger, st *PassStatus) error {
	logger.Info().Msg("[RADAR] проверяем каталог подарков")
	gifts, err := e.catalog.FetchGifts(ctx, catalogHash)
	if err != nil {
		return fmt.Errorf("каталог подарков: %w", err)
	}
	sort.SliceStable(gifts, func(i, j int) bool { return gifts[i].ID.Less(gifts[j].ID) })
	st.Gifts = len(gifts)
	if e.metrics != nil {
		e.metrics.CatalogSize.Set(float64(len(gifts)))
	}

	records, err := e.store.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("список уведомлений: %w", err)
	}
	fresh := newGifts(gifts, records)
	for _, g := range fresh {
		st.NewGifts = append(st.NewGifts, g.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []alerts.Outcome
	)
	for _, chatID := range e.cfg.ChatIDs {
		wg.Add(1)
		go func(chatID string) {
			defer wg.Done()
			summary := e.reconcileChat(ctx, logger, chatID, gifts)
			mu.Lock()
			st.Chats[chatID] = summary
			mu.Unlock()
		}(chatID)
	}

	if len(fresh) > 0 {
		logger.Info().Msgf("[RADAR] новых подарков: %d, запускаем оповещение", len(fresh))
		if e.metrics != nil {
			e.metrics.NewGifts.Add(float64(len(fresh)))
		}
		if e.alerter != nil && len(e.cfg.Recipients) > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res := e.alerter.Dispatch(ctx, e.cfg.Recipients)
				mu.Lock()
				outcomes = res
				mu.Unlock()
			}()
		}
		if e.events != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := e.events.PublishNewGifts(ctx, st.ID, fresh)
				if err != nil {
					logger.Error().Msgf("[EVENTS] не удалось отправить события: %v", err)
				}
				if e.metrics != nil {
					e.metrics.EventsSent.WithLabelValues(metrics.Outcome(err)).Add(float64(len(fresh)))
				}
			}()
		}
	} else {
		logger.Info().Msg("[RADAR] новых подарков нет")
	}

	wg.Wait()
	st.Alerts = outcomes
	return ctx.Err()
}

// newGifts возвращает подарки, для которых нет ни одной записи ни в одном чате.
func newGifts(gifts []models.Gift, records []models.StarGiftNotification) []models.Gift {
	known := make(map[models.GiftID]struct{}, len(records))
	for _, r := range records {
		known[r.GiftID] = struct{}{}
	}
	var out []models.Gift
	for _, g := range gifts {
		if _, ok := known[g.ID]; !ok {
			out = append(out, g)
		}
	}
	return out
}

// Status возвращает снимок последнего прохода и общее число проходов.
func (e *Engine) Status() (PassStatus, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.last
	chats := make(map[string]ChatSummary, len(st.Chats))
	for k, v := range st.Chats {
		chats[k] = v
	}
	st.Chats = chats
	return st, e.passes
}

func (e *Engine) saveSos(ctx context.Context, msg string) {
	if e.sos == nil {
		return
	}
	if err := e.sos.SaveSos(context.WithoutCancel(ctx), "radar", msg); err != nil {
		log.Error().Msgf("[RADAR] ошибка записи в Sos: %v", err)
	}
}
