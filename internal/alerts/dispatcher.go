package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gifts_radar/internal/common"
	"gifts_radar/internal/metrics"
	"gifts_radar/models"

	"github.com/rs/zerolog/log"
)

// PhoneMessage зачитывается получателю при звонке на обычный телефон.
const PhoneMessage = "New Telegram Gifts Notification."

const (
	defaultDeclineDelay = 30 * time.Second
	defaultRetryBackoff = 3 * time.Second
	// hangupTimeout ограничивает сброс звонка после отмены основного контекста.
	hangupTimeout = 5 * time.Second
)

// InAppChannel звонит внутри Telegram.
type InAppChannel interface {
	Call(ctx context.Context, recipientID string) (models.CallSession, error)
	// Terminate возвращает true, если получатель уже сбросил звонок сам.
	Terminate(ctx context.Context, s models.CallSession) (bool, error)
}

// PhoneChannel звонит на обычный телефон. Ответ не отслеживается.
type PhoneChannel interface {
	Call(ctx context.Context, phoneNumber, message string) (bool, error)
}

// SosRecorder сохраняет критичные события для ручного разбора.
type SosRecorder interface {
	SaveSos(ctx context.Context, source, msg string) error
}

// Outcome — итог оповещения одного получателя.
type Outcome struct {
	Recipient     models.CallRecipient
	InAppAttempts int
	Attention     bool
	PhoneCalled   bool
}

// Options — необязательные параметры диспетчера. Нулевые длительности заменяются значениями по умолчанию.
type Options struct {
	DeclineDelay time.Duration
	RetryBackoff time.Duration
	Sos          SosRecorder
	Metrics      *metrics.Metrics
	Sleep        common.SleepFunc
}

// Dispatcher будит получателей: два звонка в Telegram, затем звонок на телефон.
type Dispatcher struct {
	inApp        InAppChannel
	phone        PhoneChannel
	sos          SosRecorder
	metrics      *metrics.Metrics
	declineDelay time.Duration
	retryBackoff time.Duration
	sleep        common.SleepFunc
}

// NewDispatcher создаёт диспетчер. phone равен nil, если звонки через Twilio не настроены.
func NewDispatcher(inApp InAppChannel, phone PhoneChannel, opts Options) *Dispatcher {
	d := &Dispatcher{
		inApp:        inApp,
		phone:        phone,
		sos:          opts.Sos,
		metrics:      opts.Metrics,
		declineDelay: opts.DeclineDelay,
		retryBackoff: opts.RetryBackoff,
		sleep:        opts.Sleep,
	}
	if d.declineDelay <= 0 {
		d.declineDelay = defaultDeclineDelay
	}
	if d.retryBackoff <= 0 {
		d.retryBackoff = defaultRetryBackoff
	}
	if d.sleep == nil {
		d.sleep = common.Sleep
	}
	return d
}

// Dispatch оповещает всех получателей параллельно и ждёт завершения.
// Ошибки отдельных получателей не возвращаются, только логируются.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []models.CallRecipient) []Outcome {
	outcomes := make([]Outcome, len(recipients))
	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r models.CallRecipient) {
			defer wg.Done()
			outcomes[i] = d.alert(ctx, r)
		}(i, r)
	}
	wg.Wait()
	return outcomes
}

// alert проводит одного получателя по цепочке каналов до первого признака внимания.
func (d *Dispatcher) alert(ctx context.Context, r models.CallRecipient) Outcome {
	out := Outcome{Recipient: r}

	if r.TelegramID != "" && d.inApp != nil {
		out.InAppAttempts++
		out.Attention = d.callInApp(ctx, r.TelegramID)
		if !out.Attention && d.sleep(ctx, d.retryBackoff) == nil {
			out.InAppAttempts++
			out.Attention = d.callInApp(ctx, r.TelegramID)
		}
	}
	if out.Attention {
		return out
	}

	if r.PhoneNumber != "" && d.phone != nil && ctx.Err() == nil {
		placed, err := d.phone.Call(ctx, r.PhoneNumber, PhoneMessage)
		switch {
		case err != nil:
			log.Error().Msgf("[ALERTS] звонок на %s не размещён: %v", r.PhoneNumber, err)
			d.count("phone", "error")
		case placed:
			log.Info().Msgf("[ALERTS] звонок на %s размещён", r.PhoneNumber)
			d.count("phone", "placed")
		default:
			d.count("phone", "rejected")
		}
		out.PhoneCalled = placed
	}

	if !out.PhoneCalled {
		d.saveSos(ctx, fmt.Sprintf("получатель id=%q phone=%q не оповещён: попыток в Telegram %d, звонок не размещён",
			r.TelegramID, r.PhoneNumber, out.InAppAttempts))
	}
	return out
}

// callInApp звонит, ждёт окно на реакцию и сбрасывает звонок.
// true — получатель заметил звонок и сбросил его сам.
func (d *Dispatcher) callInApp(ctx context.Context, recipientID string) bool {
	session, err := d.inApp.Call(ctx, recipientID)
	if err != nil {
		log.Error().Msgf("[ALERTS] ошибка звонка %s: %v", recipientID, err)
		d.count("in_app", "error")
		return false
	}
	if !session.Live {
		log.Warn().Msgf("[ALERTS] звонок %s не начался", recipientID)
		d.count("in_app", "not_started")
		return false
	}

	waitErr := d.sleep(ctx, d.declineDelay)

	hangupCtx := ctx
	if waitErr != nil {
		var cancel context.CancelFunc
		hangupCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), hangupTimeout)
		defer cancel()
	}
	ended, err := d.inApp.Terminate(hangupCtx, session)
	if err != nil {
		log.Error().Msgf("[ALERTS] ошибка сброса звонка %s: %v", recipientID, err)
		d.count("in_app", "error")
		return false
	}
	if waitErr != nil {
		return false
	}
	if ended {
		log.Info().Msgf("[ALERTS] %s отклонил звонок", recipientID)
		d.count("in_app", "attention")
		return true
	}
	log.Info().Msgf("[ALERTS] %s не ответил", recipientID)
	d.count("in_app", "unanswered")
	return false
}

func (d *Dispatcher) count(channel, outcome string) {
	if d.metrics != nil {
		d.metrics.AlertAttempts.WithLabelValues(channel, outcome).Inc()
	}
}

func (d *Dispatcher) saveSos(ctx context.Context, msg string) {
	log.Warn().Msgf("[ALERTS] %s", msg)
	if d.sos == nil {
		return
	}
	if err := d.sos.SaveSos(context.WithoutCancel(ctx), "alerts", msg); err != nil {
		log.Error().Msgf("[ALERTS] ошибка записи в Sos: %v", err)
	}
}
