package phone

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ErrCircuitOpen возвращается, пока Twilio отключён после серии ошибок.
var ErrCircuitOpen = errors.New("phone calls temporarily disabled")

// callCreator — часть клиента Twilio, которая нужна для звонка.
type callCreator interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

// Caller звонит на обычные телефоны через Twilio и зачитывает короткое сообщение.
// Результат звонка (ответил или нет) не отслеживается.
type Caller struct {
	api     callCreator
	from    string
	breaker *gobreaker.CircuitBreaker[*twilioApi.ApiV2010Call]
}

// NewCaller создаёт клиент Twilio с учётными данными аккаунта.
func NewCaller(accountSID, authToken, from string) *Caller {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newCaller(client.Api, from)
}

func newCaller(api callCreator, from string) *Caller {
	settings := gobreaker.Settings{
		Name:        "twilio",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Msgf("[PHONE] %s: %s -> %s", name, from, to)
		},
	}
	return &Caller{
		api:     api,
		from:    from,
		breaker: gobreaker.NewCircuitBreaker[*twilioApi.ApiV2010Call](settings),
	}
}

// Call размещает звонок и возвращает true, если Twilio принял его.
func (c *Caller) Call(ctx context.Context, phoneNumber, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	params := &twilioApi.CreateCallParams{}
	params.SetTo(phoneNumber)
	params.SetFrom(c.from)
	params.SetTwiml(Twiml(message))

	call, err := c.breaker.Execute(func() (*twilioApi.ApiV2010Call, error) {
		return c.api.CreateCall(params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, ErrCircuitOpen
	}
	if err != nil {
		return false, fmt.Errorf("twilio create call %s: %w", phoneNumber, err)
	}
	if call != nil && call.Sid != nil {
		log.Info().Msgf("[PHONE] звонок %s размещён, sid=%s", phoneNumber, *call.Sid)
	}
	return true, nil
}

// Twiml оборачивает текст в инструкцию Say.
func Twiml(message string) string {
	return "<Response><Say>" + html.EscapeString(message) + "</Say></Response>"
}
