package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"
)

// terminalAuth запрашивает недостающие данные для входа в терминале.
// Используется только при первом запуске, пока сессия не сохранена в БД.
type terminalAuth struct {
	phone string
	in    *bufio.Reader
	out   io.Writer
}

var _ auth.UserAuthenticator = (*terminalAuth)(nil)

func (a *terminalAuth) ask(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *terminalAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.ask("Введите номер телефона: ")
}

func (a *terminalAuth) Password(_ context.Context) (string, error) {
	return a.ask("Введите пароль 2FA: ")
}

func (a *terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.ask("Введите код из Telegram: ")
}

func (a *terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("регистрация новых аккаунтов не поддерживается")
}

// Authenticate авторизует клиент, если в сессии ещё нет ключа.
// Вызывать внутри client.Run.
func Authenticate(ctx context.Context, client *telegram.Client, phone string, in io.Reader, out io.Writer) error {
	flow := auth.NewFlow(&terminalAuth{phone: phone, in: bufio.NewReader(in), out: out}, auth.SendCodeOptions{})
	if err := client.Auth().IfNecessary(ctx, flow); err != nil {
		return fmt.Errorf("авторизация: %w", err)
	}
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("статус авторизации: %w", err)
	}
	if !status.Authorized {
		return errors.New("аккаунт не авторизован")
	}
	if u := status.User; u != nil {
		log.Info().Msgf("[TELEGRAM] авторизован как %s (id=%d)", u.Username, u.ID)
	}
	return nil
}
