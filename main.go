package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gifts_radar/internal/alerts"
	"gifts_radar/internal/config"
	"gifts_radar/internal/logger"
	"gifts_radar/internal/metrics"
	"gifts_radar/internal/radar"
	"gifts_radar/internal/status"
	"gifts_radar/pkg/events"
	"gifts_radar/pkg/phone"
	"gifts_radar/pkg/storage"
	"gifts_radar/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/gotd/td/tg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Msgf("[CONFIG] %v", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Msgf("[RADAR] %v", err)
	}
	log.Info().Msg("[RADAR] остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Инициализация подключения к БД
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, err := telegram.NewClient(cfg.Telegram, db.NewSessionStorage(cfg.Telegram.SessionName))
	if err != nil {
		return err
	}

	var phoneChannel alerts.PhoneChannel
	if cfg.PhoneCallsEnabled() {
		phoneChannel = phone.NewCaller(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
	} else {
		log.Info().Msg("[PHONE] звонки на телефон не настроены")
	}

	var publisher radar.GiftEventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer p.Close()
		publisher = p
	}

	return client.Run(ctx, func(ctx context.Context) error {
		if err := telegram.Authenticate(ctx, client, cfg.Telegram.Phone, os.Stdin, os.Stdout); err != nil {
			return err
		}
		api := tg.NewClient(client)
		peers := telegram.NewPeerResolver(api)
		limiter := rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessagesBurst)

		dispatcher := alerts.NewDispatcher(telegram.NewInAppCaller(api, peers), phoneChannel, alerts.Options{
			DeclineDelay: cfg.CallDeclineDelay,
			RetryBackoff: cfg.CallRetryBackoff,
			Sos:          db,
			Metrics:      m,
		})
		engine, err := radar.NewEngine(radar.Config{
			ChatIDs:    cfg.ChatIDs,
			Interval:   cfg.UpdateInterval,
			Recipients: cfg.CallRecipients,
		}, radar.Deps{
			Catalog:  telegram.NewCatalog(api),
			Store:    db,
			Messages: telegram.NewMessenger(api, peers, telegram.NewMediaLoader(api), limiter),
			Alerter:  dispatcher,
			Events:   publisher,
			Sos:      db,
			Metrics:  m,
		})
		if err != nil {
			return err
		}

		srv := startStatusServer(cfg, status.NewHandler(engine, db), reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Msgf("[STATUS] остановка сервера: %v", err)
			}
		}()

		return engine.Run(ctx)
	})
}

func startStatusServer(cfg *config.Config, h *status.Handler, reg *prometheus.Registry) *http.Server {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           status.SetupRouter(h, cfg.StatusToken, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Msgf("[STATUS] сервер на порту %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Msgf("[STATUS] сервер остановлен с ошибкой: %v", err)
		}
	}()
	return srv
}
