// cmd/notifier consumes auth events from RabbitMQ and sends the emails.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/lms-auth-service/internal/config"
	"github.com/baechuer/lms-auth-service/internal/contracts"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/mail"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/lms-auth-service/internal/logger"
	"github.com/baechuer/lms-auth-service/internal/notifier"
)

func main() {
	config.LoadDotEnv()
	logger.Init()
	log := logger.Logger.With().Str("component", "notifier_main").Logger()

	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  cfg.SMTPTimeout,
		TLS:      cfg.SMTPTLS,
	}, logger.Logger)

	cons := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL: cfg.RabbitURL,
		Topology: rabbitmq.Topology{
			Exchange: cfg.RabbitExchange,
			Queue:    cfg.Queue,
			BindKeys: []string{contracts.NotifierBindKey},
		},
		Prefetch: cfg.Prefetch,
		Workers:  cfg.Workers,
		Tag:      "lms-notifier",
	}, notifier.NewHandler(sender, logger.Logger), logger.Logger)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	log.Info().
		Str("queue", cfg.Queue).
		Int("workers", cfg.Workers).
		Msg("notifier started")

	if err := cons.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("consumer stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Info().Msg("notifier stopped")
}
