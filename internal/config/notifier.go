package config

import (
	"fmt"
	"time"
)

// NotifierConfig is the subset the notifier worker reads. It does not need
// JWT or database settings.
type NotifierConfig struct {
	Env            string
	RabbitURL      string
	RabbitExchange string
	Queue          string
	Workers        int
	Prefetch       int
	MetricsAddr    string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLS      bool
	SMTPTimeout  time.Duration
}

func LoadNotifier() (*NotifierConfig, error) {
	cfg := &NotifierConfig{
		Env:            getEnv("ENV", "dev"),
		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "lms.auth.events"),
		Queue:          getEnv("NOTIFIER_QUEUE", "lms.notifier.queue"),
		MetricsAddr:    getEnv("NOTIFIER_METRICS_ADDR", ":9091"),
		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:       getEnv("SMTP_FROM", "no-reply@lms.local"),
	}
	if cfg.RabbitURL == "" {
		return nil, fmt.Errorf("missing required env var: RABBIT_URL")
	}
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("missing required env var: SMTP_HOST")
	}

	var err error
	if cfg.Workers, err = getInt("NOTIFIER_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.Prefetch, err = getInt("NOTIFIER_PREFETCH", 16); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.SMTPTLS, err = getBool("SMTP_TLS", true); err != nil {
		return nil, err
	}
	if cfg.SMTPTimeout, err = getDuration("SMTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 || cfg.Prefetch <= 0 {
		return nil, fmt.Errorf("NOTIFIER_WORKERS and NOTIFIER_PREFETCH must be positive")
	}
	return cfg, nil
}
