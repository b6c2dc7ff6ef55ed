package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logx"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logx.New(cfg.LogLevel, cfg.ServiceName+"-mailer")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group := getenv("MAILER_GROUP", "storefront-mailer")
	workers, err := strconv.Atoi(getenv("MAILER_WORKERS", "2"))
	if err != nil {
		workers = 1
	}

	h := &notify.MailHandler{
		Sender: &notify.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		},
		Log: logger.Named("mailer"),
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, notify.TopicOrderEvents, workers, logger)

	logger.Info("mailer started", zap.String("group", group), zap.Int("workers", workers))
	if err := cons.Start(ctx, h.Handle); err != nil {
		logger.Fatal("consumer exited", zap.Error(err))
	}
	logger.Info("mailer stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
