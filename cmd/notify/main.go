package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/config"
	"github.com/feedbase/feedbase/internal/log"
	"github.com/feedbase/feedbase/internal/notify"
	"github.com/feedbase/feedbase/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	logger, err := log.Init(!cfg.IsDevelopment())
	if err != nil {
		stdlog.Fatalf("log init: %v", err)
	}
	defer log.Sync()

	if cfg.RabbitURL == "" {
		logger.Fatal("RABBIT_URL is required for the notify worker")
	}

	cons, err := notify.NewConsumer(cfg.RabbitURL, cfg.Exchange, "feedbase.notify",
		[]string{queue.KeyMagicLinkIssued, queue.KeyPremiumActivated})
	if err != nil {
		logger.Fatal("rabbit connect", zap.Error(err))
	}
	defer cons.Close()

	mailer := &notify.Mailer{Sender: notify.LogSender{Log: logger}, Log: logger}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("notify worker consuming")
	if err := cons.Consume(ctx, 4, mailer.Handle); err != nil {
		logger.Error("consume", zap.Error(err))
	}
}
