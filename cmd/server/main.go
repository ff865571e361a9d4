package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/billing"
	"github.com/feedbase/feedbase/internal/config"
	api "github.com/feedbase/feedbase/internal/http"
	"github.com/feedbase/feedbase/internal/log"
	"github.com/feedbase/feedbase/internal/metrics"
	"github.com/feedbase/feedbase/internal/oauth"
	"github.com/feedbase/feedbase/internal/queue"
	"github.com/feedbase/feedbase/internal/repo"
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

	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := repo.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure indexes", zap.Error(err))
	}

	rds := repo.NewRedis(cfg.RedisAddr)
	defer rds.Close()
	if err := rds.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, rate limiting degraded", zap.Error(err))
	}

	var pub queue.Publisher = queue.NewNoop()
	if cfg.RabbitURL != "" {
		pub, err = queue.NewRabbit(cfg.RabbitURL, cfg.Exchange)
		if err != nil {
			logger.Fatal("rabbit connect", zap.Error(err))
		}
	}
	defer pub.Close()

	gw := billing.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripePriceID)
	rec := billing.NewReconciler(store, gw, pub, cfg.Exchange, logger)
	google := oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, cfg.OAuthStateSecret)

	h := api.NewHandler(store, gw, rec, pub, google, rds, logger, cfg)
	r := api.NewRouter(h)

	srvErr := make(chan error, 1)
	go func() { srvErr <- r.Run(":" + cfg.Port) }()

	logger.Info("feedbase api listening", zap.String("port", cfg.Port))

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-srvErr:
		logger.Error("server error", zap.Error(err))
	}
}
