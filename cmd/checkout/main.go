// Package main запускает HTTP-сервер сервиса оформления заказов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront-checkout/internal/cache"
	"github.com/mmeshcher/storefront-checkout/internal/config"
	"github.com/mmeshcher/storefront-checkout/internal/events"
	"github.com/mmeshcher/storefront-checkout/internal/handler"
	"github.com/mmeshcher/storefront-checkout/internal/media"
	"github.com/mmeshcher/storefront-checkout/internal/middleware"
	"github.com/mmeshcher/storefront-checkout/internal/pricing"
	"github.com/mmeshcher/storefront-checkout/internal/repository"
	"github.com/mmeshcher/storefront-checkout/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	opts := []service.Option{service.WithLogger(logger)}

	if cfg.RedisAddress != "" {
		idem := cache.NewIdempotencyCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddress}), cfg.IdempotencyTTL)
		defer idem.Close()
		opts = append(opts, service.WithCache(idem))
	} else {
		sugar.Warn("REDIS_ADDRESS is not set, idempotency replays are served from the database only")
	}

	if cfg.MediaServiceAddress != "" {
		opts = append(opts, service.WithMedia(media.NewClient(cfg.MediaServiceAddress)))
	} else {
		sugar.Warn("MEDIA_SERVICE_ADDRESS is not set, payment proof ids are not verified")
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := events.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			sugar.Fatalw("rabbitmq initialization error", "error", err.Error())
		}
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
	}

	svc := service.NewService(repo, pricing.Settings{
		Currency:                   cfg.StoreCurrency,
		ShippingFlatCents:          cfg.ShippingFlatCents,
		FreeShippingThresholdCents: cfg.FreeShippingThresholdCents,
	}, opts...)
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, customer tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.AdminEmails)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.StartExpiryAudit(ctx, cfg.VoucherAuditInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting checkout server", "addr", cfg.RunAddress, "currency", cfg.StoreCurrency)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
