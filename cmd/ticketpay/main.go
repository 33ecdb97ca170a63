// Package main запускает HTTP-сервер сервиса ticketpay.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ticketpay/internal/claim"
	"github.com/mmeshcher/ticketpay/internal/config"
	"github.com/mmeshcher/ticketpay/internal/handler"
	"github.com/mmeshcher/ticketpay/internal/middleware"
	"github.com/mmeshcher/ticketpay/internal/processor"
	"github.com/mmeshcher/ticketpay/internal/repository"
	"github.com/mmeshcher/ticketpay/internal/service"
	"github.com/mmeshcher/ticketpay/internal/webhook"
)

const processorRetryMax = 2

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
	defer repo.Close()

	if cfg.WebhookSecret == "" {
		sugar.Warn("webhook secret is not configured, all webhook deliveries will be rejected")
	}
	if cfg.AuthJWTSecret == "" {
		sugar.Warn("auth secret is not configured, all API requests will be rejected")
	}

	processorClient := processor.NewClient(cfg.ProcessorAPIURL, cfg.ProcessorSecretKey, cfg.ExternalTimeout, processorRetryMax, logger)
	claimClient := claim.NewClient(cfg.ClaimFunctionURL, cfg.ExternalTimeout)

	services := handler.Services{
		Verifier:   webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance),
		Reconciler: service.NewReconciler(repo, logger),
		Balances:   service.NewBalanceService(repo, processorClient, logger, cfg.DefaultCurrency, cfg.ExternalTimeout),
		Offers:     service.NewOfferService(repo, repo, claimClient, logger),
		Health:     repo,
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthJWTSecret)
	h := handler.NewHandler(services, logger, authMiddleware, cfg.CORSAllowedOrigin)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting ticketpay server", "addr", cfg.RunAddress)
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
