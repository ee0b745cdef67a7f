// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lms-enrollment-engine/internal/config"
	"lms-enrollment-engine/internal/domain/ports/adapter"
	payAdapters "lms-enrollment-engine/internal/infra/adapters/payment"
	sigAdapters "lms-enrollment-engine/internal/infra/adapters/signature"
	pg "lms-enrollment-engine/internal/infra/db/postgres"
	httpapi "lms-enrollment-engine/internal/infra/http"
	"lms-enrollment-engine/internal/infra/logging"
	"lms-enrollment-engine/internal/infra/metrics"
	red "lms-enrollment-engine/internal/infra/redis"
	"lms-enrollment-engine/internal/infra/sched"
	"lms-enrollment-engine/internal/infra/web"
	"lms-enrollment-engine/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop providers, relaxed secrets)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logging.Global = *logger
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	maxConns := cfg.Database.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, maxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	productRepo := pg.NewProductRepo(pool)
	enrollmentRepo := pg.NewEnrollmentRepo(pool)
	scheduleRepo := pg.NewScheduleRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	eventRepo := pg.NewEventLogRepo(pool)
	profileStore := pg.NewProfileStore(pool)

	// ---- Provider adapters ----
	var gateway adapter.PaymentGateway
	var signatures adapter.SignatureProvider
	if cfg.Runtime.Dev {
		gateway = payAdapters.NewNoopGateway()
		signatures = sigAdapters.NewNoopProvider()
	} else {
		gateway, err = payAdapters.NewRESTGateway(cfg.Provider.Name, cfg.Provider.BaseURL,
			cfg.Provider.APIKey, time.Duration(cfg.Provider.TimeoutSec)*time.Second)
		if err != nil {
			logger.Fatal().Err(err).Msg("payment gateway")
		}
		signatures, err = sigAdapters.NewRESTProvider(cfg.Signature.BaseURL, cfg.Signature.APIKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("signature provider")
		}
	}

	// ---- Use cases ----
	reconcileUC := usecase.NewReconcileUseCase(
		eventRepo, scheduleRepo, paymentRepo, enrollmentRepo, productRepo,
		profileStore, tm, logger)
	enrollmentUC := usecase.NewEnrollmentUseCase(
		productRepo, enrollmentRepo, scheduleRepo, paymentRepo,
		gateway, signatures, reconcileUC, tm, locker, logger)
	recoveryUC := usecase.NewRecoveryUseCase(eventRepo, scheduleRepo, reconcileUC, logger)

	// ---- Webhook server ----
	webhookSrv := httpapi.NewServer(cfg, reconcileUC, logger)
	go func() {
		if err := webhookSrv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("webhook server stopped")
		}
	}()

	// ---- Admin API ----
	adminSrv := web.NewServer(&cfg.Admin, enrollmentUC, recoveryUC,
		enrollmentRepo, scheduleRepo, paymentRepo, logger)
	go func() {
		if err := adminSrv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	// ---- Event sweeper ----
	sweeper := sched.NewEventSweeper(reconcileUC, eventRepo,
		cfg.Sweeper.Interval, cfg.Sweeper.StaleAfter, cfg.Sweeper.BatchSize, logger)
	go sweeper.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := webhookSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("webhook shutdown")
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin shutdown")
	}
}
