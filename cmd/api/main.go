package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jvc-treasury/config"
	httpHandler "jvc-treasury/internal/adapter/http/handler"
	"jvc-treasury/internal/adapter/rail"
	pgStorage "jvc-treasury/internal/adapter/storage/postgres"
	redisStorage "jvc-treasury/internal/adapter/storage/redis"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"
	"jvc-treasury/internal/service"
	"jvc-treasury/pkg/logger"

	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting JVC Treasury")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	treasuryRepo := pgStorage.NewTreasuryRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	depositRepo := pgStorage.NewDepositRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	adminRepo := pgStorage.NewAdminRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	reconcileLock := redisStorage.NewRunLock(rdb, "reconcile")

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Rail adapters
	cardProcessor := rail.NewProcessorClient(cfg.Rails.Card.BaseURL, cfg.Rails.Card.APIKey, cfg.Rails.Card.Timeout)
	payidProcessor := rail.NewProcessorClient(cfg.Rails.PayID.BaseURL, cfg.Rails.PayID.APIKey, cfg.Rails.PayID.Timeout)
	bankProcessor := rail.NewProcessorClient(cfg.Rails.Bank.BaseURL, cfg.Rails.Bank.APIKey, cfg.Rails.Bank.Timeout)
	chainClient := rail.NewChainServiceClient(cfg.Rails.Chain.BaseURL, cfg.Rails.Chain.APIKey, cfg.Rails.Chain.Timeout)

	cardRail := rail.NewCardRail(cardProcessor)
	bankRail := rail.NewBankRail(cfg.Rails.Bank, bankProcessor)
	payidRail := rail.NewPayIDRail(payidProcessor, cfg.Rails.PayID.Alias)
	chainRail := rail.NewChainRail(chainClient, cfg.Rails.Chain.IssuerAddress, cfg.Rails.Chain.RequiredConfirmations)

	// Initialize business services
	ledgerSvc := service.NewLedgerService(transactor, walletRepo, treasuryRepo, ledgerRepo, idempotencyCache, log)
	auditSvc := service.NewAuditService(auditRepo, log)
	mintBurnSvc := service.NewMintBurnService(ledgerSvc, auditSvc, log)
	verifySvc := service.NewVerificationService(walletRepo, log)
	transferSvc := service.NewTransferService(ledgerSvc, walletRepo, chainClient, log)
	authSvc := service.NewAuthService(adminRepo, hashSvc, tokenSvc, auditSvc)

	pegRate := cfg.Peg.RateDecimal()
	depositSvc := service.NewDepositService(
		transactor, depositRepo, treasuryRepo, ledgerSvc,
		[]ports.RailAdapter{cardRail, bankRail, payidRail, chainRail},
		pegRate, cfg.Rails.DepositTTL, log,
	)
	withdrawalSvc := service.NewWithdrawalService(
		transactor, withdrawalRepo, treasuryRepo, ledgerSvc,
		pegRate, cfg.Peg.WithdrawalFeeBps, log,
	)
	reconcileSvc := service.NewReconciliationService(
		walletRepo, treasuryRepo,
		[]ports.RailBalanceReporter{cardRail, bankRail, payidRail, chainRail},
		reconcileLock, cfg.Reconcile.ToleranceDecimal(), cfg.Reconcile.LockTTL, log,
	)

	// Health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background workers
	go service.RunReconciliationLoop(ctx, reconcileSvc, cfg.Reconcile.Interval, log)

	watcher := rail.NewChainWatcher(
		chainClient, depositRepo, depositSvc,
		cfg.Rails.Chain.IssuerAddress, cfg.Rails.Chain.RequiredConfirmations,
		cfg.Rails.Chain.PollInterval, log,
	)
	go watcher.Run(ctx)

	go runDepositExpiry(ctx, depositSvc, cfg.Rails.DepositTTL, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		TransferSvc:    transferSvc,
		VerifySvc:      verifySvc,
		DepositSvc:     depositSvc,
		WithdrawalSvc:  withdrawalSvc,
		MintBurnSvc:    mintBurnSvc,
		ReconcileSvc:   reconcileSvc,
		WalletRepo:     walletRepo,
		LedgerRepo:     ledgerRepo,
		DepositRepo:    depositRepo,
		WithdrawalRepo: withdrawalRepo,
		TreasuryRepo:   treasuryRepo,
		TokenSvc:       tokenSvc,
		SigSvc:         sigSvc,
		WebhookSecrets: map[domain.Rail]string{
			domain.RailCard:    cfg.Rails.Card.WebhookSecret,
			domain.RailBank:    cfg.Rails.Bank.WebhookSecret,
			domain.RailInstant: cfg.Rails.PayID.WebhookSecret,
		},
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}

// runDepositExpiry periodically fails pending deposits that outlived their
// TTL. The sweep runs at a tenth of the TTL, floored at one minute.
func runDepositExpiry(ctx context.Context, depositSvc ports.DepositService, ttl time.Duration, log zerolog.Logger) {
	interval := ttl / 10
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := depositSvc.ExpireStale(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Deposit expiry sweep failed")
				continue
			}
			if expired > 0 {
				log.Info().Int("expired", expired).Msg("Expired stale deposits")
			}
		}
	}
}
