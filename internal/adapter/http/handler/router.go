package handler

import (
	"jvc-treasury/internal/adapter/http/middleware"
	redisStore "jvc-treasury/internal/adapter/storage/redis"
	"jvc-treasury/internal/core/domain"
	"jvc-treasury/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TransferSvc    ports.TransferService
	VerifySvc      ports.VerificationService
	DepositSvc     ports.DepositService
	WithdrawalSvc  ports.WithdrawalService
	MintBurnSvc    ports.MintBurnService
	ReconcileSvc   ports.ReconciliationService
	WalletRepo     ports.WalletRepository
	LedgerRepo     ports.LedgerRepository
	DepositRepo    ports.DepositRepository
	WithdrawalRepo ports.WithdrawalRepository
	TreasuryRepo   ports.TreasuryRepository
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	WebhookSecrets map[domain.Rail]string     // per-rail webhook signing secret
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Wallet and transfer routes (internal service API) ---
	walletHandler := NewWalletHandler(deps.WalletRepo, deps.LedgerRepo, deps.VerifySvc, deps.TransferSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.GET("/:principal/balance", rl("wallets"), walletHandler.GetBalance)
		wallets.GET("/:principal/history", rl("wallets"), walletHandler.GetHistory)
		wallets.POST("/verify", rl("wallets"), walletHandler.Verify)
	}
	v1.POST("/transfers", rl("transfers"), walletHandler.Transfer)

	// --- Deposit and withdrawal routes ---
	depositHandler := NewDepositHandler(deps.DepositSvc, deps.DepositRepo)
	deposits := v1.Group("/deposits")
	{
		deposits.POST("", rl("deposits"), depositHandler.Initiate)
		deposits.GET("/:id", rl("deposits"), depositHandler.Get)
	}

	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc, deps.WithdrawalRepo)
	withdrawals := v1.Group("/withdrawals")
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Create)
		withdrawals.GET("/:id", rl("withdrawals"), withdrawalHandler.Get)
	}

	// --- Signed rail webhooks ---
	webhookHandler := NewWebhookHandler(deps.DepositSvc, deps.WithdrawalSvc)
	webhooks := v1.Group("/webhooks")
	{
		for rail, secret := range deps.WebhookSecrets {
			// Routes are registered per rail with that rail's secret, so the
			// path is literal; expose the rail under the "rail" param the
			// handler reads.
			railName := string(rail)
			webhooks.POST("/"+railName,
				rl("webhooks"),
				middleware.WebhookAuth(secret, deps.SigSvc, deps.Logger),
				func(c *gin.Context) {
					c.Params = append(c.Params, gin.Param{Key: "rail", Value: railName})
					webhookHandler.Receive(c)
				},
			)
		}
	}

	// --- Admin routes (JWT-authenticated) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/admin/auth/login", rl("auth_login"), authHandler.Login)

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminHandler := NewAdminHandler(deps.MintBurnSvc, deps.ReconcileSvc, deps.TransferSvc,
		deps.TreasuryRepo, deps.WalletRepo, deps.AuditSvc)
	admin := v1.Group("/admin", jwtAuth)
	{
		admin.POST("/mint", rl("admin_ops"), adminHandler.Mint)
		admin.POST("/burn", rl("admin_ops"), adminHandler.Burn)
		admin.GET("/treasury", rl("admin_ops"), adminHandler.TreasuryStatus)
		admin.POST("/reconcile", rl("admin_ops"), adminHandler.Reconcile)
		admin.POST("/wallets/:principal/freeze", rl("admin_ops"), adminHandler.Freeze)
		admin.POST("/wallets/:principal/unfreeze", rl("admin_ops"), adminHandler.Unfreeze)
		admin.POST("/trustlines", rl("admin_ops"), adminHandler.Trustline)
	}

	return r
}
