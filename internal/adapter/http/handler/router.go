package handler

import (
	"net/http"
	"time"

	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc ports.WalletService
	AccessSvc ports.AccessService
	QRSvc     ports.QRService
	EFTSvc    ports.EFTService
	LedgerSvc ports.LedgerService

	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore     // nil = webhook delivery IDs are not replay-checked
	RateLimiter    ports.RateLimiter    // nil = rate limiting disabled
	AuditSvc       ports.AuditService   // nil = audit logging disabled
	Events         ports.EventPublisher // nil = events dropped
	HealthCheckers []ports.HealthChecker
	Metrics        http.Handler // nil = no /metrics endpoint

	WebhookSecret  string
	WebhookMaxSkew time.Duration
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	// --- Bank callbacks (HMAC-signed) ---
	webhookHandler := NewWebhookHandler(deps.EFTSvc, deps.Events, deps.Logger)
	r.POST("/eft/webhook",
		rl("webhook"),
		middleware.WebhookSignature(deps.WebhookSecret, deps.SigSvc, deps.NonceStore, deps.WebhookMaxSkew, deps.Logger),
		webhookHandler.Handle,
	)

	// --- JWT-authenticated API ---
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger), rl("api"))
	admin := middleware.RequireAdmin()

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.Events)
	wallets := v1.Group("/wallets")
	{
		wallets.POST("", rl("wallet_write"), walletHandler.CreateOrGet)
		wallets.GET("/:id", walletHandler.Get)
		wallets.POST("/:id/debit", rl("wallet_write"), walletHandler.Debit)
		wallets.POST("/:id/credit", rl("wallet_write"), walletHandler.Credit)
		wallets.PUT("/:id/status", admin, walletHandler.SetStatus)
	}

	accessHandler := NewAccessHandler(deps.AccessSvc, deps.Events)
	access := v1.Group("/access")
	{
		access.POST("/grants", admin, accessHandler.Grant)
		access.POST("/revoke", admin, accessHandler.Revoke)
		access.POST("/suspend", admin, accessHandler.Suspend)
		access.GET("/check", accessHandler.Check)
		access.GET("/grants", accessHandler.List)
	}

	qrHandler := NewQRHandler(deps.QRSvc, deps.Events)
	qr := v1.Group("/qr")
	{
		qr.POST("", rl("qr_create"), qrHandler.Create)
		qr.GET("/:token", qrHandler.Get)
		qr.POST("/:token/redeem", rl("qr_redeem"), qrHandler.Redeem)
		qr.POST("/id/:id/cancel", qrHandler.Cancel)
	}

	eftHandler := NewEFTHandler(deps.EFTSvc, deps.Events)
	eft := v1.Group("/eft")
	{
		eft.GET("/banks", eftHandler.Banks)
		eft.POST("", rl("eft_initiate"), eftHandler.Initiate)
		eft.GET("/:id", eftHandler.Get)
		eft.POST("/:id/cancel", admin, eftHandler.Cancel)
		eft.POST("/:id/refund", admin, eftHandler.Refund)
	}

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	v1.GET("/transactions", ledgerHandler.List)

	return r
}
