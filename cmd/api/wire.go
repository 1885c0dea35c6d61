package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/bank"
	"wallet-ledger/internal/adapter/events"
	"wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/adapter/verification"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/plugin/kprom"
)

// eventSink is an event publisher that must be flushed on shutdown.
type eventSink interface {
	ports.EventPublisher
	Close(ctx context.Context) error
}

// repositories is one storage backend's implementation of every port.
type repositories struct {
	wallets    ports.WalletRepository
	grants     ports.AccessGrantRepository
	codes      ports.QRCodeRepository
	payments   ports.EFTPaymentRepository
	txns       ports.TransactionRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
}

// app is the fully wired engine.
type app struct {
	wallets *service.WalletServiceImpl
	access  *service.AccessRegistry
	qr      *service.QRServiceImpl
	eft     *service.EFTServiceImpl
	ledger  *service.Ledger

	tokens   *service.JWTTokenService
	sig      *service.HMACSignatureService
	audit    ports.AuditService
	nonces   ports.NonceStore
	limiter  ports.RateLimiter
	events   eventSink
	checkers []ports.HealthChecker
	metrics  http.Handler

	closers []func()
}

func buildApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{}

	repos, err := a.openStorage(ctx, cfg, log)
	if err != nil {
		a.close()
		return nil, err
	}

	var dedupe ports.WebhookDedupe
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		dedupe = redisStorage.NewWebhookDedupe(rdb)
		a.nonces = redisStorage.NewNonceStore(rdb)
		a.limiter = redisStorage.NewRateLimitStore(rdb)
		a.checkers = append(a.checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: no rate limiting, webhook replay checks or dedupe cache")
	}

	if cfg.Kafka.Enabled {
		metrics := kprom.NewMetrics("wallet_ledger")
		pub, err := events.NewKafkaPublisher(cfg.Kafka, metrics, logger.Component(log, "events"))
		if err != nil {
			a.close()
			return nil, err
		}
		a.events = pub
		a.metrics = metrics.Handler()
	} else {
		a.events = events.NewLogPublisher(logger.Component(log, "events"))
	}

	policy, err := limitPolicy(cfg.Wallet)
	if err != nil {
		a.close()
		return nil, err
	}
	banks, err := bankConfigs(cfg.Banks)
	if err != nil {
		a.close()
		return nil, err
	}
	flatFee, err := decimal.NewFromString(cfg.QR.FlatFee)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("qr.flat_fee: %w", err)
	}

	verifier, err := verification.NewStaticProvider(policy.DefaultTier, nil)
	if err != nil {
		a.close()
		return nil, err
	}
	enc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init encryption: %w", err)
	}
	a.sig = service.NewHMACSignatureService()
	a.tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	adapters, err := bank.FromConfig(cfg.Banks, cfg.EFT.SubmitTimeout, a.sig, logger.Component(log, "bank"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init bank adapters: %w", err)
	}

	a.ledger = service.NewLedger(repos.txns, cfg.Ledger.DefaultPageSize, cfg.Ledger.MaxPageSize, logger.Component(log, "ledger"))
	a.access = service.NewAccessRegistry(repos.grants, logger.Component(log, "access"))
	store := service.NewWalletStore(repos.wallets, repos.txns, verifier, policy, logger.Component(log, "wallet"))
	a.audit = service.NewAuditService(repos.audit, logger.Component(log, "audit"))

	a.wallets = service.NewWalletService(repos.wallets, store, a.access, a.ledger, repos.transactor, logger.Component(log, "wallet"))
	a.qr = service.NewQRService(repos.codes, repos.wallets, store, a.access, a.ledger, repos.transactor,
		service.QRSettings{
			DefaultTTLMinutes: cfg.QR.DefaultTTLMinutes,
			MaxTTLMinutes:     cfg.QR.MaxTTLMinutes,
			FlatFee:           flatFee,
			PaymentBaseURL:    cfg.QR.PaymentBaseURL,
		}, logger.Component(log, "qr"))
	a.eft = service.NewEFTService(repos.payments, repos.wallets, store, a.access, a.ledger, repos.transactor,
		banks, adapters, enc, dedupe,
		service.EFTSettings{
			SubmitTimeout: cfg.EFT.SubmitTimeout,
			MaxRetries:    cfg.EFT.MaxRetries,
			BaseBackoff:   cfg.EFT.BaseBackoff,
			MaxBackoff:    cfg.EFT.MaxBackoff,
			DedupeTTL:     cfg.EFT.DedupeTTL,
		}, logger.Component(log, "eft"))

	return a, nil
}

// openStorage connects the configured backend.
func (a *app) openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("using in-memory storage; all data is lost on exit")
		store := memory.NewStore()
		return &repositories{
			wallets:    memory.NewWalletRepo(store),
			grants:     memory.NewAccessGrantRepo(store),
			codes:      memory.NewQRCodeRepo(store),
			payments:   memory.NewEFTPaymentRepo(store),
			txns:       memory.NewTransactionRepo(store),
			audit:      memory.NewAuditRepo(store),
			transactor: memory.NewTransactor(store),
		}, nil
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.checkers = append(a.checkers, pgStorage.NewHealthCheck(pool))
		return &repositories{
			wallets:    pgStorage.NewWalletRepo(pool),
			grants:     pgStorage.NewAccessGrantRepo(pool),
			codes:      pgStorage.NewQRCodeRepo(pool),
			payments:   pgStorage.NewEFTPaymentRepo(pool),
			txns:       pgStorage.NewTransactionRepo(pool),
			audit:      pgStorage.NewAuditRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// shutdown flushes pending events and releases connections in reverse
// order of opening.
func (a *app) shutdown(ctx context.Context, log zerolog.Logger) {
	if a.events != nil {
		if err := a.events.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("flushing events failed")
		}
	}
	a.close()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func limitPolicy(cfg config.WalletConfig) (service.LimitPolicy, error) {
	policy := service.LimitPolicy{
		Currency:    cfg.Currency,
		DefaultTier: domain.VerificationTier(cfg.DefaultTier),
		Tiers:       make(map[domain.VerificationTier]domain.SpendLimits, len(cfg.Tiers)),
	}
	for name, t := range cfg.Tiers {
		tier := domain.VerificationTier(name)
		if !tier.Valid() {
			return policy, fmt.Errorf("wallet.tiers: unknown tier %q", name)
		}
		daily, err := decimal.NewFromString(t.Daily)
		if err != nil {
			return policy, fmt.Errorf("wallet.tiers.%s.daily: %w", name, err)
		}
		monthly, err := decimal.NewFromString(t.Monthly)
		if err != nil {
			return policy, fmt.Errorf("wallet.tiers.%s.monthly: %w", name, err)
		}
		policy.Tiers[tier] = domain.SpendLimits{Daily: daily, Monthly: monthly}
	}
	if _, ok := policy.Tiers[policy.DefaultTier]; !ok {
		return policy, errors.New("wallet.default_tier has no limits")
	}
	return policy, nil
}

func bankConfigs(banks []config.BankConfig) ([]domain.BankConfig, error) {
	out := make([]domain.BankConfig, 0, len(banks))
	for _, b := range banks {
		lo, err := decimal.NewFromString(b.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("banks.%s.min_amount: %w", b.Code, err)
		}
		hi, err := decimal.NewFromString(b.MaxAmount)
		if err != nil {
			return nil, fmt.Errorf("banks.%s.max_amount: %w", b.Code, err)
		}
		rate, err := decimal.NewFromString(b.FeeRate)
		if err != nil {
			return nil, fmt.Errorf("banks.%s.fee_rate: %w", b.Code, err)
		}
		out = append(out, domain.BankConfig{Code: b.Code, Name: b.Name, MinAmount: lo, MaxAmount: hi, FeeRate: rate})
	}
	return out, nil
}
