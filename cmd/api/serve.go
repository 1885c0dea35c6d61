package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "wallet-ledger/internal/adapter/http/handler"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd(c *cli) *cobra.Command {
	var sweepInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(c, sweepInterval)
		},
	}
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", time.Minute, "how often stale QR codes are marked expired (0 disables)")

	return cmd
}

func runServe(c *cli, sweepInterval time.Duration) error {
	cfg, log := c.cfg, c.log
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting wallet ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      a.wallets,
		AccessSvc:      a.access,
		QRSvc:          a.qr,
		EFTSvc:         a.eft,
		LedgerSvc:      a.ledger,
		TokenSvc:       a.tokens,
		SigSvc:         a.sig,
		NonceStore:     a.nonces,
		RateLimiter:    a.limiter,
		AuditSvc:       a.audit,
		Events:         a.events,
		HealthCheckers: a.checkers,
		Metrics:        a.metrics,
		WebhookSecret:  cfg.EFT.WebhookSecret,
		WebhookMaxSkew: cfg.EFT.WebhookMaxSkew,
		Logger:         log,
	})

	if sweepInterval > 0 {
		go sweepLoop(ctx, a, sweepInterval, log)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	a.shutdown(shutdownCtx, log)

	log.Info().Msg("Server exited")
	return nil
}

// sweepLoop marks stale QR codes expired until ctx ends. Redemption checks
// expiry itself, so the sweep only keeps stored statuses tidy.
func sweepLoop(ctx context.Context, a *app, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.qr.ExpireStale(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("QR expiry sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("expired", n).Msg("QR expiry sweep")
			}
		}
	}
}

// signalContext cancels one-shot commands on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
