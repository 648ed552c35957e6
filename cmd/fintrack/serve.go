package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/media"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the periodic reconciliation sweep",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	srv, err := newServer(cfg, be, logger)
	if err != nil {
		return err
	}
	processor := services.NewReconcileProcessor(be.Store, services.NewReconciler(be.Store), services.ReconcileProcessorConfig{
		Interval:  cfg.ReconcileInterval,
		BatchSize: cfg.ReconcileBatchSize,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return processor.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Warn("Reconcile processor did not stop cleanly", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newServer builds the services on top of be and wraps them in the API.
func newServer(cfg *config.Config, be *backend.Backend, logger *log.Logger) (*apphttp.Server, error) {
	opts := []services.LedgerOption{
		services.WithLocker(be.Locker),
		services.WithConflictRetries(cfg.ConflictRetries),
	}
	if be.Snapshots != nil {
		opts = append(opts, services.WithSnapshotCache(be.Snapshots))
	}
	if be.Events != nil {
		opts = append(opts, services.WithEventPublisher(be.Events))
	}
	ledger := services.NewLedgerService(be.Store, opts...)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	pictures, err := media.NewStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	accounts := services.NewAccountService(be.Store, issuer, be.Denylist, pictures)

	var limiter ratelimit.Allower
	if be.Redis != nil {
		limiter = ratelimit.NewRedisLimiter(be.Redis, cfg.RateLimitPerMinute)
	} else {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	}

	return apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		UploadDir:          cfg.UploadDir,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	}, apphttp.Deps{
		Ledger:   ledger,
		Accounts: accounts,
		Issuer:   issuer,
		Denylist: be.Denylist,
		Limiter:  limiter,
		Ready:    be.Store.Ping,
		Logger:   logger.WithComponent(log.ComponentHTTP),
	}), nil
}
