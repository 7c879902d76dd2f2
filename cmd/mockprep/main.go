// Command mockprep runs the mock interview backend as a standalone HTTP
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gometrics "github.com/xraph/go-utils/metrics"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/api"
	audithook "github.com/xraph/mockprep/audit_hook"
	"github.com/xraph/mockprep/config"
	"github.com/xraph/mockprep/extension"
	"github.com/xraph/mockprep/identity/google"
	"github.com/xraph/mockprep/intake"
	"github.com/xraph/mockprep/observability"
	"github.com/xraph/mockprep/provider/stripe"
	"github.com/xraph/mockprep/receipt"
	"github.com/xraph/mockprep/store"
	"github.com/xraph/mockprep/store/memory"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("mockprep exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}

	opts, err := engineOptions(cfg, logger)
	if err != nil {
		return err
	}
	eng := mockprep.New(s, opts...)
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			logger.Warn("engine stop failed", "error", err)
		}
	}()

	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithFetcher(intake.NewFetcher(intake.WithFetchTimeout(cfg.Timeouts.Fetcher))),
	}
	if cfg.GoogleEnabled() {
		apiOpts = append(apiOpts, api.WithGoogle(google.New(cfg.Auth.GoogleClientID,
			google.WithHTTPClient(&http.Client{Timeout: cfg.Timeouts.Fetcher}),
		)))
		logger.Info("google sign-in enabled")
	}
	srv := api.New(eng, api.Config{
		BasePath:             cfg.Server.BasePath,
		CORSOrigins:          cfg.Server.CORSOrigins,
		JWTSecret:            cfg.Auth.JWTSecret,
		TokenTTL:             cfg.Auth.TokenTTL,
		VapiPublicKey:        cfg.Vapi.PublicKey,
		StripePublishableKey: cfg.Stripe.PublishableKey,
	}, apiOpts...)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr, "base_path", cfg.Server.BasePath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func engineOptions(cfg *config.Config, logger *slog.Logger) ([]mockprep.Option, error) {
	opts := []mockprep.Option{
		mockprep.WithLogger(logger),
		mockprep.WithSignupBonus(cfg.Credits.SignupBonus),
		mockprep.WithReferralBonus(cfg.Credits.ReferralBonus),
		mockprep.WithMaxGrant(cfg.Credits.MaxGrant),
		mockprep.WithProviderTimeout(cfg.Timeouts.Provider),
		mockprep.WithCheckoutURLs(cfg.Server.PublicURL, cfg.Stripe.SuccessPath, cfg.Stripe.CancelPath),
		mockprep.WithPlugin(observability.NewMetricsExtension(
			observability.FromGoUtils(gometrics.NewMetricsCollector("mockprep")),
		)),
		mockprep.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
	}

	if cfg.PaymentsEnabled() {
		p, err := stripe.New(stripe.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			APIURL:        cfg.Stripe.APIURL,
			MaxRetries:    2,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, mockprep.WithProvider(p))
	} else {
		logger.Warn("stripe secret key not set; payments are disabled")
	}

	if cfg.ReceiptsEnabled() {
		opts = append(opts, mockprep.WithPlugin(receipt.New(
			receipt.NewSendGrid(cfg.Mail.SendgridKey, ""),
			cfg.Mail.FromAddress,
			cfg.Mail.FromName,
			receipt.WithLogger(logger),
			receipt.WithAppURL(cfg.Server.PublicURL),
		)))
	}
	return opts, nil
}

// auditLog writes the audit trail to the structured log.
func auditLog(logger *slog.Logger) audithook.Recorder {
	l := logger.With("component", "audit")
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		l.InfoContext(ctx, ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"category", ev.Category,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
			"metadata", ev.Metadata,
		)
		return nil
	})
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	var drv grove.GroveDriver
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		pg := pgdriver.New()
		if err := pg.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		drv = pg
	case config.DriverMongo:
		mdb := mongodriver.New()
		if err := mdb.Open(ctx, cfg.DSN, mongodriver.WithDatabase(cfg.Name)); err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		drv = mdb
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := grove.Open(drv)
	if err != nil {
		return nil, fmt.Errorf("open grove: %w", err)
	}
	return extension.StoreFor(db)
}
