package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-otp-auth/internal/application/cleanup"
	"github.com/go-otp-auth/internal/application/notification"
	"github.com/go-otp-auth/internal/config"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	s3infra "github.com/go-otp-auth/internal/infrastructure/s3"
	"github.com/go-otp-auth/internal/infrastructure/smtp"
	"github.com/go-otp-auth/internal/infrastructure/sns"
	"github.com/go-otp-auth/internal/observability"
	transporthttp "github.com/go-otp-auth/internal/transport/http"
	appmiddleware "github.com/go-otp-auth/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.RegisterMetrics(reg)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	sender, err := newSender(ctx, cfg)
	if err != nil {
		return err
	}
	notifDeps := notification.ServiceDeps{
		Sender:      sender,
		TemplateKey: cfg.MailTemplateKey,
		Brand:       cfg.MailBrand,
		Validity:    cfg.OTPTTL,
	}
	if cfg.MailTemplateBucket != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		notifDeps.Templates = s3infra.NewStore(s3Client, cfg.MailTemplateBucket)
	}
	dispatcher := notification.NewDispatcher(notification.NewService(notifDeps), cfg.MailRetryAttempts, cfg.SMTPTimeout)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return err
	}

	var limiter *appmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		defer limiter.Stop()
	}

	if cfg.CleanupSchedule != "" {
		purger := cleanup.NewService(cleanup.ServiceDeps{OTPRepo: st.otpExpiry, SessionRepo: st.sessionExpiry})
		c, err := cleanup.Schedule(cfg.CleanupSchedule, purger)
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		AccountRepo: st.accounts,
		OTPRepo:     st.otps,
		SessionRepo: st.sessions,
		Notifier:    dispatcher,
		Pinger:      st.pinger,
		JWTProvider: jwtProvider,
		RateLimiter: limiter,
		Gatherer:    reg,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s, notifier=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreDriver, cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		slog.Warn("pending otp emails abandoned", "err", err)
	}
	log.Println("Server stopped")
	return nil
}

func newSender(ctx context.Context, cfg *config.Config) (notification.Sender, error) {
	if cfg.Notifier == config.NotifierSNS {
		return sns.NewSender(ctx, cfg)
	}
	return smtp.NewMailer(cfg), nil
}
