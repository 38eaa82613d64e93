// Package notifierworker runs the dispatch loop: every tick it scans today's
// schedule log and delivers the notifications that have come due.
package notifierworker

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
	"github.com/healthlab-css/glowup-mrt/internal/config"
	"github.com/healthlab-css/glowup-mrt/internal/dispatch"
	"github.com/healthlab-css/glowup-mrt/internal/factory"
	"github.com/healthlab-css/glowup-mrt/internal/health"
	"github.com/healthlab-css/glowup-mrt/internal/journal"
	"github.com/healthlab-css/glowup-mrt/internal/logger"
	"github.com/healthlab-css/glowup-mrt/internal/notify"
	"github.com/healthlab-css/glowup-mrt/internal/tasks"
)

// Run starts the notifier worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("notifier-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("project", cfg.ProjectID).
		Dur("dispatch_interval", cfg.DispatchInterval).
		Bool("completion_check", cfg.CompletionCheckEnabled).
		Msg("Notifier worker starting")

	store, err := factory.NewObjectStore(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Object store unavailable")
		return err
	}

	var tokens auth.TokenSource
	if cfg.ServiceAccount != "" {
		tokens, err = auth.NewServiceTokenSource(cfg.TokenURL, cfg.ServiceAccount, cfg.PrivateKey)
		if err != nil {
			log.Error().Stack().Err(err).Msg("Service credentials invalid")
			return err
		}
	} else {
		tokens = auth.StaticTokenSource("dev-token")
	}

	var checker dispatch.CompletionChecker
	if cfg.CompletionCheckEnabled {
		checker = tasks.New(cfg.APIBaseURL, cfg.ProjectID, tokens, log)
	}

	transport := notify.NewPushClient(cfg.APIBaseURL, cfg.ProjectID, tokens)
	dispatcher := dispatch.New(journal.New(store), transport, checker, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeChecker := health.NewPingChecker("object-store", store.(health.HealthPinger), log)
	go storeChecker.Start(ctx, 30*time.Second)
	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, 30*time.Second)

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           health.Handler(svcHealth),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("Health endpoint starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Stack().Err(err).Msg("Health endpoint failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	ticker := time.NewTicker(cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		if _, err := dispatcher.Dispatch(ctx); err != nil && ctx.Err() == nil {
			log.Error().Stack().Err(err).Msg("dispatch pass failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("Notifier worker shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
