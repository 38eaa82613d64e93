// Package decisionservice runs the trial's evaluation loop: every tick it
// scans participants, detects open decision windows, randomizes arms and
// writes today's notification schedule.
package decisionservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
	"github.com/healthlab-css/glowup-mrt/internal/config"
	"github.com/healthlab-css/glowup-mrt/internal/directory"
	"github.com/healthlab-css/glowup-mrt/internal/factory"
	"github.com/healthlab-css/glowup-mrt/internal/health"
	"github.com/healthlab-css/glowup-mrt/internal/journal"
	"github.com/healthlab-css/glowup-mrt/internal/logger"
	"github.com/healthlab-css/glowup-mrt/internal/randomize"
	"github.com/healthlab-css/glowup-mrt/internal/scheduler"
	"github.com/healthlab-css/glowup-mrt/internal/signals"
	"github.com/healthlab-css/glowup-mrt/internal/tasks"
)

// Run starts the decision service and blocks until shutdown or error.
func Run() error {
	log := logger.New("decision-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("project", cfg.ProjectID).
		Dur("eval_interval", cfg.EvalInterval).
		Str("randomization_policy", cfg.RandomizationPolicy).
		Bool("sync_reminder", cfg.SyncReminderEnabled).
		Msg("Decision service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eval, checkers, err := initEvaluator(cfg, log)
	if err != nil {
		return err
	}

	svcHealth := startHealthCheckers(ctx, log, checkers)
	server := serveHealth(ctx, cfg, svcHealth, log)
	defer shutdownHealth(server, log)

	ticker := time.NewTicker(cfg.EvalInterval)
	defer ticker.Stop()

	// First pass runs immediately so a restart does not wait an interval.
	for {
		if err := eval.runOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Stack().Err(err).Msg("decision pass failed")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("Decision service shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func initEvaluator(cfg *config.Config, log zerolog.Logger) (*evaluator, []health.HealthChecker, error) {
	store, err := factory.NewObjectStore(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Object store unavailable")
		return nil, nil, err
	}

	policy, err := factory.NewPolicy(cfg)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Randomization policy unavailable")
		return nil, nil, err
	}

	var tokens auth.TokenSource
	if cfg.ServiceAccount != "" {
		tokens, err = auth.NewServiceTokenSource(cfg.TokenURL, cfg.ServiceAccount, cfg.PrivateKey)
		if err != nil {
			log.Error().Stack().Err(err).Msg("Service credentials invalid")
			return nil, nil, err
		}
	} else {
		// Local development against recorded fixtures.
		tokens = auth.StaticTokenSource("dev-token")
	}

	dir := directory.New(cfg.APIBaseURL, cfg.ProjectID, tokens)
	registry := signals.NewRegistry(signals.NewDeviceDataAPI(cfg.APIBaseURL, cfg.ProjectID))
	taskClient := tasks.New(cfg.APIBaseURL, cfg.ProjectID, tokens, log)
	tracker := tasks.NewTracker(taskClient, dir, store, log)

	reminderConds, err := signals.ParseConditions(cfg.ReminderConditions)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Reminder conditions invalid")
		return nil, nil, err
	}

	var probe feedProbe
	if cfg.SyncReminderEnabled {
		probe = signals.NewStalenessProbe(cfg.UltrahumanBaseURL, cfg.UltrahumanAPIKey, cfg.StalenessThreshold)
	}

	sched := scheduler.New(journal.New(store), scheduler.DefaultBank(), randomize.NewRand(), log)

	eval := &evaluator{
		segments:      cfg.SegmentIDs,
		dir:           dir,
		registry:      registry,
		probe:         probe,
		reminderConds: reminderConds,
		policy:        policy,
		sched:         sched,
		tracker:       tracker,
		tokens:        tokens,
		now:           time.Now,
		log:           log,
	}

	checkers := []health.HealthChecker{
		health.NewPingChecker("object-store", store.(health.HealthPinger), log),
		health.NewPingChecker("directory", dir, log),
	}
	return eval, checkers, nil
}

func startHealthCheckers(ctx context.Context, log zerolog.Logger, checkers []health.HealthChecker) *health.ServiceHealthChecker {
	for _, c := range checkers {
		go c.Start(ctx, 30*time.Second)
	}
	svc := health.NewServiceHealthChecker(log, checkers...)
	go svc.Start(ctx, 30*time.Second)
	return svc
}

func serveHealth(ctx context.Context, cfg *config.Config, svc *health.ServiceHealthChecker, log zerolog.Logger) *http.Server {
	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           health.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("Health endpoint starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Stack().Err(err).Msg("Health endpoint failed")
		}
	}()
	return server
}

func shutdownHealth(server *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("Health endpoint forced to shutdown")
	}
}
