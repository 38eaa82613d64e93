package decisionservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/auth"
	"github.com/healthlab-css/glowup-mrt/internal/model"
	"github.com/healthlab-css/glowup-mrt/internal/randomize"
	"github.com/healthlab-css/glowup-mrt/internal/scheduler"
	"github.com/healthlab-css/glowup-mrt/internal/signals"
	"github.com/healthlab-css/glowup-mrt/internal/window"
)

// ultrahumanEmailField holds the address the wearable feed is registered
// under, set by study staff at enrollment.
const ultrahumanEmailField = "UltrahumanEmail"

// participantSource lists participants per platform segment.
type participantSource interface {
	ParticipantsBySegment(ctx context.Context, segmentID string, platform model.Platform) ([]model.Participant, error)
}

// feedProbe reports whether a wearable feed has gone quiet.
type feedProbe interface {
	Check(ctx context.Context, email string) (signals.FeedStatus, error)
}

// trackingMaintainer bumps completion counters after each pass.
type trackingMaintainer interface {
	IncrementCompleted(ctx context.Context) error
}

// evaluator runs one full decision pass: directory scan, window detection,
// signal collection, randomization, scheduling.
type evaluator struct {
	segments      map[string]string
	dir           participantSource
	registry      signals.Registry
	probe         feedProbe
	reminderConds []signals.Condition
	policy        randomize.Policy
	sched         *scheduler.Scheduler
	tracker       trackingMaintainer
	tokens        auth.TokenSource
	now           func() time.Time
	log           zerolog.Logger
}

// segmentPlatforms maps config segment keys to platform identifiers.
var segmentPlatforms = map[string]model.Platform{
	"ios":           model.PlatformIOS,
	"android":       model.PlatformAndroid,
	"fitbit":        model.PlatformFitbit,
	"healthconnect": model.PlatformHealthConnect,
}

// runOnce executes a single pass. Per-segment and per-participant failures
// degrade locally; only journal writes can fail the pass as a whole.
func (e *evaluator) runOnce(ctx context.Context) error {
	log := e.log.With().Str("run_id", uuid.NewString()).Logger()
	token, err := e.tokens.Token(ctx)
	if err != nil {
		return err
	}

	nowUTC := e.now().UTC()
	contexts := map[string]*scheduler.Context{}
	inWindow := map[string]model.Participant{}
	signalsByPid := map[string]model.SignalSet{}

	for key, segmentID := range e.segments {
		platform, ok := segmentPlatforms[key]
		if !ok {
			log.Warn().Str("segment_key", key).Msg("unknown platform key in segment config")
			continue
		}
		participants, err := e.dir.ParticipantsBySegment(ctx, segmentID, platform)
		if err != nil {
			log.Error().Stack().Err(err).Str("segment", segmentID).Msg("segment fetch failed")
			continue
		}
		log.Debug().Str("segment", segmentID).Int("count", len(participants)).Msg("segment fetched")

		for _, p := range participants {
			slots := window.ActiveMealWindows(p, nowUTC, log)
			needsSync := e.feedStale(ctx, p, log)
			if len(slots) == 0 && !needsSync {
				continue
			}

			pc := &scheduler.Context{
				Participant:       p,
				ActiveSlots:       slots,
				NeedsSyncReminder: needsSync,
			}
			if len(slots) > 0 {
				pc.Signals = e.registry.Collect(ctx, token, p, log)
				inWindow[p.ID] = p
				signalsByPid[p.ID] = pc.Signals
				if e.probe != nil && !pc.NeedsSyncReminder && signals.AnyCondition(e.reminderConds, pc.Signals) {
					log.Info().Str("participant", p.ID).Msg("reminder condition met")
					pc.NeedsSyncReminder = true
				}
			}
			contexts[p.ID] = pc
		}
	}

	assignments := randomize.Assignments(e.policy, inWindow, signalsByPid)
	if err := e.sched.Schedule(ctx, assignments, contexts); err != nil {
		return err
	}
	if e.probe != nil {
		if err := e.sched.ScheduleSyncReminders(ctx, contexts); err != nil {
			return err
		}
	}
	if err := e.tracker.IncrementCompleted(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("tracking count maintenance failed")
	}

	log.Info().Int("in_window", len(inWindow)).Int("contexts", len(contexts)).Msg("decision pass complete")
	return nil
}

// feedStale checks the participant's wearable feed when the probe is
// enabled. Probe failures are logged, not treated as stale.
func (e *evaluator) feedStale(ctx context.Context, p model.Participant, log zerolog.Logger) bool {
	if e.probe == nil {
		return false
	}
	email, ok := p.Field(ultrahumanEmailField)
	if !ok {
		return false
	}
	status, err := e.probe.Check(ctx, email)
	if err != nil {
		log.Warn().Err(err).Str("participant", p.ID).Msg("staleness probe failed")
		return false
	}
	return status.Stale
}
