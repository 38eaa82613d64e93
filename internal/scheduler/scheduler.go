// Package scheduler turns arm assignments into schedule-log records: one
// pseudo-random send time per active decision slot, the final arm after
// dynamic reassignment, and a message id from the bank. Scheduling is
// idempotent against the persisted schedule log.
package scheduler

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthlab-css/glowup-mrt/internal/journal"
	"github.com/healthlab-css/glowup-mrt/internal/model"
	"github.com/healthlab-css/glowup-mrt/internal/randomize"
)

// trackingRatioThreshold splits the provisional "context" arm into
// dual_high (>= threshold) and dual_low.
const trackingRatioThreshold = 75

// Context carries everything the scheduling pass needs for one participant.
type Context struct {
	Participant       model.Participant
	Signals           model.SignalSet
	ActiveSlots       []string
	NeedsSyncReminder bool
}

// Scheduler writes schedule records through the journal.
type Scheduler struct {
	journal *journal.Journal
	bank    Bank
	rng     randomize.Rand
	now     func() time.Time
	log     zerolog.Logger
}

// New builds a Scheduler on the real clock.
func New(j *journal.Journal, bank Bank, rng randomize.Rand, log zerolog.Logger) *Scheduler {
	return &Scheduler{journal: j, bank: bank, rng: rng, now: time.Now, log: log}
}

// NewAt is New with an injected clock.
func NewAt(j *journal.Journal, bank Bank, rng randomize.Rand, now func() time.Time, log zerolog.Logger) *Scheduler {
	return &Scheduler{journal: j, bank: bank, rng: rng, now: now, log: log}
}

// Schedule processes every (participant, active slot) pair: slots already in
// the schedule log are left untouched, new ones get a send time, a final
// arm and a message id. The full mapping is persisted once at the end.
// Per-slot problems are diagnostics, never errors; only storage failures
// abort the pass.
func (s *Scheduler) Schedule(ctx context.Context, assignments map[string]model.Arm, contexts map[string]*Context) error {
	sched, err := s.journal.LoadSchedule(ctx)
	if err != nil {
		return err
	}
	nowUTC := s.now().UTC()

	for _, pid := range sortedKeys(assignments) {
		arm := assignments[pid]
		pc := contexts[pid]
		if pc == nil {
			s.log.Warn().Str("participant", pid).Msg("assignment without context, skipping")
			continue
		}
		if len(pc.ActiveSlots) == 0 {
			s.log.Info().Str("participant", pid).Msg("no active decision slots, nothing to schedule")
			continue
		}
		for _, slot := range pc.ActiveSlots {
			s.scheduleSlot(sched, pid, slot, arm, pc, nowUTC)
		}
	}

	return s.journal.SaveSchedule(ctx, sched)
}

func (s *Scheduler) scheduleSlot(sched map[string]model.ScheduleRecord, pid, slot string, arm model.Arm, pc *Context, nowUTC time.Time) {
	key := model.ScheduleKey(pid, slot)
	log := s.log.With().Str("key", key).Logger()

	if _, exists := sched[key]; exists {
		log.Debug().Msg("already scheduled")
		return
	}

	startStr, ok := pc.Participant.Field(slot)
	if !ok {
		log.Warn().Msg("slot has no time value in custom fields, skipping")
		return
	}

	sendTime, err := randomSendTime(startStr, pc.Participant.Location(), nowUTC, s.rng)
	if err != nil {
		log.Warn().Err(err).Str("value", startStr).Msg("cannot pick send time, skipping slot")
		return
	}

	finalArm := s.resolveArm(arm, pc.Participant)

	msgID, err := s.bank.Pick(finalArm, s.rng)
	if err != nil {
		log.Warn().Err(err).Msg("skipping slot")
		return
	}

	steps, sleep := auditSignals(pc.Signals)
	sched[key] = model.ScheduleRecord{
		ParticipantID: pid,
		SlotID:        slot,
		Arm:           finalArm,
		MessageID:     msgID,
		SendTime:      sendTime,
		TotalSteps:    steps,
		TotalSleep:    sleep,
	}
	log.Info().
		Str("arm", string(finalArm)).
		Str("message_id", msgID).
		Time("send_time", sendTime).
		Msg("scheduled")
}

// resolveArm applies the dynamic reassignment rule: the provisional
// "context" arm becomes dual_high or dual_low by the participant's
// tracking-compliance ratio. All other arms are already final.
func (s *Scheduler) resolveArm(arm model.Arm, p model.Participant) model.Arm {
	if arm != model.ArmContext {
		return arm
	}
	if TrackingRatio(p) >= trackingRatioThreshold {
		return model.ArmDualHigh
	}
	return model.ArmDualLow
}

// TrackingRatio is the participant's logging-compliance percentage:
// TrackingCount / SurveysDelivered * 100, with SurveysDelivered floored at
// one so a fresh participant divides by one, not zero.
func TrackingRatio(p model.Participant) float64 {
	tracked := fieldInt(p, "TrackingCount", 0)
	delivered := fieldInt(p, "SurveysDelivered", 0)
	if delivered <= 0 {
		delivered = 1
	}
	return float64(tracked) / float64(delivered) * 100
}

func fieldInt(p model.Participant, name string, fallback int) int {
	raw, ok := p.Field(name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func auditSignals(signals model.SignalSet) (steps, sleep *float64) {
	if v, ok := signals.Value(model.SignalSteps); ok {
		steps = &v
	}
	if v, ok := signals.Value(model.SignalSleep); ok {
		sleep = &v
	}
	return steps, sleep
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
