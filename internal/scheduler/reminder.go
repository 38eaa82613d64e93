package scheduler

import (
	"context"
	"time"

	"github.com/healthlab-css/glowup-mrt/internal/model"
)

const (
	// ReminderCooldown is the minimum gap between two sync reminders for
	// the same participant.
	ReminderCooldown = 4 * time.Hour

	// reminderMaxDelayMinutes spreads reminder sends over the next few
	// minutes instead of firing everyone at once.
	reminderMaxDelayMinutes = 10
)

// ScheduleSyncReminders writes a "participantId::sync" schedule entry for
// every participant whose signal feed has gone stale. Unlike meal slots a
// sync entry may be overwritten, but only once its previous send time is in
// the past and the cooldown has elapsed.
func (s *Scheduler) ScheduleSyncReminders(ctx context.Context, contexts map[string]*Context) error {
	sched, err := s.journal.LoadSchedule(ctx)
	if err != nil {
		return err
	}
	nowUTC := s.now().UTC()

	for _, pid := range sortedKeys(contexts) {
		pc := contexts[pid]
		if pc == nil || !pc.NeedsSyncReminder {
			continue
		}
		key := model.ScheduleKey(pid, model.SyncSlot)
		log := s.log.With().Str("key", key).Logger()

		if existing, ok := sched[key]; ok {
			if existing.SendTime.After(nowUTC) {
				log.Info().Time("send_time", existing.SendTime).Msg("reminder already scheduled in the future")
				continue
			}
			if nowUTC.Sub(existing.SendTime) < ReminderCooldown {
				log.Info().Time("send_time", existing.SendTime).Msg("reminder sent within cooldown")
				continue
			}
		}

		sendTime := nowUTC.Add(time.Duration(s.rng.Intn(reminderMaxDelayMinutes+1)) * time.Minute)
		sched[key] = model.ScheduleRecord{
			ParticipantID: pid,
			SlotID:        model.SyncSlot,
			Arm:           model.ArmSyncReminder,
			MessageID:     SyncReminderMessage,
			SendTime:      sendTime,
		}
		log.Info().Time("send_time", sendTime).Msg("sync reminder scheduled")
	}

	return s.journal.SaveSchedule(ctx, sched)
}
